package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

func TestProtocolRepo_CreateAndGet(t *testing.T) {
	client := newTestClient(t)
	repo := NewProtocolRepo(client.Pool)
	ctx := context.Background()

	created, err := repo.Create(ctx, domain.Protocol{
		Title:   "NCT00000001",
		FileURI: "gs://bucket/protocol.pdf",
		Status:  domain.ProtocolStatusUploaded,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "NCT00000001", got.Title)
	assert.Equal(t, domain.ProtocolStatusUploaded, got.Status)
}

func TestProtocolRepo_GetMissingIsNotFound(t *testing.T) {
	client := newTestClient(t)
	repo := NewProtocolRepo(client.Pool)

	_, err := repo.Get(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestProtocolRepo_TransitionStatusRecordsErrorReason(t *testing.T) {
	client := newTestClient(t)
	repo := NewProtocolRepo(client.Pool)
	ctx := context.Background()

	p, err := repo.Create(ctx, domain.Protocol{Title: "t", FileURI: "gs://b/o.pdf", Status: domain.ProtocolStatusExtracting})
	require.NoError(t, err)

	reason := "extraction model returned malformed JSON"
	require.NoError(t, repo.TransitionStatus(ctx, p.ID, domain.ProtocolStatusExtractionFailed, &reason))

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolStatusExtractionFailed, got.Status)
	require.NotNil(t, got.ErrorReason)
	assert.Equal(t, reason, *got.ErrorReason)
}

func TestProtocolRepo_TransitionStatusMissingIsNotFound(t *testing.T) {
	client := newTestClient(t)
	repo := NewProtocolRepo(client.Pool)

	err := repo.TransitionStatus(context.Background(), "00000000-0000-0000-0000-000000000000", domain.ProtocolStatusComplete, nil)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestProtocolRepo_SetPageCountAndQuality(t *testing.T) {
	client := newTestClient(t)
	repo := NewProtocolRepo(client.Pool)
	ctx := context.Background()

	p, err := repo.Create(ctx, domain.Protocol{Title: "t", FileURI: "gs://b/o.pdf", Status: domain.ProtocolStatusExtracting})
	require.NoError(t, err)

	require.NoError(t, repo.SetPageCountAndQuality(ctx, p.ID, 42, 0.87))

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PageCount)
	assert.Equal(t, 42, *got.PageCount)
	require.NotNil(t, got.QualityScore)
	assert.InDelta(t, 0.87, *got.QualityScore, 0.0001)
}
