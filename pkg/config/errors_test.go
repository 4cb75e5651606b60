package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorError(t *testing.T) {
	baseErr := errors.New("base error")

	tests := []struct {
		name     string
		err      *ValidationError
		contains []string
	}{
		{
			name: "full error",
			err:  NewValidationError("llm_provider", "gpt4", "model", baseErr),
			contains: []string{
				"llm_provider",
				"gpt4",
				"model",
				"base error",
			},
		},
		{
			name: "terminology provider error",
			err:  NewValidationError("terminology_provider", "snomed", "base_url", errors.New("required")),
			contains: []string{
				"terminology_provider",
				"snomed",
				"base_url",
				"required",
			},
		},
		{
			name: "no field",
			err:  NewValidationError("alerting", "", "", baseErr),
			contains: []string{
				"alerting",
				"base error",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				assert.Contains(t, errStr, substr)
			}
		})
	}
}

func TestValidationErrorUnwrap(t *testing.T) {
	baseErr := errors.New("base error")
	validationErr := NewValidationError("pipeline", "", "max_criteria", baseErr)

	assert.Equal(t, baseErr, validationErr.Unwrap())
	assert.True(t, errors.Is(validationErr, baseErr))
}

func TestLoadErrorError(t *testing.T) {
	tests := []struct {
		name     string
		err      *LoadError
		contains []string
	}{
		{
			name: "file load error",
			err:  &LoadError{File: "eligibility.yaml", Err: errors.New("file not found")},
			contains: []string{
				"failed to load",
				"eligibility.yaml",
				"file not found",
			},
		},
		{
			name: "parse error",
			err:  &LoadError{File: "llm-providers.yaml", Err: errors.New("yaml: unmarshal error")},
			contains: []string{
				"failed to load",
				"llm-providers.yaml",
				"unmarshal error",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				assert.Contains(t, errStr, substr)
			}
		})
	}
}

func TestLoadErrorUnwrap(t *testing.T) {
	baseErr := errors.New("base error")
	loadErr := &LoadError{File: "test.yaml", Err: baseErr}

	assert.Equal(t, baseErr, loadErr.Unwrap())
	assert.True(t, errors.Is(loadErr, baseErr))
}
