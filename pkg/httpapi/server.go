// Package httpapi is the minimal HTTP surface the core pipeline exposes
// directly: a trigger endpoint that starts a run, read-model GETs the
// review UI (an external collaborator per spec.md §1) polls, and the
// health/metrics endpoints an orchestrator needs. The router setup and
// handler/response-DTO split follow gin conventions used elsewhere in this
// tree; these routes are built fresh against the domain model (DESIGN.md).
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

// ProtocolStore is the read slice of pkg/storage/postgres.ProtocolRepo
// the API needs.
type ProtocolStore interface {
	Get(ctx context.Context, id string) (domain.Protocol, error)
}

// CriteriaStore lists a protocol's active batch, its criteria, and entities.
type CriteriaStore interface {
	ActiveBatch(ctx context.Context, protocolID string) (domain.CriteriaBatch, error)
	ListByBatch(ctx context.Context, batchID string) ([]domain.Criteria, error)
	ListEntitiesByCriteria(ctx context.Context, criteriaID string) ([]domain.Entity, error)
}

// ReviewStore records and lists reviewer decisions and audit log entries.
type ReviewStore interface {
	InsertReview(ctx context.Context, r domain.Review, newReviewStatus *domain.ReviewStatus) (domain.Review, error)
	ListByCriteria(ctx context.Context, criteriaID string) ([]domain.Review, error)
	ListAuditLogsByProtocol(ctx context.Context, protocolID string) ([]domain.AuditLog, error)
}

// DeadLetterSweeper is called opportunistically on protocol reads to apply
// the lazy half of the dead-letter archival policy (DESIGN.md Open Question
// resolution #3 — the active half is pkg/cleanup's ticker loop).
type DeadLetterSweeper interface {
	SweepExpiredDeadLetters(ctx context.Context, ttl time.Duration) (int, error)
}

// MetricsHandler exposes a registry's /metrics http.Handler (pkg/observability.Metrics).
type MetricsHandler interface {
	Handler() http.Handler
}

// Config bundles the server's tunables.
type Config struct {
	DeadLetterTTL time.Duration
}

func DefaultConfig() Config {
	return Config{DeadLetterTTL: 7 * 24 * time.Hour}
}

// Server holds the dependencies every handler needs.
type Server struct {
	protocols ProtocolStore
	criteria  CriteriaStore
	reviews   ReviewStore
	trigger   TriggerService
	sweeper   DeadLetterSweeper
	metrics   MetricsHandler
	cfg       Config

	engine *gin.Engine
}

// TriggerService creates a Protocol and its protocol_uploaded outbox event
// in one transaction. Declared here rather than depending on
// pkg/storage/postgres directly so this package stays storage-agnostic,
// matching pkg/outbox.Store's rationale.
type TriggerService interface {
	Trigger(ctx context.Context, fileURI, title string) (domain.Protocol, error)
}

func NewServer(protocols ProtocolStore, criteria CriteriaStore, reviews ReviewStore, trigger TriggerService, sweeper DeadLetterSweeper, metrics MetricsHandler, cfg Config) *Server {
	s := &Server{
		protocols: protocols,
		criteria:  criteria,
		reviews:   reviews,
		trigger:   trigger,
		sweeper:   sweeper,
		metrics:   metrics,
		cfg:       cfg,
	}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

// Engine returns the underlying router, for cmd/pipeline-worker to run behind
// an http.Server with its own timeouts.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.healthzHandler)
	s.engine.GET("/readyz", s.readyzHandler)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	s.engine.POST("/protocols", s.triggerHandler)
	s.engine.GET("/protocols/:id", s.getProtocolHandler)
	s.engine.GET("/protocols/:id/criteria", s.listCriteriaHandler)
	s.engine.GET("/criteria/:id/entities", s.listEntitiesHandler)
	s.engine.POST("/criteria/:id/reviews", s.submitReviewHandler)
	s.engine.GET("/criteria/:id/reviews", s.listReviewsHandler)
	s.engine.GET("/protocols/:id/audit-logs", s.listAuditLogsHandler)
}
