package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	"github.com/Mahad-Ghauri/School-Backend/pkg/jobs"
)

type auditRepo interface {
	Insert(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, resource, userID string, page, pageSize int) ([]models.AuditLog, int, error)
}

// AuditConfig sizes the background audit writer.
type AuditConfig struct {
	Workers    int
	BufferSize int
}

// AuditService records mutating requests without blocking them. Entries are
// enqueued onto an in-memory queue and persisted by background workers.
type AuditService struct {
	audits auditRepo
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService constructs the audit service and its worker queue.
func NewAuditService(audits auditRepo, cfg AuditConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{audits: audits, logger: logger}
	s.queue = jobs.NewQueue("audit", s.persist, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	})
	return s
}

// Start launches the background workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record enqueues an audit entry. Failures are logged but never surfaced to
// the request that triggered them.
func (s *AuditService) Record(entry models.AuditLog) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	err := s.queue.Enqueue(jobs.Job{
		ID:      entry.ID,
		Type:    "audit.record",
		Payload: entry,
	})
	if err != nil {
		s.logger.Warn("enqueue audit entry",
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource),
			zap.Error(err))
	}
}

func (s *AuditService) persist(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return s.audits.Insert(writeCtx, &entry)
}

// List returns audit entries matching the filter.
func (s *AuditService) List(ctx context.Context, resource, userID string, page, pageSize int) ([]models.AuditLog, int, error) {
	return s.audits.List(ctx, resource, userID, page, pageSize)
}
