package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bd4predict/predict-api/internal/domain"
)

// DefaultMemoryCapacity bounds the audit trail kept by MemoryRepository.
const DefaultMemoryCapacity = 10000

// MemoryRepository keeps the most recent prediction records in process.
// It backs lite deployments that run without Postgres.
type MemoryRepository struct {
	records *lru.Cache[string, *domain.PredictionRecord]
}

// NewMemoryRepository creates an in-memory repository holding up to capacity records.
func NewMemoryRepository(capacity int) (*MemoryRepository, error) {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	records, err := lru.New[string, *domain.PredictionRecord](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating audit cache: %w", err)
	}
	return &MemoryRepository{records: records}, nil
}

func (r *MemoryRepository) Create(_ context.Context, record *domain.PredictionRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	r.records.Add(record.ID, record)
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*domain.PredictionRecord, error) {
	record, ok := r.records.Peek(id)
	if !ok {
		return nil, fmt.Errorf("prediction %q not found: %w", id, domain.ErrNotFound)
	}
	return record, nil
}

func (r *MemoryRepository) ListRecent(_ context.Context, limit int) ([]*domain.PredictionRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	// Keys are ordered oldest to newest.
	keys := r.records.Keys()
	out := make([]*domain.PredictionRecord, 0, min(limit, len(keys)))
	for i := len(keys) - 1; i >= 0 && len(out) < limit; i-- {
		if record, ok := r.records.Peek(keys[i]); ok {
			out = append(out, record)
		}
	}
	return out, nil
}

// Len returns the number of retained records.
func (r *MemoryRepository) Len() int {
	return r.records.Len()
}
