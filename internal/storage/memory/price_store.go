package memory

import (
	"context"
	"sync"

	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/panel"
	"equity-momentum-lab/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu      sync.RWMutex
	rows    []domain.PriceObservation
	summary *domain.DatasetSummary
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// ReplaceAll swaps the stored dataset. The previous dataset is kept on error.
func (s *PriceStore) ReplaceAll(_ context.Context, info domain.DatasetSummary, obs []domain.PriceObservation) error {
	if err := storage.CheckObservations(obs); err != nil {
		return err
	}

	rows := make([]domain.PriceObservation, len(obs))
	copy(rows, obs)
	for i := range rows {
		rows[i].Date = domain.NormalizeDate(rows[i].Date)
	}
	panel.SortObservations(rows)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = rows
	s.summary = &info
	return nil
}

// GetAll returns a copy of every observation ordered by (ticker, date).
func (s *PriceStore) GetAll(_ context.Context) ([]domain.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PriceObservation, len(s.rows))
	copy(out, s.rows)
	return out, nil
}

// Summary returns the summary of the current dataset.
func (s *PriceStore) Summary(_ context.Context) (*domain.DatasetSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.summary == nil {
		return nil, storage.ErrNotFound
	}
	out := *s.summary
	return &out, nil
}
