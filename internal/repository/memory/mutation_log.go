package memory

import (
	"context"
	"sync"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/apperr"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
)

type MutationLog struct {
	mu   sync.Mutex
	rows map[string]models.MutationRecord
}

func NewMutationLog() *MutationLog {
	return &MutationLog{rows: map[string]models.MutationRecord{}}
}

func (l *MutationLog) Get(ctx context.Context, id string) (*models.MutationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.rows[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (l *MutationLog) Record(ctx context.Context, rec *models.MutationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.rows[rec.ID]; ok {
		return apperr.ErrWriteConflict
	}
	l.rows[rec.ID] = *rec
	return nil
}
