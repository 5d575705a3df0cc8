package postgres

import (
	"context"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/apperr"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MutationLog struct{ db *pgxpool.Pool }

func NewMutationLog(db *pgxpool.Pool) *MutationLog { return &MutationLog{db: db} }

func (l *MutationLog) Get(ctx context.Context, id string) (*models.MutationRecord, error) {
	var rec models.MutationRecord
	err := l.db.QueryRow(ctx, `
		SELECT id, client_id, seq, op, COALESCE(ticket_id,''), status, COALESCE(error,''), created_at
		FROM mutation_log WHERE id=$1`, id).
		Scan(&rec.ID, &rec.ClientID, &rec.Seq, &rec.Op, &rec.TicketID, &rec.Status, &rec.Error, &rec.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Record inserts the outcome row; the primary key makes duplicate replay
// of the same mutation ID a conflict the applier treats as already-seen.
func (l *MutationLog) Record(ctx context.Context, rec *models.MutationRecord) error {
	ct, err := l.db.Exec(ctx, `
		INSERT INTO mutation_log (id, client_id, seq, op, ticket_id, status, error, created_at)
		VALUES ($1,$2,$3,$4,NULLIF($5,''),$6,NULLIF($7,''),$8)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID, rec.ClientID, rec.Seq, rec.Op, rec.TicketID, rec.Status, rec.Error, rec.CreatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrWriteConflict
	}
	return nil
}
