package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies the schema idempotently at startup.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			role TEXT NOT NULL CHECK (role IN ('citizen','staff','supervisor','admin')),
			name TEXT NOT NULL,
			phone TEXT UNIQUE,
			email TEXT UNIQUE,
			password_h TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			CHECK (phone IS NOT NULL OR email IS NOT NULL)
		)`,
		`CREATE TABLE IF NOT EXISTS staff_profiles (
			user_id UUID PRIMARY KEY REFERENCES users(id),
			department TEXT,
			ward TEXT,
			reports_to UUID REFERENCES users(id)
		)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id UUID PRIMARY KEY,
			created_by UUID NOT NULL REFERENCES users(id),
			category TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			address_text TEXT NOT NULL DEFAULT '',
			lat DOUBLE PRECISION,
			lng DOUBLE PRECISION,
			status TEXT NOT NULL CHECK (status IN ('new','assigned','in_progress','waiting_supervisor','resolved')),
			assigned_to UUID REFERENCES users(id),
			current_supervisor UUID REFERENCES users(id),
			citizen_rating INT CHECK (citizen_rating BETWEEN 1 AND 5),
			citizen_feedback TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			closed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_created_by ON tickets (created_by, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_assigned_to ON tickets (assigned_to, updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_supervisor ON tickets (current_supervisor, status, updated_at ASC)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_updated_at ON tickets (updated_at ASC)`,
		`CREATE TABLE IF NOT EXISTS ticket_events (
			id UUID PRIMARY KEY,
			ticket_id UUID NOT NULL REFERENCES tickets(id),
			actor_id UUID NOT NULL,
			type TEXT NOT NULL CHECK (type IN ('status_change','comment','assignment','rating')),
			from_status TEXT,
			to_status TEXT,
			message TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ticket_events_ticket ON ticket_events (ticket_id, created_at ASC)`,
		`CREATE TABLE IF NOT EXISTS ticket_attachments (
			id UUID PRIMARY KEY,
			ticket_id UUID NOT NULL REFERENCES tickets(id),
			uploaded_by UUID NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('photo','document')),
			url TEXT NOT NULL,
			mime_type TEXT,
			caption TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ticket_attachments_ticket ON ticket_attachments (ticket_id, created_at ASC)`,
		`CREATE TABLE IF NOT EXISTS mutation_log (
			id UUID PRIMARY KEY,
			client_id TEXT NOT NULL,
			seq BIGINT NOT NULL,
			op TEXT NOT NULL,
			ticket_id UUID,
			status TEXT NOT NULL CHECK (status IN ('applied','rejected')),
			error TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
