// Package repository provides data access for the gateway's own storage:
// the checkout journal.  The journal is an append-only audit of how checkout
// attempts ended; it never drives saga decisions.
package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/ticketchief/checkout-gateway/internal/model"
)

// JournalRepo provides access to the checkout_journal table.  Timestamps are
// stored and compared in UTC.
type JournalRepo struct {
	db *sql.DB
}

// NewJournalRepo returns a JournalRepo bound to the provided database.
func NewJournalRepo(db *sql.DB) *JournalRepo { return &JournalRepo{db: db} }

// EnsureSchema creates the journal table when it does not exist.  The
// gateway owns this one table; backend services own their own schemas.
func (r *JournalRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkout_journal (
			id             CHAR(36) PRIMARY KEY,
			user_id        VARCHAR(64)  NOT NULL,
			event_id       VARCHAR(64)  NOT NULL,
			seats          VARCHAR(255) NOT NULL,
			order_id       BIGINT       NOT NULL DEFAULT 0,
			correlation_id VARCHAR(64)  NOT NULL DEFAULT '',
			outcome        VARCHAR(32)  NOT NULL,
			failure_code   VARCHAR(48)  NOT NULL DEFAULT '',
			message        VARCHAR(512) NOT NULL DEFAULT '',
			created_at     DATETIME     NOT NULL,
			KEY idx_journal_user (user_id, created_at)
		)`)
	return err
}

// Record appends one journal row.  Seat ids are stored comma-joined; they
// are display data, never queried individually.
func (r *JournalRepo) Record(ctx context.Context, rec model.CheckoutRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO checkout_journal
			(id, user_id, event_id, seats, order_id, correlation_id, outcome, failure_code, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.EventID, strings.Join(rec.SeatIDs, ","),
		rec.OrderID, rec.CorrelationID, rec.Outcome, rec.FailureCode,
		truncate(rec.Message, 512), rec.CreatedAt.UTC(),
	)
	return err
}

// ListByUser returns the most recent journal rows for a user, newest first.
func (r *JournalRepo) ListByUser(ctx context.Context, userID string, limit int) ([]model.CheckoutRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, event_id, seats, order_id, correlation_id, outcome, failure_code, message, created_at
		 FROM checkout_journal WHERE user_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CheckoutRecord
	for rows.Next() {
		var rec model.CheckoutRecord
		var seats string
		var createdAt time.Time
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.EventID, &seats, &rec.OrderID,
			&rec.CorrelationID, &rec.Outcome, &rec.FailureCode, &rec.Message, &createdAt); err != nil {
			return nil, err
		}
		if seats != "" {
			rec.SeatIDs = strings.Split(seats, ",")
		}
		rec.CreatedAt = createdAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
