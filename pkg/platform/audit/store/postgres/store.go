package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	audit "memberverify/pkg/platform/audit"
	txcontext "memberverify/pkg/platform/tx"
)

// Store implements audit.Store on the audit_logs table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO audit_logs (id, admin_id, action, target_type, target_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.AdminID, string(entry.Action), string(entry.TargetType), entry.TargetID, details, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, admin_id, action, target_type, target_id, details, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id
		LIMIT $1`, audit.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var details []byte
		if err := rows.Scan(&e.ID, &e.AdminID, &e.Action, &e.TargetType, &e.TargetID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
