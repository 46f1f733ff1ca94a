package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"memberverify/internal/member/models"
	"memberverify/pkg/platform/sentinel"
	txcontext "memberverify/pkg/platform/tx"
	"memberverify/pkg/requestcontext"
)

const memberColumns = `id, qlid, full_name, email, status, verification_status, verification_method,
	is_verified, verified_at, method_selected_at, badge_object_path, artifacts_purge_at,
	reminder_email_sent, deleted_at, deleted_by, deletion_reason, deletion_type,
	created_at, updated_at`

// PostgresDirectory persists members and verification events in PostgreSQL.
// Updates lock the member row (SELECT ... FOR UPDATE) for the duration of the
// read-modify-write.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresDirectory) conn(ctx context.Context) queryer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// inTx joins a transaction already carried by ctx or opens a new one.
func (s *PostgresDirectory) inTx(ctx context.Context, fn func(q queryer) error) error {
	if tx, ok := txcontext.From(ctx); ok {
		return fn(tx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin member tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit member tx: %w", err)
	}
	return nil
}

func (s *PostgresDirectory) Create(ctx context.Context, m *models.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO members (`+memberColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		memberArgs(m)...,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *PostgresDirectory) FindByID(ctx context.Context, id string) (*models.Member, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
	m, err := scanMember(row)
	if err != nil {
		return nil, notFoundOr(err, "find member by id")
	}
	return m, nil
}

func (s *PostgresDirectory) FindByQLID(ctx context.Context, qlid models.QLID) (*models.Member, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE qlid = $1`, string(qlid))
	m, err := scanMember(row)
	if err != nil {
		return nil, notFoundOr(err, "find member by qlid")
	}
	return m, nil
}

func (s *PostgresDirectory) Update(ctx context.Context, id string, fn UpdateFunc) (*models.Member, error) {
	var result *models.Member
	var noChange bool

	err := s.inTx(ctx, func(q queryer) error {
		row := q.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1 FOR UPDATE`, id)
		current, err := scanMember(row)
		if err != nil {
			return notFoundOr(err, "lock member")
		}

		working := current.Clone()
		events, err := fn(working)
		if err != nil {
			if errors.Is(err, ErrNoChange) {
				result, noChange = current, true
			}
			return err
		}
		if working.ID != id {
			return sentinel.ErrInvalidState
		}
		if err := working.Validate(); err != nil {
			return err
		}
		working.UpdatedAt = requestcontext.Now(ctx)

		if _, err := q.ExecContext(ctx, `
			UPDATE members SET
				qlid = $2, full_name = $3, email = $4, status = $5,
				verification_status = $6, verification_method = $7, is_verified = $8,
				verified_at = $9, method_selected_at = $10, badge_object_path = $11,
				artifacts_purge_at = $12, reminder_email_sent = $13, deleted_at = $14,
				deleted_by = $15, deletion_reason = $16, deletion_type = $17,
				created_at = $18, updated_at = $19
			WHERE id = $1`,
			memberArgs(working)...,
		); err != nil {
			return fmt.Errorf("update member: %w", err)
		}
		for _, ev := range events {
			if err := insertEvent(ctx, q, ev); err != nil {
				return err
			}
		}
		result = working
		return nil
	})
	if noChange {
		return result, ErrNoChange
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresDirectory) AppendEvent(ctx context.Context, event models.VerificationEvent) error {
	return insertEvent(ctx, s.conn(ctx), event)
}

func (s *PostgresDirectory) ListEvents(ctx context.Context, memberID string) ([]models.VerificationEvent, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, member_id, event_type, event_meta, created_at
		FROM verification_events
		WHERE member_id = $1
		ORDER BY created_at, id`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list verification events: %w", err)
	}
	defer rows.Close()

	var out []models.VerificationEvent
	for rows.Next() {
		var ev models.VerificationEvent
		var meta []byte
		if err := rows.Scan(&ev.ID, &ev.MemberID, &ev.EventType, &meta, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan verification event: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &ev.EventMeta); err != nil {
				return nil, fmt.Errorf("unmarshal event meta: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *PostgresDirectory) ListPurgeCandidates(ctx context.Context, now time.Time) ([]*models.Member, error) {
	return s.list(ctx, `
		SELECT `+memberColumns+` FROM members
		WHERE badge_object_path IS NOT NULL
		  AND artifacts_purge_at IS NOT NULL
		  AND artifacts_purge_at < $1
		ORDER BY artifacts_purge_at, id`, now)
}

func (s *PostgresDirectory) ListReminderCandidates(ctx context.Context, cutoff time.Time) ([]*models.Member, error) {
	return s.list(ctx, `
		SELECT `+memberColumns+` FROM members
		WHERE status = 'pending'
		  AND is_verified = FALSE
		  AND reminder_email_sent = FALSE
		  AND verification_method IS NOT NULL
		  AND method_selected_at < $1
		ORDER BY method_selected_at, id`, cutoff)
}

func (s *PostgresDirectory) list(ctx context.Context, query string, args ...any) ([]*models.Member, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []*models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func insertEvent(ctx context.Context, q queryer, ev models.VerificationEvent) error {
	meta, err := json.Marshal(ev.EventMeta)
	if err != nil {
		return fmt.Errorf("marshal event meta: %w", err)
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO verification_events (id, member_id, event_type, event_meta, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, ev.MemberID, string(ev.EventType), meta, ev.CreatedAt,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert verification event: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (*models.Member, error) {
	var (
		m                                 models.Member
		status                            string
		verificationStatus, method        sql.NullString
		verifiedAt, selectedAt, purgeAt   sql.NullTime
		deletedAt                         sql.NullTime
		badgePath, deletedBy, reason, typ sql.NullString
	)
	err := row.Scan(
		&m.ID, &m.QLID, &m.FullName, &m.Email, &status, &verificationStatus, &method,
		&m.IsVerified, &verifiedAt, &selectedAt, &badgePath, &purgeAt,
		&m.ReminderEmailSent, &deletedAt, &deletedBy, &reason, &typ,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Status = models.Status(status)
	m.VerificationStatus = models.VerificationStatus(verificationStatus.String)
	m.VerificationMethod = models.Method(method.String)
	m.VerifiedAt = timePtr(verifiedAt)
	m.MethodSelectedAt = timePtr(selectedAt)
	m.ArtifactsPurgeAt = timePtr(purgeAt)
	m.DeletedAt = timePtr(deletedAt)
	m.BadgeObjectPath = stringPtr(badgePath)
	m.DeletedBy = stringPtr(deletedBy)
	m.DeletionReason = stringPtr(reason)
	if typ.Valid {
		t := models.DeletionType(typ.String)
		m.DeletionType = &t
	}
	return &m, nil
}

func memberArgs(m *models.Member) []any {
	var deletionType *string
	if m.DeletionType != nil {
		v := string(*m.DeletionType)
		deletionType = &v
	}
	return []any{
		m.ID, string(m.QLID), m.FullName, m.Email, string(m.Status),
		nullString(string(m.VerificationStatus)), nullString(string(m.VerificationMethod)),
		m.IsVerified, m.VerifiedAt, m.MethodSelectedAt, m.BadgeObjectPath, m.ArtifactsPurgeAt,
		m.ReminderEmailSent, m.DeletedAt, m.DeletedBy, m.DeletionReason, deletionType,
		m.CreatedAt, m.UpdatedAt,
	}
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
