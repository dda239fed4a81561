package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
)

// SessionRepository persists conversation transcripts and the per-session
// reference carry-over state.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			session_id TEXT PRIMARY KEY,
			granth_name TEXT NOT NULL DEFAULT '',
			prakran_number INT,
			prakran_range_start INT,
			prakran_range_end INT,
			chopai_number INT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			message_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			style_tag TEXT NOT NULL DEFAULT '',
			citations JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages (session_id, created_at)`,
	}
	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply session schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session schema: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetSessionContext(ctx context.Context, sessionID string) (domain.SessionContextState, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT granth_name, prakran_number, prakran_range_start, prakran_range_end, chopai_number
FROM chat_sessions
WHERE session_id = $1
`, sessionID)

	var state domain.SessionContextState
	var prakran, rangeStart, rangeEnd, chopai sql.NullInt64
	if err := row.Scan(&state.GranthName, &prakran, &rangeStart, &rangeEnd, &chopai); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SessionContextState{}, fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionNotFound)
		}
		return domain.SessionContextState{}, fmt.Errorf("get session context: %w", err)
	}
	state.PrakranNumber = nullableInt(prakran)
	state.PrakranRangeStart = nullableInt(rangeStart)
	state.PrakranRangeEnd = nullableInt(rangeEnd)
	state.ChopaiNumber = nullableInt(chopai)
	return state, nil
}

func (r *SessionRepository) UpsertSessionContext(ctx context.Context, sessionID string, state domain.SessionContextState) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO chat_sessions (session_id, granth_name, prakran_number, prakran_range_start, prakran_range_end, chopai_number, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
ON CONFLICT (session_id) DO UPDATE SET
	granth_name = EXCLUDED.granth_name,
	prakran_number = EXCLUDED.prakran_number,
	prakran_range_start = EXCLUDED.prakran_range_start,
	prakran_range_end = EXCLUDED.prakran_range_end,
	chopai_number = EXCLUDED.chopai_number,
	updated_at = EXCLUDED.updated_at
`, sessionID, state.GranthName, state.PrakranNumber, state.PrakranRangeStart, state.PrakranRangeEnd, state.ChopaiNumber, now)
	if err != nil {
		return fmt.Errorf("upsert session context: %w", err)
	}
	return nil
}

func (r *SessionRepository) AppendMessage(ctx context.Context, msg domain.MessageRecord) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	citations := msg.Citations
	if citations == nil {
		citations = []domain.Citation{}
	}
	encoded, err := json.Marshal(citations)
	if err != nil {
		return fmt.Errorf("encode citations: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO chat_messages (message_id, session_id, role, content, style_tag, citations, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, msg.MessageID, msg.SessionID, msg.Role, msg.Text, msg.StyleTag, encoded, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (r *SessionRepository) RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.MessageRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT message_id, session_id, role, content, style_tag, citations, created_at
FROM chat_messages
WHERE session_id = $1
ORDER BY created_at DESC
LIMIT $2
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()

	out, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *SessionRepository) SessionMessages(ctx context.Context, sessionID string) ([]domain.MessageRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT message_id, session_id, role, content, style_tag, citations, created_at
FROM chat_messages
WHERE session_id = $1
ORDER BY created_at ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *SessionRepository) ListSessions(ctx context.Context, limit int) ([]domain.SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT m.session_id,
	COALESCE((SELECT content FROM chat_messages WHERE session_id = m.session_id AND role = 'user' ORDER BY created_at ASC LIMIT 1), ''),
	COALESCE((SELECT content FROM chat_messages WHERE session_id = m.session_id ORDER BY created_at DESC LIMIT 1), ''),
	COUNT(*),
	MAX(m.created_at)
FROM chat_messages m
GROUP BY m.session_id
ORDER BY MAX(m.created_at) DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionRecord
	for rows.Next() {
		var record domain.SessionRecord
		if err := rows.Scan(
			&record.SessionID,
			&record.TitleText,
			&record.PreviewText,
			&record.MessageCount,
			&record.LastMessageAt,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		record.TitleText = truncate(record.TitleText, 80)
		record.PreviewText = truncate(record.PreviewText, 160)
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

func scanMessages(rows *sql.Rows) ([]domain.MessageRecord, error) {
	var out []domain.MessageRecord
	for rows.Next() {
		var msg domain.MessageRecord
		var citations []byte
		if err := rows.Scan(
			&msg.MessageID,
			&msg.SessionID,
			&msg.Role,
			&msg.Text,
			&msg.StyleTag,
			&citations,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if len(citations) > 0 {
			if err := json.Unmarshal(citations, &msg.Citations); err != nil {
				return nil, fmt.Errorf("decode citations: %w", err)
			}
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

func nullableInt(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	n := int(value.Int64)
	return &n
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	for limit > 0 && text[limit]&0xC0 == 0x80 {
		limit--
	}
	return text[:limit]
}
