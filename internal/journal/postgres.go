package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/binance-meta/internal/model"
)

// journalSchema holds one row per poll attempt. The (kind, sequence) key
// makes replayed appends harmless.
const journalSchema = `
CREATE TABLE IF NOT EXISTS poll_journal (
	kind        TEXT   NOT NULL,
	sequence    BIGINT NOT NULL,
	attempt_id  UUID   NOT NULL,
	fetched_at  BIGINT NOT NULL,
	written_at  BIGINT NOT NULL,
	outcome     TEXT   NOT NULL,
	error_kind  TEXT   NOT NULL DEFAULT '',
	payload     JSONB,
	PRIMARY KEY (kind, sequence)
)`

// PostgresJournal stores entries in the poll_journal table. The pool is
// owned by the caller and stays open after Close.
type PostgresJournal struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres creates a postgres journal and ensures its table exists.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (*PostgresJournal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := pool.Exec(ctx, journalSchema); err != nil {
		return nil, fmt.Errorf("ensure journal table: %w", err)
	}

	return &PostgresJournal{
		pool:   pool,
		logger: logger,
	}, nil
}

// Append inserts one entry with ON CONFLICT DO NOTHING, so an already-stored
// (kind, sequence) pair is never overwritten.
func (j *PostgresJournal) Append(ctx context.Context, entry *model.LogEntry) error {
	var payload []byte
	if entry.Payload != nil {
		raw, err := json.Marshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		payload = raw
	}

	ct, err := j.pool.Exec(ctx, `
		INSERT INTO poll_journal (kind, sequence, attempt_id, fetched_at, written_at, outcome, error_kind, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (kind, sequence) DO NOTHING
	`, string(entry.Kind), int64(entry.Sequence), entry.AttemptID.String(),
		entry.FetchedAt, entry.WrittenAt, string(entry.Outcome), string(entry.ErrKind), payload)
	if err != nil {
		return fmt.Errorf("append %s entry: %w", entry.Kind, err)
	}

	if ct.RowsAffected() == 0 {
		j.logger.Warn("journal entry already present",
			"kind", entry.Kind,
			"sequence", entry.Sequence,
		)
	}
	return nil
}

// ReadKind streams the kind's rows in sequence order.
func (j *PostgresJournal) ReadKind(ctx context.Context, kind model.ResourceKind, fn func(model.LogEntry) error) error {
	rows, err := j.pool.Query(ctx, `
		SELECT sequence, attempt_id, fetched_at, written_at, outcome, error_kind, payload
		FROM poll_journal
		WHERE kind = $1
		ORDER BY sequence ASC
	`, string(kind))
	if err != nil {
		return fmt.Errorf("query %s entries: %w", kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanEntry(kind, rows)
		if err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read %s entries: %w", kind, err)
	}
	return nil
}

// LastEntry returns the row with the highest sequence for kind.
func (j *PostgresJournal) LastEntry(ctx context.Context, kind model.ResourceKind) (*model.LogEntry, bool, error) {
	row := j.pool.QueryRow(ctx, `
		SELECT sequence, attempt_id, fetched_at, written_at, outcome, error_kind, payload
		FROM poll_journal
		WHERE kind = $1
		ORDER BY sequence DESC
		LIMIT 1
	`, string(kind))

	entry, err := scanEntry(kind, row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &entry, true, nil
}

// Close is a no-op; the pool belongs to the caller.
func (j *PostgresJournal) Close() error {
	return nil
}

// scanEntry builds a LogEntry from one journal row.
func scanEntry(kind model.ResourceKind, row pgx.Row) (model.LogEntry, error) {
	var (
		seq       int64
		attemptID string
		fetchedAt int64
		writtenAt int64
		outcome   string
		errKind   string
		payload   []byte
	)
	if err := row.Scan(&seq, &attemptID, &fetchedAt, &writtenAt, &outcome, &errKind, &payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.LogEntry{}, err
		}
		return model.LogEntry{}, fmt.Errorf("scan %s entry: %w", kind, err)
	}

	id, err := uuid.Parse(attemptID)
	if err != nil {
		return model.LogEntry{}, fmt.Errorf("parse attempt id: %w", err)
	}

	entry := model.LogEntry{
		Snapshot: model.Snapshot{
			Kind:      kind,
			AttemptID: id,
			Sequence:  uint64(seq),
			FetchedAt: fetchedAt,
			Outcome:   model.Outcome(outcome),
			ErrKind:   model.ErrorKind(errKind),
		},
		WrittenAt: writtenAt,
	}

	if len(payload) > 0 {
		p, err := decodePayload(kind, payload)
		if err != nil {
			return model.LogEntry{}, err
		}
		entry.Payload = p
	}
	return entry, nil
}
