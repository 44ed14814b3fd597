package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/rickgao/binance-meta/internal/model"
)

// Journal is the append-only log of poll attempts. Implementations must make
// Append durable before returning, and must hand back entries for one kind in
// the order they were appended.
type Journal interface {
	// Append writes one entry. The entry is durable when Append returns nil.
	Append(ctx context.Context, entry *model.LogEntry) error

	// ReadKind streams every entry for kind, oldest first. It stops early and
	// returns the callback's error if fn returns non-nil.
	ReadKind(ctx context.Context, kind model.ResourceKind, fn func(model.LogEntry) error) error

	// LastEntry returns the newest entry for kind, or ok=false when the
	// journal holds none.
	LastEntry(ctx context.Context, kind model.ResourceKind) (entry *model.LogEntry, ok bool, err error)

	// Close releases backend resources. The journal is unusable afterwards.
	Close() error
}

// entryRecord is the wire form of a LogEntry. The payload stays raw until the
// kind is known, so one record shape serves all resource kinds.
type entryRecord struct {
	Kind      model.ResourceKind `json:"kind"`
	AttemptID uuid.UUID          `json:"attempt_id"`
	Sequence  uint64             `json:"sequence"`
	FetchedAt int64              `json:"fetched_at_us"`
	WrittenAt int64              `json:"written_at_us"`
	Outcome   model.Outcome      `json:"outcome"`
	ErrKind   model.ErrorKind    `json:"error_kind,omitempty"`
	Payload   json.RawMessage    `json:"payload,omitempty"`
}

// encodeEntry serializes an entry to a single JSON line without the trailing
// newline.
func encodeEntry(entry *model.LogEntry) ([]byte, error) {
	rec := entryRecord{
		Kind:      entry.Kind,
		AttemptID: entry.AttemptID,
		Sequence:  entry.Sequence,
		FetchedAt: entry.FetchedAt,
		WrittenAt: entry.WrittenAt,
		Outcome:   entry.Outcome,
		ErrKind:   entry.ErrKind,
	}

	if entry.Payload != nil {
		raw, err := json.Marshal(entry.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		rec.Payload = raw
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal entry: %w", err)
	}
	return data, nil
}

// decodeEntry parses one JSON line back into a LogEntry, picking the payload
// type from the record's kind.
func decodeEntry(data []byte) (model.LogEntry, error) {
	var rec entryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.LogEntry{}, fmt.Errorf("unmarshal entry: %w", err)
	}
	if !rec.Kind.Valid() {
		return model.LogEntry{}, fmt.Errorf("unknown resource kind %q", rec.Kind)
	}

	entry := model.LogEntry{
		Snapshot: model.Snapshot{
			Kind:      rec.Kind,
			AttemptID: rec.AttemptID,
			Sequence:  rec.Sequence,
			FetchedAt: rec.FetchedAt,
			Outcome:   rec.Outcome,
			ErrKind:   rec.ErrKind,
		},
		WrittenAt: rec.WrittenAt,
	}

	if len(rec.Payload) == 0 {
		return entry, nil
	}

	payload, err := decodePayload(rec.Kind, rec.Payload)
	if err != nil {
		return model.LogEntry{}, err
	}
	entry.Payload = payload
	return entry, nil
}

// decodePayload unmarshals a raw payload into the concrete type for kind.
func decodePayload(kind model.ResourceKind, raw json.RawMessage) (model.Payload, error) {
	switch kind {
	case model.KindExchangeInfo:
		var p model.ExchangeInfoData
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", kind, err)
		}
		return &p, nil
	case model.KindAccountInfo:
		var p model.AccountProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", kind, err)
		}
		return &p, nil
	case model.KindSystemStatus:
		var p model.SystemStatusData
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", kind, err)
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
}
