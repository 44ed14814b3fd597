package journal

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/rickgao/binance-meta/internal/model"
)

// maxLineBytes bounds a single journal line. A full exchange info payload
// with every symbol runs to a few megabytes.
const maxLineBytes = 32 << 20

// FileJournal stores entries as JSON lines, one segment file per resource
// kind under dir. Append handles are opened lazily and kept open; reads
// always open a fresh handle.
type FileJournal struct {
	dir        string
	syncWrites bool
	logger     *slog.Logger

	mu    sync.Mutex
	files map[model.ResourceKind]*os.File
}

// NewFile creates a file journal rooted at dir, creating dir if needed. When
// syncWrites is true every append is fsynced before returning.
func NewFile(dir string, syncWrites bool, logger *slog.Logger) (*FileJournal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	return &FileJournal{
		dir:        dir,
		syncWrites: syncWrites,
		logger:     logger,
		files:      make(map[model.ResourceKind]*os.File),
	}, nil
}

// segmentPath returns the segment file for one kind.
func (j *FileJournal) segmentPath(kind model.ResourceKind) string {
	return filepath.Join(j.dir, string(kind)+".log")
}

// Append writes one entry to the kind's segment and syncs it to disk.
func (j *FileJournal) Append(ctx context.Context, entry *model.LogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := j.openLocked(entry.Kind)
	if err != nil {
		return err
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append %s entry: %w", entry.Kind, err)
	}
	if j.syncWrites {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("sync %s segment: %w", entry.Kind, err)
		}
	}
	return nil
}

// openLocked returns the append handle for kind, opening it on first use.
// If the segment ends mid-line from an earlier crash, the torn line is
// terminated so later appends start on a fresh line.
func (j *FileJournal) openLocked(kind model.ResourceKind) (*os.File, error) {
	if f, ok := j.files[kind]; ok {
		return f, nil
	}

	path := j.segmentPath(kind)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s segment: %w", kind, err)
	}

	if err := terminateTornLine(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("repair %s segment: %w", kind, err)
	}

	j.files[kind] = f
	return f, nil
}

// terminateTornLine appends a newline when the file does not end with one.
func terminateTornLine(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}

	_, err = f.Write([]byte{'\n'})
	return err
}

// ReadKind streams the kind's segment oldest first. Lines that fail to
// decode are skipped with a warning; a missing segment reads as empty.
func (j *FileJournal) ReadKind(ctx context.Context, kind model.ResourceKind, fn func(model.LogEntry) error) error {
	f, err := os.Open(j.segmentPath(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s segment: %w", kind, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		entry, err := decodeEntry(line)
		if err != nil {
			j.logger.Warn("skipping unreadable journal line",
				"kind", kind,
				"line", lineNo,
				"error", err,
			)
			continue
		}
		if entry.Kind != kind {
			j.logger.Warn("skipping misfiled journal line",
				"kind", kind,
				"line", lineNo,
				"entry_kind", entry.Kind,
			)
			continue
		}

		if err := fn(entry); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s segment: %w", kind, err)
	}
	return nil
}

// LastEntry returns the newest entry in the kind's segment.
func (j *FileJournal) LastEntry(ctx context.Context, kind model.ResourceKind) (*model.LogEntry, bool, error) {
	var last model.LogEntry
	found := false

	err := j.ReadKind(ctx, kind, func(entry model.LogEntry) error {
		last = entry
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return &last, true, nil
}

// Close closes all open segment handles.
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var firstErr error
	for kind, f := range j.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s segment: %w", kind, err)
		}
		delete(j.files, kind)
	}
	return firstErr
}
