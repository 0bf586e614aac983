package pebblestore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/roach88/brokercheck/internal/ir"
)

const (
	checkpointPrefix = "checkpoint/"
	lineKey          = "_line"
)

// Options configures the Pebble checkpoint store.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// Sync forces a WAL fsync on every checkpoint. Without it Pebble
	// group-commits syncs within a few milliseconds.
	Sync bool
	// PebbleOptions allows advanced tuning of Pebble. If nil, sensible defaults are used.
	PebbleOptions *pebble.Options
}

// Store persists checkpoints in Pebble.
type Store struct {
	db        *pebble.DB
	writeSync bool
}

// Open creates or opens a Pebble database with the provided options.
func Open(opts Options) (*Store, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebble: Options.DataDir is required")
	}

	// The caller's options are not modified.
	po := &pebble.Options{}
	if opts.PebbleOptions != nil {
		po = opts.PebbleOptions.Clone()
	}
	if !opts.Sync {
		po.WALMinSyncInterval = func() time.Duration { return 5 * time.Millisecond }
	}

	db, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &Store{db: db, writeSync: opts.Sync}, nil
}

// Close closes the Pebble database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// runPrefix returns the key prefix of a run's checkpoint.
func runPrefix(runID string) ([]byte, error) {
	if runID == "" || strings.Contains(runID, "/") {
		return nil, fmt.Errorf("invalid run id %q", runID)
	}
	return []byte(checkpointPrefix + runID + "/"), nil
}

func key(prefix []byte, name string) []byte {
	k := make([]byte, 0, len(prefix)+len(name))
	return append(append(k, prefix...), name...)
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // prefix is all 0xff
}

// SaveCheckpoint replaces the run's checkpoint atomically.
func (s *Store) SaveCheckpoint(ctx context.Context, cp ir.Checkpoint) error {
	prefix, err := runPrefix(cp.RunID)
	if err != nil {
		return err
	}

	b := s.db.NewBatch()
	defer b.Close()

	if err := b.DeleteRange(prefix, prefixEnd(prefix), nil); err != nil {
		return fmt.Errorf("save checkpoint: clear: %w", err)
	}
	for validator, state := range cp.States {
		if validator == "" || validator == lineKey || strings.Contains(validator, "/") {
			return fmt.Errorf("save checkpoint: invalid validator name %q", validator)
		}
		if err := b.Set(key(prefix, validator), []byte(state), nil); err != nil {
			return fmt.Errorf("save checkpoint: %s: %w", validator, err)
		}
	}
	var line [8]byte
	binary.BigEndian.PutUint64(line[:], cp.Line)
	if err := b.Set(key(prefix, lineKey), line[:], nil); err != nil {
		return fmt.Errorf("save checkpoint: line: %w", err)
	}

	syncMode := pebble.NoSync
	if s.writeSync {
		syncMode = pebble.Sync
	}
	if err := b.Commit(syncMode); err != nil {
		return fmt.Errorf("save checkpoint: commit: %w", err)
	}
	return nil
}

// LoadCheckpoint returns the run's checkpoint, or nil if it has none.
func (s *Store) LoadCheckpoint(ctx context.Context, runID string) (*ir.Checkpoint, error) {
	prefix, err := runPrefix(runID)
	if err != nil {
		return nil, err
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	defer iter.Close()

	cp := &ir.Checkpoint{RunID: runID, States: make(map[string]string)}
	hasLine := false
	for iter.First(); iter.Valid(); iter.Next() {
		name := string(iter.Key()[len(prefix):])
		if name == lineKey {
			if len(iter.Value()) != 8 {
				return nil, fmt.Errorf("load checkpoint: corrupt line of run %s", runID)
			}
			cp.Line = binary.BigEndian.Uint64(iter.Value())
			hasLine = true
			continue
		}
		cp.States[name] = string(iter.Value())
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	if !hasLine {
		if len(cp.States) > 0 {
			return nil, fmt.Errorf("load checkpoint: run %s has states but no line", runID)
		}
		return nil, nil
	}
	return cp, nil
}
