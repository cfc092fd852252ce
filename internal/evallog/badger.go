// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

package evallog

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/roadguard/roadguard/internal/logging"
	"github.com/roadguard/roadguard/internal/report"
)

const resultPrefix = "result:"

// sequence lease size; released on Close.
const seqBandwidth = 128

// BadgerConfig configures the persistent evaluation log.
type BadgerConfig struct {
	Path       string `koanf:"path"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// Badger is the persistent appender: an append-only BadgerDB log keyed by a
// monotonic sequence so results replay in append order. Counters cover the
// current run only; the on-disk log is the durable record.
type Badger struct {
	tally

	db  *badger.DB
	seq *badger.Sequence

	// mu gates appends against Close: writers hold the read side for the
	// whole append so the sequence cannot be released mid-write.
	mu     sync.RWMutex
	closed bool
}

// OpenBadger opens (or creates) the log at the configured path. truth may
// be nil.
func OpenBadger(cfg BadgerConfig, truth *TruthRegistry) (*Badger, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("evallog: empty path")
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open evaluation log: %w", err)
	}
	seq, err := db.GetSequence([]byte("seq:results"), seqBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("evaluation log sequence: %w", err)
	}

	b := &Badger{db: db, seq: seq}
	b.tally.truth = truth
	logging.Info().Str("path", cfg.Path).Bool("sync_writes", cfg.SyncWrites).Msg("evaluation log opened")
	return b, nil
}

// Append persists the result and advances the counters.
func (b *Badger) Append(_ context.Context, res *report.DetectionResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("evallog: appender closed")
	}

	n, err := b.seq.Next()
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	key := []byte(fmt.Sprintf("%s%016x:%s", resultPrefix, n, res.ReportID))
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, data))
	})
	if err != nil {
		return fmt.Errorf("append result: %w", err)
	}

	b.observe(res)
	return nil
}

// MarkDropped counts a report rejected before reaching the engine.
func (b *Badger) MarkDropped() { b.markDropped() }

// Counters returns the tallies accumulated since the log was opened.
func (b *Badger) Counters() Counters { return b.counters() }

// Replay walks the persisted results in append order.
func (b *Badger) Replay(fn func(res *report.DetectionResult) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(resultPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var res report.DetectionResult
				if err := json.Unmarshal(val, &res); err != nil {
					return fmt.Errorf("decode result %s: %w", it.Item().Key(), err)
				}
				return fn(&res)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the sequence lease and closes the database.
func (b *Badger) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.seq.Release(); err != nil {
		logging.Err(err).Msg("release evaluation log sequence")
	}
	return b.db.Close()
}
