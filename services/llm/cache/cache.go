// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides an on-disk replay cache for completion calls.
//
// Enrichment prompts are highly repetitive: re-running a dashboard column
// over a mostly unchanged record set re-issues mostly identical batch
// prompts. Caching completions keyed by the full request (model, messages,
// generation parameters) turns those re-runs into local reads.
//
// Design choices:
//
//  1. BadgerDB (embedded): completions are service infrastructure, not user
//     data. No network call, no availability dependency.
//
//  2. Request hash as cache key: SHA256 over the effective model, every
//     message, and the generation parameters. Any change to the prompt,
//     the model, or the sampling settings produces a different hash, so no
//     explicit invalidation API is needed.
//
//  3. BadgerDB native TTL: expiry is enforced by Badger's GC, not by
//     application code. Expired keys return ErrKeyNotFound, which the
//     store treats as a cache miss.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/summit/services/llm"
)

// defaultTTL is the default lifetime of a cached completion. A day is long
// enough to cover repeated dashboard runs without serving stale answers for
// fast-moving data.
const defaultTTL = 24 * time.Hour

// keyPrefix is prepended to the request hash to form the Badger key.
// Versioned (v1) to allow future format changes without collision.
const keyPrefix = "enrich/completion/v1/"

// errMiss distinguishes "key not found" (a normal miss) from a genuine
// storage error inside Load.
var errMiss = errors.New("cache miss")

// Store persists completion replies across service restarts.
//
// Description:
//
//	All methods are nil-safe at the call site: callers check for a nil
//	Store and skip caching, which is the correct behavior for tests and
//	for deployments that do not configure a cache directory.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Load retrieves a cached reply for the given request hash.
	// Returns ("", false, nil) on miss (key absent or TTL expired).
	Load(ctx context.Context, key string) (string, bool, error)

	// Save persists a reply under the given request hash. Persistence
	// failure is non-fatal to the caller: the reply was already obtained,
	// the next identical request simply pays for a fresh call.
	Save(ctx context.Context, key, reply string) error

	// Close releases the underlying storage.
	Close() error
}

// =============================================================================
// BadgerStore
// =============================================================================

// BadgerStore implements Store backed by an embedded BadgerDB.
//
// Thread Safety: Safe for concurrent use. Badger transactions are
// per-goroutine.
type BadgerStore struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// OpenBadgerStore opens (or creates) a Badger-backed completion cache at dir.
//
// Inputs:
//   - dir: Directory for the Badger database. Created if absent.
//   - ttl: Lifetime for each cached entry. Pass 0 to use the default (24h).
//   - logger: Logger for hit/miss diagnostics. May be nil.
//
// Outputs:
//   - *BadgerStore: Ready-to-use store. Nil on error.
//   - error: Non-nil if the database could not be opened.
func OpenBadgerStore(dir string, ttl time.Duration, logger *slog.Logger) (*BadgerStore, error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening completion cache at %s: %w", dir, err)
	}
	return &BadgerStore{db: db, ttl: ttl, logger: logger}, nil
}

// Load retrieves a cached reply. Returns ("", false, nil) on miss.
func (s *BadgerStore) Load(_ context.Context, key string) (string, bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errMiss
		}
		if err != nil {
			return fmt.Errorf("get cache key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, errMiss) {
		s.logger.Debug("completion cache: miss", slog.String("key", shortKey(key)))
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("completion cache load: %w", err)
	}

	s.logger.Debug("completion cache: hit", slog.String("key", shortKey(key)))
	return string(raw), true, nil
}

// Save persists a reply with the configured TTL.
func (s *BadgerStore) Save(_ context.Context, key, reply string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(keyPrefix+key), []byte(reply)).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("completion cache save: %w", err)
	}
	s.logger.Debug("completion cache: saved",
		slog.String("key", shortKey(key)),
		slog.Duration("ttl", s.ttl),
	)
	return nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// shortKey returns the first 8 characters of a request hash for log display.
func shortKey(k string) string {
	if len(k) > 8 {
		return k[:8] + "..."
	}
	return k
}

// =============================================================================
// MemoryStore
// =============================================================================

// MemoryStore implements Store with a plain map. For tests.
//
// Thread Safety: NOT safe for concurrent use.
type MemoryStore struct {
	entries map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (string, bool, error) {
	reply, ok := s.entries[key]
	return reply, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, key, reply string) error {
	s.entries[key] = reply
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// =============================================================================
// Request Hash
// =============================================================================

// hashRequest computes a deterministic SHA256 digest over everything that
// determines a completion's content: the effective model, each message's
// role and content, and the generation parameters.
func hashRequest(model string, messages []llm.Message, params llm.GenerationParams) string {
	h := sha256.New()
	fmt.Fprintf(h, "model=%s\n", model)
	for _, m := range messages {
		// Length-prefixed fields so content containing delimiters cannot
		// collide with a different message split.
		fmt.Fprintf(h, "msg\t%d\t%s\t%d\t%s\n", len(m.Role), m.Role, len(m.Content), m.Content)
	}
	if params.Temperature != nil {
		fmt.Fprintf(h, "temperature=%g\n", *params.Temperature)
	}
	if params.MaxTokens != nil {
		fmt.Fprintf(h, "max_tokens=%d\n", *params.MaxTokens)
	}
	if params.TopP != nil {
		fmt.Fprintf(h, "top_p=%g\n", *params.TopP)
	}
	for _, stop := range params.Stop {
		fmt.Fprintf(h, "stop\t%d\t%s\n", len(stop), stop)
	}
	return hex.EncodeToString(h.Sum(nil))
}
