package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// Manager loads and saves retention records with revision tracking.
// Params: backing store and logger.
// Returns: retention coordinator owned by the engine goroutine.
type Manager struct {
	store     Store
	logger    *slog.Logger
	revisions map[string]uint64
}

// NewManager creates retention manager.
// Params: store backend and logger (nil discards logs).
// Returns: manager.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		store:     store,
		logger:    logger.With("component", "retention"),
		revisions: make(map[string]uint64),
	}
}

// Load reads every stored record.
// Params: context.
// Returns: records by key (EngineKey included when present); unreadable
// records are logged and skipped.
func (m *Manager) Load(ctx context.Context) (map[string]Record, error) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list retention keys: %w", err)
	}
	records := make(map[string]Record, len(keys))
	for _, key := range keys {
		record, rev, err := m.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			m.logger.Warn("retention record skipped", "key", key, "error", err.Error())
			continue
		}
		m.revisions[key] = rev
		records[key] = record
	}
	m.logger.Info("retention loaded", "records", len(records))
	return records, nil
}

// Save writes records using revision CAS where the revision is known.
// Params: context and records by key.
// Returns: number of written records and joined write errors.
func (m *Manager) Save(ctx context.Context, records map[string]Record) (int, error) {
	keys := make([]string, 0, len(records))
	for key := range records {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var (
		written  int
		problems []error
	)
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			problems = append(problems, err)
			break
		}
		if err := m.save(ctx, key, records[key]); err != nil {
			problems = append(problems, fmt.Errorf("save %q: %w", key, err))
			continue
		}
		written++
	}
	return written, errors.Join(problems...)
}

func (m *Manager) save(ctx context.Context, key string, record Record) error {
	if rev, ok := m.revisions[key]; ok {
		next, err := m.store.Update(ctx, key, rev, record)
		if err == nil {
			m.revisions[key] = next
			return nil
		}
		if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrNotFound) {
			return err
		}
		// The engine is the only writer of its keys; a foreign revision is overwritten.
		m.logger.Warn("retention revision mismatch, overwriting", "key", key, "error", err.Error())
	}
	next, err := m.store.Put(ctx, key, record)
	if err != nil {
		return err
	}
	m.revisions[key] = next
	return nil
}

// Close closes the backing store.
func (m *Manager) Close() error {
	return m.store.Close()
}
