package retention

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"monitoring/internal/config"

	"github.com/nats-io/nats.go"
)

// kvKeyPrefix namespaces encoded notifier keys; descriptions may hold characters KV keys reject.
const kvKeyPrefix = "n."

// NATSStore persists retention records in a JetStream KV bucket.
// Params: NATS connection and KV bucket handle.
// Returns: KV-backed retention store implementation.
type NATSStore struct {
	nc *nats.Conn
	kv nats.KeyValue
}

// NewNATSStore opens (or creates) the retention bucket.
// Params: retention settings from config.
// Returns: initialized NATS store or setup error.
func NewNATSStore(settings config.RetentionConfig) (*NATSStore, error) {
	nc, err := nats.Connect(strings.Join(settings.URL, ","), nats.Name("monitoring-retention"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.KeyValue(settings.Bucket)
	if err != nil {
		if !settings.AllowCreateBucket {
			nc.Close()
			return nil, fmt.Errorf("open retention bucket %q: %w", settings.Bucket, err)
		}
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      settings.Bucket,
			Description: "notifier retention records",
			History:     1,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create retention bucket %q: %w", settings.Bucket, err)
		}
	}

	return &NATSStore{nc: nc, kv: kv}, nil
}

// Get reads one record and its KV revision.
// Params: notifier key.
// Returns: record payload, revision, or ErrNotFound.
func (s *NATSStore) Get(_ context.Context, key string) (Record, uint64, error) {
	entry, err := s.kv.Get(encodeKey(key))
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return Record{}, 0, ErrNotFound
		}
		return Record{}, 0, fmt.Errorf("get record: %w", err)
	}

	var record Record
	if err := json.Unmarshal(entry.Value(), &record); err != nil {
		return Record{}, 0, fmt.Errorf("decode record %q: %w", key, err)
	}
	return record, entry.Revision(), nil
}

// Put writes record payload unconditionally.
// Params: notifier key and record payload.
// Returns: new KV revision.
func (s *NATSStore) Put(_ context.Context, key string, record Record) (uint64, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return 0, fmt.Errorf("encode record: %w", err)
	}
	rev, err := s.kv.Put(encodeKey(key), body)
	if err != nil {
		return 0, fmt.Errorf("put record: %w", err)
	}
	return rev, nil
}

// Update replaces record payload using expected revision CAS.
// Params: notifier key, expected revision, and replacement payload.
// Returns: new KV revision or ErrConflict.
func (s *NATSStore) Update(_ context.Context, key string, expectedRevision uint64, record Record) (uint64, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return 0, fmt.Errorf("encode record: %w", err)
	}
	rev, err := s.kv.Update(encodeKey(key), body, expectedRevision)
	if err != nil {
		if errors.Is(err, nats.ErrKeyExists) || strings.Contains(strings.ToLower(err.Error()), "wrong last sequence") {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("update record: %w", err)
	}
	return rev, nil
}

// Delete removes one record.
// Params: notifier key.
// Returns: delete error.
func (s *NATSStore) Delete(_ context.Context, key string) error {
	if err := s.kv.Delete(encodeKey(key)); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Keys lists decoded record keys in lexical order.
// Params: none.
// Returns: keys or listing error.
func (s *NATSStore) Keys(_ context.Context) ([]string, error) {
	raw, err := s.kv.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list keys: %w", err)
	}
	keys := make([]string, 0, len(raw))
	for _, encoded := range raw {
		key, ok := decodeKey(encoded)
		if !ok {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes underlying NATS connection.
// Params: none.
// Returns: nil after connection close.
func (s *NATSStore) Close() error {
	s.nc.Close()
	return nil
}

func encodeKey(key string) string {
	return kvKeyPrefix + base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeKey(encoded string) (string, bool) {
	if !strings.HasPrefix(encoded, kvKeyPrefix) {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(encoded, kvKeyPrefix))
	if err != nil {
		return "", false
	}
	return string(raw), true
}
