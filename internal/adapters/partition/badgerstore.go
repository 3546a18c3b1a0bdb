package partition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/momenta/cohortd/internal/domain/cohort"
)

// Key layout inside Badger. The "!" separator never appears in user
// IDs (UUIDs) or canonical cohort keys.
const (
	userPrefix   = "u!"
	memberPrefix = "c!"
	metaPrefix   = "m!"
	movePrefix   = "v!"

	moveSeqKey       = "seq!movements"
	moveSeqBandwidth = 128
)

type badgerMeta struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BadgerStore implements Store and MovementLog on an embedded Badger
// database. Transfer runs in a single read-write transaction, so the
// per-user move stays atomic across process restarts.
type BadgerStore struct {
	db      *badger.DB
	moveSeq *badger.Sequence
	now     func() time.Time
}

// BadgerConfig holds configuration for a BadgerStore.
type BadgerConfig struct {
	// Path is the directory for Badger files. Ignored when InMemory.
	Path string

	// InMemory disables disk persistence; used by tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool
}

// OpenBadger opens (or creates) a Badger-backed partition store.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}
	seq, err := db.GetSequence([]byte(moveSeqKey), moveSeqBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open movement sequence: %w", err)
	}
	return &BadgerStore{db: db, moveSeq: seq, now: time.Now}, nil
}

// Close releases the movement sequence and closes the database.
func (s *BadgerStore) Close() error {
	if err := s.moveSeq.Release(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}

func userKeyBytes(userID string) []byte {
	return []byte(userPrefix + userID)
}

func memberKeyBytes(key cohort.Key, userID string) []byte {
	return []byte(memberPrefix + key.String() + "!" + userID)
}

func memberScanPrefix(key cohort.Key) []byte {
	return []byte(memberPrefix + key.String() + "!")
}

func metaKeyBytes(key cohort.Key) []byte {
	return []byte(metaPrefix + key.String())
}

// Transfer atomically moves a user between cohorts.
func (s *BadgerStore) Transfer(_ context.Context, userID string, from, to cohort.Key) error {
	if to.IsZero() {
		return ErrInvalidKey
	}
	if err := validateUserID(userID); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(userKeyBytes(userID))
		switch {
		case err == nil:
			cur, verr := item.ValueCopy(nil)
			if verr != nil {
				return verr
			}
			if string(cur) != from.String() {
				return ErrConcurrencyConflict
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			if !from.IsZero() {
				return ErrConcurrencyConflict
			}
		default:
			return err
		}

		now := s.now()

		if !from.IsZero() {
			if err := txn.Delete(memberKeyBytes(from, userID)); err != nil {
				return err
			}
			empty, err := cohortEmpty(txn, from)
			if err != nil {
				return err
			}
			if empty {
				if err := txn.Delete(metaKeyBytes(from)); err != nil {
					return err
				}
			} else if err := touchMeta(txn, from, now, false); err != nil {
				return err
			}
		}

		if err := txn.Set(memberKeyBytes(to, userID), nil); err != nil {
			return err
		}
		if err := touchMeta(txn, to, now, true); err != nil {
			return err
		}
		return txn.Set(userKeyBytes(userID), []byte(to.String()))
	})
}

func cohortEmpty(txn *badger.Txn, key cohort.Key) (bool, error) {
	prefix := memberScanPrefix(key)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()
	it.Seek(prefix)
	return !it.ValidForPrefix(prefix), nil
}

func touchMeta(txn *badger.Txn, key cohort.Key, now time.Time, createIfMissing bool) error {
	var meta badgerMeta
	item, err := txn.Get(metaKeyBytes(key))
	switch {
	case err == nil:
		raw, verr := item.ValueCopy(nil)
		if verr != nil {
			return verr
		}
		if jerr := json.Unmarshal(raw, &meta); jerr != nil {
			return jerr
		}
	case errors.Is(err, badger.ErrKeyNotFound):
		if !createIfMissing {
			return nil
		}
		meta.CreatedAt = now
	default:
		return err
	}
	meta.UpdatedAt = now
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return txn.Set(metaKeyBytes(key), raw)
}

// Members returns sorted member IDs for a cohort.
func (s *BadgerStore) Members(_ context.Context, key cohort.Key) ([]string, error) {
	prefix := memberScanPrefix(key)
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := string(it.Item().Key())
			ids = append(ids, k[len(prefix):])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// UserKey returns the user's current cohort key.
func (s *BadgerStore) UserKey(_ context.Context, userID string) (cohort.Key, error) {
	var key cohort.Key
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKeyBytes(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		key, err = cohort.ParseKey(string(raw))
		return err
	})
	if err != nil {
		return cohort.Key{}, err
	}
	return key, nil
}

// Keys enumerates non-empty cohorts in canonical order.
func (s *BadgerStore) Keys(_ context.Context) ([]cohort.Key, error) {
	seen := make(map[string]struct{})
	prefix := []byte(metaPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			seen[string(it.Item().Key())[len(metaPrefix):]] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	keys := make([]cohort.Key, 0, len(seen))
	for s := range seen {
		k, err := cohort.ParseKey(s)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

// Cohort returns the materialized state of one cohort.
func (s *BadgerStore) Cohort(ctx context.Context, key cohort.Key) (cohort.Cohort, error) {
	ids, err := s.Members(ctx, key)
	if err != nil {
		return cohort.Cohort{}, err
	}
	if len(ids) == 0 {
		return cohort.Cohort{}, ErrCohortNotFound
	}

	var meta badgerMeta
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKeyBytes(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, &meta)
	})
	if err != nil {
		return cohort.Cohort{}, err
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return cohort.Cohort{
		Key:         key,
		MemberIDs:   set,
		MemberCount: len(set),
		CreatedAt:   meta.CreatedAt,
		UpdatedAt:   meta.UpdatedAt,
	}, nil
}

// Append records one movement under a monotonically increasing
// sequence number, preserving append order.
func (s *BadgerStore) Append(_ context.Context, mv cohort.Movement) error {
	seq, err := s.moveSeq.Next()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(mv)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%016x", movePrefix, seq)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
}

// Movements returns all recorded movements for a user, oldest first.
func (s *BadgerStore) Movements(_ context.Context, userID string) ([]cohort.Movement, error) {
	var out []cohort.Movement
	prefix := []byte(movePrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var mv cohort.Movement
			if err := json.Unmarshal(raw, &mv); err != nil {
				return err
			}
			if mv.UserID == userID {
				out = append(out, mv)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Len returns the total number of recorded movements.
func (s *BadgerStore) Len(_ context.Context) (int, error) {
	n := 0
	prefix := []byte(movePrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

var _ Store = (*BadgerStore)(nil)
var _ MovementLog = (*BadgerStore)(nil)
var _ Store = (*MemoryStore)(nil)
var _ MovementLog = (*MemoryMovementLog)(nil)

// Guard against accidental separator collisions in member IDs.
func validateUserID(id string) error {
	if strings.Contains(id, "!") {
		return fmt.Errorf("user id %q contains reserved separator", id)
	}
	return nil
}
