// Package badgerstore keeps the ledger in an embedded Badger database for
// single-node deployments that do not run Postgres.
//
// Key layout:
//
//	evt/<seq:020d>          JSON event
//	ent/<id>                JSON entity record
//	sub/<subject>/<seq>     empty, subject index
//	meta/seq                last assigned sequence number
package badgerstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/adw-ith/hack25-spicechain/internal/core"
)

var seqKey = []byte("meta/seq")

type Store struct {
	db *badger.DB
	mu sync.Mutex // serializes sequence assignment
}

// Open opens (or creates) a store in dir. An empty dir opens an in-memory
// database. On disk every append is fsynced before AppendEvents returns.
func Open(dir string, log *zap.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{log.Sugar()})
	if dir == "" {
		opts = opts.WithInMemory(true)
	} else {
		opts = opts.WithSyncWrites(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Durable reports whether appends reach disk before they are acknowledged.
func (s *Store) Durable() bool {
	return s.db.Opts().SyncWrites
}

func eventKey(seq int64) []byte {
	return []byte(fmt.Sprintf("evt/%020d", seq))
}

func entityKey(id string) []byte {
	return []byte("ent/" + id)
}

func subjectPrefix(id string) []byte {
	return []byte("sub/" + id + "/")
}

// AppendEvents implements core.EntityStore. All events and entities are
// written in one badger transaction.
func (s *Store) AppendEvents(ctx context.Context, events ...*core.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var seqs []int64
	err := s.db.Update(func(txn *badger.Txn) error {
		last, err := readSeq(txn)
		if err != nil {
			return err
		}
		for _, ev := range events {
			last++
			rec := *ev
			rec.Seq = last
			seqs = append(seqs, last)

			for _, ent := range rec.Entities() {
				key := entityKey(ent.ID())
				if _, err := txn.Get(key); err == nil {
					return fmt.Errorf("entity %s already exists", ent.ID())
				} else if !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
				data, err := json.Marshal(ent)
				if err != nil {
					return fmt.Errorf("failed to encode entity %s: %w", ent.ID(), err)
				}
				if err := txn.Set(key, data); err != nil {
					return err
				}
			}

			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to encode event %s: %w", rec.ID, err)
			}
			if err := txn.Set(eventKey(last), data); err != nil {
				return err
			}
			idx := append(subjectPrefix(rec.SubjectID), strconv.FormatInt(last, 10)...)
			if err := txn.Set(idx, nil); err != nil {
				return err
			}
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(last))
		return txn.Set(seqKey, buf)
	})
	if err != nil {
		return fmt.Errorf("failed to append events: %w", err)
	}
	for i, ev := range events {
		ev.Seq = seqs[i]
	}
	return nil
}

func readSeq(txn *badger.Txn) (int64, error) {
	item, err := txn.Get(seqKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var seq int64
	err = item.Value(func(val []byte) error {
		seq = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return seq, err
}

// GetEntity implements core.EntityStore.
func (s *Store) GetEntity(_ context.Context, id string) (*core.Entity, error) {
	var ent core.Entity
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entityKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &ent)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, &core.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read entity %s: %w", id, err)
	}
	return &ent, nil
}

// EventsBySubject implements core.EntityStore.
func (s *Store) EventsBySubject(_ context.Context, ids []string) ([]core.Event, error) {
	var out []core.Event
	err := s.db.View(func(txn *badger.Txn) error {
		seen := make(map[int64]bool)
		var seqs []int64
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for _, id := range ids {
			prefix := subjectPrefix(id)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				key := string(it.Item().Key())
				seq, err := strconv.ParseInt(strings.TrimPrefix(key, string(prefix)), 10, 64)
				if err != nil {
					return fmt.Errorf("corrupt subject index key %q: %w", key, err)
				}
				if !seen[seq] {
					seen[seq] = true
					seqs = append(seqs, seq)
				}
			}
		}
		sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

		for _, seq := range seqs {
			item, err := txn.Get(eventKey(seq))
			if err != nil {
				return fmt.Errorf("event %d: %w", seq, err)
			}
			var ev core.Event
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &ev) }); err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return out, nil
}

// Replay implements core.EntityStore.
func (s *Store) Replay(ctx context.Context, fn func(core.Event) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		prefix := []byte("evt/")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var ev core.Event
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &ev) }); err != nil {
				return fmt.Errorf("failed to decode %s: %w", it.Item().Key(), err)
			}
			if err := fn(ev); err != nil {
				return err
			}
		}
		return nil
	})
}

// badgerLogger routes badger's internal logging through zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.Warnf(format, args...)
}
