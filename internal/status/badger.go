// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package status

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ManuGH/vodladder/internal/job"
	"github.com/dgraph-io/badger/v4"
)

// Badger stores each record as JSON under "job:<id>" in an embedded
// key-value store.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens the store at path. An empty path runs fully in memory.
func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db}, nil
}

func badgerKey(jobID string) []byte { return []byte("job:" + jobID) }

// update runs fn against the current record (zero if absent) and writes it
// back in the same transaction.
func (b *Badger) update(jobID string, fn func(*job.Record)) error {
	key := badgerKey(jobID)
	return b.db.Update(func(txn *badger.Txn) error {
		var rec job.Record
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
		}
		fn(&rec)
		buf, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(key, buf)
	})
}

func (b *Badger) SetStatus(_ context.Context, t Transition) error {
	if err := validTransition(t); err != nil {
		return err
	}
	return b.update(t.JobID, func(rec *job.Record) { apply(rec, t) })
}

func (b *Badger) PutMetadata(_ context.Context, jobID string, md job.MediaMetadata, at time.Time) error {
	if err := job.ValidateID(jobID); err != nil {
		return err
	}
	return b.update(jobID, func(rec *job.Record) {
		rec.JobID = jobID
		cp := md
		rec.Metadata = &cp
		touch(rec, at)
	})
}

func (b *Badger) Get(_ context.Context, jobID string) (job.Record, error) {
	var rec job.Record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(jobID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return job.Record{}, ErrNotFound
	}
	return rec, err
}

func (b *Badger) Ping(context.Context) error {
	if b.db.IsClosed() {
		return errors.New("status: badger closed")
	}
	return nil
}

func (b *Badger) Close() error { return b.db.Close() }
