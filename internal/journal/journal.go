// Package journal records the mutating API calls the reconciler actually
// performed. Template provisioning is not atomic, so after a failed step the
// journal tells an operator which remote changes were already applied.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/evanofslack/ovh-reconcile/internal/metrics"
)

const entryPrefix = "action:"

type Entry struct {
	RunID  string    `json:"runId"`
	Seq    int       `json:"seq"`
	Kind   string    `json:"kind"`
	Target string    `json:"target"`
	Step   string    `json:"step"`
	Method string    `json:"method"`
	Path   string    `json:"path"`
	Time   time.Time `json:"time"`
}

type Journal interface {
	Append(ctx context.Context, entry Entry) error
	// List returns entries in insertion order, only those of runID when it is set.
	List(ctx context.Context, runID string) ([]Entry, error)
	Close() error
}

type badgerJournal struct {
	db      *badger.DB
	metrics *metrics.Metrics
}

func New(path string, metrics *metrics.Metrics) (Journal, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable Badger's internal logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &badgerJournal{db: db, metrics: metrics}, nil
}

func entryKey(e Entry) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s:%06d", entryPrefix, e.Time.UnixNano(), e.RunID, e.Seq))
}

func (j *badgerJournal) Append(ctx context.Context, entry Entry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		j.metrics.IncJournalRequest("create", false)
		return err
	}

	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(entry), data)
	})
	j.metrics.IncJournalRequest("create", err == nil)
	return err
}

func (j *badgerJournal) List(ctx context.Context, runID string) ([]Entry, error) {
	entries := []Entry{}

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(entryPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var entry Entry
				if err := json.Unmarshal(val, &entry); err != nil {
					return err
				}
				if runID == "" || entry.RunID == runID {
					entries = append(entries, entry)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	j.metrics.IncJournalRequest("read", err == nil)
	return entries, err
}

func (j *badgerJournal) Close() error {
	return j.db.Close()
}

// Discard is used when journaling is disabled.
type Discard struct{}

func (Discard) Append(context.Context, Entry) error            { return nil }
func (Discard) List(context.Context, string) ([]Entry, error) { return []Entry{}, nil }
func (Discard) Close() error                                   { return nil }
