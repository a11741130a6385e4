// Package queue persists fetch jobs in Badger so they survive restarts.
//
// Jobs live under "job:<id>". A job waiting to run also has an index entry
// "pending:<created unix nano>:<id>" so workers claim the oldest job first.
// Finished jobs are rewritten with a TTL and disappear once it elapses.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ffmirror/ffserve/internal/domain"
)

const (
	jobPrefix     = "job:"
	pendingPrefix = "pending:"
)

// DefaultResultTTL is how long finished jobs stay readable.
const DefaultResultTTL = 24 * time.Hour

// ErrNotFound is returned for unknown or expired job ids.
var ErrNotFound = errors.New("fetch job not found")

// Queue is a durable FIFO of fetch jobs.
type Queue struct {
	db        *badger.DB
	logger    *slog.Logger
	resultTTL time.Duration
}

// Option configures a Queue.
type Option func(*Queue)

// WithResultTTL overrides how long finished jobs are kept.
func WithResultTTL(ttl time.Duration) Option {
	return func(q *Queue) {
		if ttl > 0 {
			q.resultTTL = ttl
		}
	}
}

// Open opens the queue database in dir.
func Open(dir string, logger *slog.Logger, opts ...Option) (*Queue, error) {
	bopts := badger.DefaultOptions(dir)
	bopts.Logger = nil
	bopts.SyncWrites = true
	bopts.CompactL0OnClose = true
	return open(bopts, logger, opts...)
}

// OpenInMemory opens a queue that is lost on Close.
func OpenInMemory(logger *slog.Logger, opts ...Option) (*Queue, error) {
	bopts := badger.DefaultOptions("").WithInMemory(true)
	bopts.Logger = nil
	return open(bopts, logger, opts...)
}

func open(bopts badger.Options, logger *slog.Logger, opts ...Option) (*Queue, error) {
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open job queue: %w", err)
	}
	q := &Queue{db: db, logger: logger, resultTTL: DefaultResultTTL}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Close closes the queue database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Ping reports whether the queue database is open.
func (q *Queue) Ping(_ context.Context) error {
	if q.db.IsClosed() {
		return errors.New("job queue is closed")
	}
	return nil
}

func jobKey(id string) []byte {
	return []byte(jobPrefix + id)
}

func pendingKey(job *domain.FetchJob) []byte {
	return fmt.Appendf(nil, "%s%020d:%s", pendingPrefix, job.CreatedAt.UnixNano(), job.ID)
}

// Enqueue stores a new pending job.
func (q *Queue) Enqueue(ctx context.Context, job *domain.FetchJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job.State != domain.FetchPending {
		return fmt.Errorf("enqueue job %s: state is %s, want pending", job.ID, job.State)
	}
	return q.db.Update(func(txn *badger.Txn) error {
		if err := q.putJob(txn, job); err != nil {
			return err
		}
		return txn.Set(pendingKey(job), []byte(job.ID))
	})
}

// Get returns a job by id.
func (q *Queue) Get(ctx context.Context, id string) (*domain.FetchJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var job *domain.FetchJob
	err := q.db.View(func(txn *badger.Txn) error {
		var err error
		job, err = getJob(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Claim moves the oldest pending job to in_progress and returns it.
// It returns nil, nil when nothing is pending or another worker won the race.
func (q *Queue) Claim(ctx context.Context, status string) (*domain.FetchJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var claimed *domain.FetchJob
	err := q.db.Update(func(txn *badger.Txn) error {
		key, id, err := firstPending(txn)
		if err != nil || key == nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}

		job, err := getJob(txn, id)
		if errors.Is(err, ErrNotFound) {
			// Index entry outlived its job; dropping it is enough.
			return nil
		}
		if err != nil {
			return err
		}

		job.MarkInProgress(status)
		if err := q.putJob(txn, job); err != nil {
			return err
		}
		claimed = job
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return claimed, nil
}

// Update writes the job's current state. Terminal jobs get the result TTL.
func (q *Queue) Update(ctx context.Context, job *domain.FetchJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(jobKey(job.ID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return q.putJob(txn, job)
	})
}

// RecoverInProgress puts jobs interrupted by a shutdown or crash back in the pending index.
func (q *Queue) RecoverInProgress(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var stalled []*domain.FetchJob
	err := q.db.View(func(txn *badger.Txn) error {
		return eachJob(txn, func(job *domain.FetchJob) {
			if job.State == domain.FetchInProgress {
				stalled = append(stalled, job)
			}
		})
	})
	if err != nil {
		return 0, err
	}

	for _, job := range stalled {
		job.Requeue()
		err := q.db.Update(func(txn *badger.Txn) error {
			if err := q.putJob(txn, job); err != nil {
				return err
			}
			return txn.Set(pendingKey(job), []byte(job.ID))
		})
		if err != nil {
			return 0, fmt.Errorf("requeue job %s: %w", job.ID, err)
		}
		if q.logger != nil {
			q.logger.Info("requeued interrupted fetch job", "job_id", job.ID, "story_id", job.StoryID)
		}
	}
	return len(stalled), nil
}

// Pending returns the number of jobs waiting to be claimed.
func (q *Queue) Pending(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(pendingPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (q *Queue) putJob(txn *badger.Txn, job *domain.FetchJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	entry := badger.NewEntry(jobKey(job.ID), data)
	if job.State.Terminal() {
		entry = entry.WithTTL(q.resultTTL)
	}
	return txn.SetEntry(entry)
}

func getJob(txn *badger.Txn, id string) (*domain.FetchJob, error) {
	item, err := txn.Get(jobKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var job domain.FetchJob
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &job)
	}); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// firstPending returns the oldest pending index entry, or a nil key when there is none.
func firstPending(txn *badger.Txn) ([]byte, string, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(pendingPrefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	it.Rewind()
	if !it.Valid() {
		return nil, "", nil
	}
	item := it.Item()
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, "", err
	}
	return item.KeyCopy(nil), string(val), nil
}

func eachJob(txn *badger.Txn, fn func(*domain.FetchJob)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(jobPrefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var job domain.FetchJob
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &job)
		}); err != nil {
			return err
		}
		fn(&job)
	}
	return nil
}
