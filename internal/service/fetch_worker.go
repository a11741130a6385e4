package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ffmirror/ffserve/internal/domain"
	"github.com/ffmirror/ffserve/internal/fetch"
)

// FetchStore is the part of the mirror store the workers need.
type FetchStore interface {
	GetStory(ctx context.Context, id string) (*domain.Story, error)
	GetAuthor(ctx context.Context, id string) (*domain.Author, error)
	MarkStoryDownloaded(ctx context.Context, storyID, downloadFn string, at time.Time, chapters []domain.Chapter) error
}

const pollInterval = 5 * time.Second

// FetchWorker downloads favorited stories in the background.
type FetchWorker struct {
	store   FetchStore
	queue   JobQueue
	fetcher fetch.Fetcher
	workers int
	logger  *slog.Logger

	// Worker management
	ctx       context.Context //nolint:containedctx // Context needed for worker lifecycle management
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	jobNotify chan struct{} // Signal that new jobs are available
}

// NewFetchWorker creates a worker pool of the given size.
func NewFetchWorker(st FetchStore, q JobQueue, f fetch.Fetcher, workers int, logger *slog.Logger) *FetchWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &FetchWorker{
		store:     st,
		queue:     q,
		fetcher:   f,
		workers:   max(1, workers),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		jobNotify: make(chan struct{}, 1),
	}
}

// Start requeues jobs interrupted by a previous shutdown and starts the workers.
func (w *FetchWorker) Start() {
	w.recoverStalledJobs()

	for i := range w.workers {
		w.wg.Add(1)
		go w.worker(i)
	}

	w.logger.Info("fetch workers started", slog.Int("workers", w.workers))
}

// Stop signals the workers to exit and waits for them.
// A job interrupted mid-download stays in_progress and is requeued on the next Start.
func (w *FetchWorker) Stop() {
	w.cancel()
	w.wg.Wait()
	w.logger.Info("fetch workers stopped")
}

// NotifyNewJob wakes one idle worker.
func (w *FetchWorker) NotifyNewJob() {
	select {
	case w.jobNotify <- struct{}{}:
	default:
		// Already notified
	}
}

func (w *FetchWorker) recoverStalledJobs() {
	n, err := w.queue.RecoverInProgress(w.ctx)
	if err != nil {
		w.logger.Error("failed to recover stalled fetch jobs", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		w.logger.Info("requeued stalled fetch jobs", slog.Int("count", n))
	}
}

func (w *FetchWorker) worker(id int) {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.jobNotify:
			w.drain(id)
		case <-time.After(pollInterval):
			w.drain(id)
		}
	}
}

// drain processes jobs until the queue is empty.
func (w *FetchWorker) drain(workerID int) {
	for w.ctx.Err() == nil && w.processNextJob(workerID) {
	}
}

// processNextJob claims and runs one job. It reports whether a job was claimed.
func (w *FetchWorker) processNextJob(workerID int) bool {
	job, err := w.queue.Claim(w.ctx, "starting download")
	if err != nil {
		if w.ctx.Err() == nil {
			w.logger.Error("failed to claim fetch job", slog.String("error", err.Error()))
		}
		return false
	}
	if job == nil {
		return false
	}

	log := w.logger.With(
		slog.Int("worker", workerID),
		slog.String("job_id", job.ID),
		slog.String("story_id", job.StoryID),
	)
	log.Info("fetch job started", slog.String("target", job.Target))

	w.run(log, job)
	return true
}

func (w *FetchWorker) run(log *slog.Logger, job *domain.FetchJob) {
	ctx := w.ctx

	story, err := w.store.GetStory(ctx, job.StoryID)
	if err != nil {
		w.fail(log, job, fmt.Errorf("load story %s: %w", job.StoryID, err), "", "")
		return
	}

	author, err := w.store.GetAuthor(ctx, story.AuthorID)
	if err != nil {
		log.Warn("story author not in mirror", slog.String("author_id", story.AuthorID), slog.String("error", err.Error()))
		author = nil
	}
	storyURL, authorURL := w.fetcher.URLs(story, author)

	result, err := w.fetcher.Fetch(ctx, fetch.Request{
		Story:   story,
		Author:  author,
		Target:  job.Target,
		Verbose: job.Debug,
		Progress: func(status string) {
			job.SetStatus(status)
			if err := w.queue.Update(ctx, job); err != nil && ctx.Err() == nil {
				log.Warn("failed to record fetch progress", slog.String("error", err.Error()))
			}
		},
	})
	if err != nil {
		w.fail(log, job, err, storyURL, authorURL)
		return
	}

	if err := w.store.MarkStoryDownloaded(ctx, story.ID, result.Path, time.Now(), result.Chapters); err != nil {
		w.fail(log, job, fmt.Errorf("record download: %w", err), storyURL, authorURL)
		return
	}

	job.MarkSucceeded(result.Path)
	if err := w.queue.Update(ctx, job); err != nil {
		log.Error("failed to record finished fetch job", slog.String("error", err.Error()))
		return
	}
	log.Info("fetch job succeeded", slog.String("path", result.Path), slog.Int("chapters", len(result.Chapters)))
}

// fail marks the job failed. Jobs interrupted by Stop are left in progress for recovery.
func (w *FetchWorker) fail(log *slog.Logger, job *domain.FetchJob, err error, storyURL, authorURL string) {
	if w.ctx.Err() != nil {
		log.Info("fetch job interrupted by shutdown")
		return
	}

	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) {
		storyURL, authorURL = fetchErr.StoryURL, fetchErr.AuthorURL
	}

	job.MarkFailed(err.Error(), storyURL, authorURL)
	if updateErr := w.queue.Update(w.ctx, job); updateErr != nil {
		log.Error("failed to record failed fetch job", slog.String("error", updateErr.Error()))
	}
	log.Error("fetch job failed",
		slog.String("error", err.Error()),
		slog.String("story_url", storyURL),
		slog.String("author_url", authorURL),
	)
}
