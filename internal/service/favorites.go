package service

import (
	"context"
	"errors"
	"log/slog"
	"path"

	"github.com/ffmirror/ffserve/internal/domain"
	domainerrors "github.com/ffmirror/ffserve/internal/errors"
	"github.com/ffmirror/ffserve/internal/id"
	"github.com/ffmirror/ffserve/internal/queue"
	"github.com/ffmirror/ffserve/internal/store"
	"github.com/ffmirror/ffserve/internal/util"
)

// FavoritesDir is the mirror subdirectory favorited stories are downloaded into.
const FavoritesDir = ".favs"

// JobQueue is the durable fetch job queue.
type JobQueue interface {
	Enqueue(ctx context.Context, job *domain.FetchJob) error
	Get(ctx context.Context, id string) (*domain.FetchJob, error)
	Claim(ctx context.Context, status string) (*domain.FetchJob, error)
	Update(ctx context.Context, job *domain.FetchJob) error
	RecoverInProgress(ctx context.Context) (int, error)
}

// JobNotifier wakes the fetch workers.
type JobNotifier interface {
	NotifyNewJob()
}

// FavoriteResult is either a local path ready to view or a job to poll.
type FavoriteResult struct {
	Story *domain.Story
	// Path is set when the local copy is current.
	Path string
	// Job is set when a download was submitted.
	Job *domain.FetchJob
}

// FavoriteService makes sure a favorited story is available locally before it is viewed.
type FavoriteService struct {
	store    store.Reader
	queue    JobQueue
	notifier JobNotifier
	debug    bool
	logger   *slog.Logger
}

// NewFavoriteService creates a favorite service. notifier may be nil when no workers run in process.
func NewFavoriteService(st store.Reader, q JobQueue, notifier JobNotifier, debug bool, logger *slog.Logger) *FavoriteService {
	return &FavoriteService{store: st, queue: q, notifier: notifier, debug: debug, logger: logger}
}

// RequestFavorite returns the local path of a current copy, or submits a download and returns its job.
// Concurrent requests for the same story may each submit a job.
func (s *FavoriteService) RequestFavorite(ctx context.Context, storyID string) (*FavoriteResult, error) {
	story, err := s.store.GetStory(ctx, storyID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("story %s not found", storyID)
	}
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "get story")
	}

	if !story.NeedsFetch() {
		return &FavoriteResult{Story: story, Path: *story.DownloadFn}, nil
	}

	jobID, err := id.NewJobID()
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate job id")
	}
	target := path.Join(FavoritesDir, util.StoryDirName(story.Site, story.SiteID, story.Title))
	job := domain.NewFetchJob(jobID, story.ID, target, s.debug)

	if err := s.queue.Enqueue(ctx, job); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "enqueue fetch job")
	}
	if s.notifier != nil {
		s.notifier.NotifyNewJob()
	}

	s.logger.Info("fetch job submitted",
		slog.String("job_id", job.ID),
		slog.String("story_id", story.ID),
		slog.String("target", target),
	)

	return &FavoriteResult{Story: story, Job: job}, nil
}

// JobStatus reports a fetch job. A failed job returns a FetchFailed error carrying the
// original error and the remote story and author pages.
func (s *FavoriteService) JobStatus(ctx context.Context, jobID string) (*domain.FetchJob, error) {
	job, err := s.queue.Get(ctx, jobID)
	if errors.Is(err, queue.ErrNotFound) {
		return nil, domainerrors.NotFoundf("fetch job %s not found", jobID)
	}
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "get fetch job")
	}

	if job.State == domain.FetchFailed {
		return job, domainerrors.FetchFailed(job.StoryURL, job.AuthorURL, job.Error)
	}
	return job, nil
}
