package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffmirror/ffserve/internal/domain"
	domainerrors "github.com/ffmirror/ffserve/internal/errors"
)

type workerTest struct {
	env       *testEnv
	fetcher   *fakeFetcher
	worker    *FetchWorker
	favorites *FavoriteService
	stories   *StoryService
}

func setupWorkerTest(t *testing.T, fetchErr error) *workerTest {
	t.Helper()

	env := setupTestEnv(t)
	env.addAuthor(t, "a-1", "Alice", true)
	env.addStory(t, &domain.Story{ID: "s-1", Site: "ffnet", SiteID: "1234", AuthorID: "a-1", Title: "Frost", Updated: day(3)})

	fetcher := &fakeFetcher{mirrorDir: env.mirrorDir, err: fetchErr}
	worker := NewFetchWorker(env.store, env.queue, fetcher, 2, env.logger)

	return &workerTest{
		env:       env,
		fetcher:   fetcher,
		worker:    worker,
		favorites: NewFavoriteService(env.store, env.queue, worker, false, env.logger),
		stories:   NewStoryService(env.store, env.mirrorDir, env.logger),
	}
}

func (w *workerTest) start(t *testing.T) {
	t.Helper()
	w.worker.Start()
	t.Cleanup(w.worker.Stop)
}

// waitTerminal polls the job until it leaves pending and in_progress.
func (w *workerTest) waitTerminal(t *testing.T, jobID string) (*domain.FetchJob, error) {
	t.Helper()
	var (
		job *domain.FetchJob
		err error
	)
	require.Eventually(t, func() bool {
		job, err = w.favorites.JobStatus(context.Background(), jobID)
		return job != nil && job.State.Terminal()
	}, 5*time.Second, 20*time.Millisecond)
	return job, err
}

func TestFetchWorker_FavoriteDownloadsStory(t *testing.T) {
	w := setupWorkerTest(t, nil)
	w.start(t)
	ctx := context.Background()

	result, err := w.favorites.RequestFavorite(ctx, "s-1")
	require.NoError(t, err)
	require.NotNil(t, result.Job)

	job, err := w.waitTerminal(t, result.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FetchSucceeded, job.State)
	assert.Equal(t, ".favs/ffnet-1234-frost", job.Path)
	assert.NotNil(t, job.CompletedAt)

	story, err := w.env.store.GetStory(ctx, "s-1")
	require.NoError(t, err)
	require.NotNil(t, story.DownloadFn)
	assert.Equal(t, ".favs/ffnet-1234-frost", *story.DownloadFn)
	assert.False(t, story.NeedsFetch())

	view, err := w.stories.Read(ctx, "s-1", FormatHTML)
	require.NoError(t, err)
	require.Len(t, view.Chapters, 1)
	assert.Equal(t, "Chapter One", view.Chapters[0].Title)
	assert.Equal(t, "<p>Frost</p>", view.Chapters[0].Content)

	// The copy is current now, so a second favorite does not fetch again.
	again, err := w.favorites.RequestFavorite(ctx, "s-1")
	require.NoError(t, err)
	assert.Nil(t, again.Job)
	assert.Equal(t, ".favs/ffnet-1234-frost", again.Path)
	assert.Equal(t, 1, w.fetcher.callCount())
}

func TestFetchWorker_FailureIsSurfaced(t *testing.T) {
	w := setupWorkerTest(t, errors.New("HTTP 403 Forbidden"))
	w.start(t)

	result, err := w.favorites.RequestFavorite(context.Background(), "s-1")
	require.NoError(t, err)

	job, err := w.waitTerminal(t, result.Job.ID)
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrFetchFailed))
	assert.Equal(t, domain.FetchFailed, job.State)
	assert.Equal(t, "https://www.fanfiction.net/s/1234", job.StoryURL)
	assert.Equal(t, "https://www.fanfiction.net/u/a-1", job.AuthorURL)
	assert.Contains(t, job.Error, "HTTP 403 Forbidden")

	story, err := w.env.store.GetStory(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Nil(t, story.DownloadFn)

	// Failed jobs are not retried automatically.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, w.fetcher.callCount())
}

func TestFetchWorker_PassesDebugFlag(t *testing.T) {
	w := setupWorkerTest(t, nil)
	w.favorites = NewFavoriteService(w.env.store, w.env.queue, w.worker, true, w.env.logger)
	w.start(t)

	result, err := w.favorites.RequestFavorite(context.Background(), "s-1")
	require.NoError(t, err)
	_, err = w.waitTerminal(t, result.Job.ID)
	require.NoError(t, err)

	w.fetcher.mu.Lock()
	defer w.fetcher.mu.Unlock()
	require.Len(t, w.fetcher.calls, 1)
	assert.True(t, w.fetcher.calls[0].Verbose)
	assert.Equal(t, ".favs/ffnet-1234-frost", w.fetcher.calls[0].Target)
}

func TestFetchWorker_UnknownStoryFails(t *testing.T) {
	w := setupWorkerTest(t, nil)
	w.start(t)
	ctx := context.Background()

	require.NoError(t, w.env.queue.Enqueue(ctx, domain.NewFetchJob("job-orphan", "s-deleted", ".favs/x", false)))
	w.worker.NotifyNewJob()

	job, err := w.waitTerminal(t, "job-orphan")
	require.Error(t, err)
	assert.Equal(t, domain.FetchFailed, job.State)
	assert.Contains(t, job.Error, "load story s-deleted")
	assert.Zero(t, w.fetcher.callCount())
}

func TestFetchWorker_RecoversInterruptedJobs(t *testing.T) {
	w := setupWorkerTest(t, nil)
	ctx := context.Background()

	// Simulate a crash after the job was claimed.
	require.NoError(t, w.env.queue.Enqueue(ctx, domain.NewFetchJob("job-stalled", "s-1", ".favs/ffnet-1234-frost", false)))
	claimed, err := w.env.queue.Claim(ctx, "starting download")
	require.NoError(t, err)
	require.Equal(t, "job-stalled", claimed.ID)

	w.start(t)
	w.worker.NotifyNewJob()

	job, err := w.waitTerminal(t, "job-stalled")
	require.NoError(t, err)
	assert.Equal(t, domain.FetchSucceeded, job.State)
}

func TestFetchWorker_NotifyDoesNotBlock(t *testing.T) {
	w := setupWorkerTest(t, nil)

	done := make(chan struct{})
	go func() {
		for range 10 {
			w.worker.NotifyNewJob()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("NotifyNewJob blocked without running workers")
	}
}
