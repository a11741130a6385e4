package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ffmirror/ffserve/internal/config"
	"github.com/ffmirror/ffserve/internal/domain"
	"github.com/ffmirror/ffserve/internal/fetch"
	"github.com/ffmirror/ffserve/internal/queue"
	"github.com/ffmirror/ffserve/internal/store/sqlite"
	"github.com/ffmirror/ffserve/internal/validation"
)

// testEnv bundles a temp mirror directory, a real store and an in-memory queue.
type testEnv struct {
	mirrorDir string
	store     *sqlite.Store
	queue     *queue.Queue
	logger    *slog.Logger
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mirrorDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	st, err := sqlite.Open(filepath.Join(mirrorDir, "ffmirror.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() }) //nolint:errcheck // Test cleanup

	q, err := queue.OpenInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() }) //nolint:errcheck // Test cleanup

	return &testEnv{mirrorDir: mirrorDir, store: st, queue: q, logger: logger}
}

func (e *testEnv) mirrorConfig(threshold, pageSize int) config.MirrorConfig {
	return config.MirrorConfig{Path: e.mirrorDir, PageThreshold: threshold, PageSize: pageSize}
}

func (e *testEnv) listing(threshold, pageSize int) *ListingService {
	return NewListingService(e.store, validation.New(), e.mirrorConfig(threshold, pageSize), e.logger)
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 12, 0, 0, 0, time.UTC)
}

func (e *testEnv) addAuthor(t *testing.T, id, name string, inMirror bool) *domain.Author {
	t.Helper()
	a := &domain.Author{ID: id, Site: "ffnet", SiteID: id, Name: name, InMirror: inMirror}
	require.NoError(t, e.store.SaveAuthor(context.Background(), a))
	return a
}

func (e *testEnv) addStory(t *testing.T, st *domain.Story) *domain.Story {
	t.Helper()
	if st.Site == "" {
		st.Site = "ffnet"
		st.SiteID = st.ID
	}
	if st.Updated.IsZero() {
		st.Updated = day(1)
	}
	require.NoError(t, e.store.SaveStory(context.Background(), st))
	return st
}

// writeChapter puts chapter text where a download would have left it.
func (e *testEnv) writeChapter(t *testing.T, downloadFn string, num int, html string) {
	t.Helper()
	dir := filepath.Join(e.mirrorDir, downloadFn)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, domain.ChapterFile(num)), []byte(html), 0o644))
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// fakeFetcher writes one chapter per story, or fails with err.
type fakeFetcher struct {
	mirrorDir string

	mu    sync.Mutex
	err   error
	calls []fetch.Request
}

func (f *fakeFetcher) URLs(st *domain.Story, a *domain.Author) (string, string) {
	authorURL := ""
	if a != nil {
		authorURL = "https://www.fanfiction.net/u/" + a.SiteID
	}
	return "https://www.fanfiction.net/s/" + st.SiteID, authorURL
}

func (f *fakeFetcher) Fetch(_ context.Context, req fetch.Request) (*fetch.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	err := f.err
	f.mu.Unlock()

	if req.Progress != nil {
		req.Progress("downloaded chapter 1/1")
	}
	if err != nil {
		storyURL, authorURL := f.URLs(req.Story, req.Author)
		return nil, &fetch.Error{StoryURL: storyURL, AuthorURL: authorURL, Err: err}
	}

	dir := filepath.Join(f.mirrorDir, req.Target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	body := "<p>" + req.Story.Title + "</p>"
	if err := os.WriteFile(filepath.Join(dir, domain.ChapterFile(1)), []byte(body), 0o644); err != nil {
		return nil, err
	}
	return &fetch.Result{
		Path:     req.Target,
		Chapters: []domain.Chapter{{StoryID: req.Story.ID, Num: 1, Title: "Chapter One"}},
	}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
