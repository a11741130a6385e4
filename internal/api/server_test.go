package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/ffmirror/ffserve/internal/config"
	"github.com/ffmirror/ffserve/internal/domain"
	"github.com/ffmirror/ffserve/internal/fetch"
	"github.com/ffmirror/ffserve/internal/queue"
	"github.com/ffmirror/ffserve/internal/service"
	"github.com/ffmirror/ffserve/internal/store/sqlite"
	"github.com/ffmirror/ffserve/internal/validation"
)

// testEnvelope mirrors Envelope with typed data for decoding responses.
type testEnvelope[T any] struct {
	Version int             `json:"v"`
	Success bool            `json:"success"`
	Data    T               `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details"`
}

func decodeEnvelope[T any](t *testing.T, body []byte) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(body, &env), "body: %s", body)
	return env
}

// testServer wraps the API server for testing.
type testServer struct {
	*Server
	api       humatest.TestAPI
	store     *sqlite.Store
	queue     *queue.Queue
	mirrorDir string
	logger    *slog.Logger
	services  *Services
}

// setupTestServer creates a server over a temp mirror with a page threshold of 5 stories.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	return setupTestServerWithConfig(t, config.ServerConfig{})
}

func setupTestServerWithConfig(t *testing.T, cfg config.ServerConfig) *testServer {
	t.Helper()

	mirrorDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	st, err := sqlite.Open(filepath.Join(mirrorDir, "ffmirror.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() }) //nolint:errcheck // Test cleanup

	q, err := queue.OpenInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() }) //nolint:errcheck // Test cleanup

	mirrorCfg := config.MirrorConfig{Path: mirrorDir, PageThreshold: 5, PageSize: 4}
	services := &Services{
		Listing:  service.NewListingService(st, validation.New(), mirrorCfg, logger),
		Story:    service.NewStoryService(st, mirrorDir, logger),
		Favorite: service.NewFavoriteService(st, q, nil, false, logger),
	}

	s := NewServer(st, q, services, cfg, logger)
	t.Cleanup(s.Close)

	return &testServer{
		Server:    s,
		api:       humatest.Wrap(t, s.API()),
		store:     st,
		queue:     q,
		mirrorDir: mirrorDir,
		logger:    logger,
		services:  services,
	}
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 12, 0, 0, 0, time.UTC)
}

func (ts *testServer) addAuthor(t *testing.T, id, name string) {
	t.Helper()
	require.NoError(t, ts.store.SaveAuthor(context.Background(), &domain.Author{
		ID: id, Site: "ffnet", SiteID: id, Name: name, InMirror: true,
	}))
}

func (ts *testServer) addStory(t *testing.T, st *domain.Story) {
	t.Helper()
	if st.Site == "" {
		st.Site = "ffnet"
		st.SiteID = st.ID
	}
	if st.Updated.IsZero() {
		st.Updated = day(1)
	}
	require.NoError(t, ts.store.SaveStory(context.Background(), st))
}

// seed creates alice(3) bob(2) carol(4) dave(1), with alice's first story downloaded.
func (ts *testServer) seed(t *testing.T) {
	t.Helper()

	ts.addAuthor(t, "a-alice", "Alice")
	ts.addAuthor(t, "a-bob", "Bob")
	ts.addAuthor(t, "a-carol", "Carol")
	ts.addAuthor(t, "a-dave", "Dave")

	local := "ffnet-s-a1-autumn"
	downloaded := day(10)
	ts.addStory(t, &domain.Story{ID: "s-a1", AuthorID: "a-alice", Title: "Autumn", Words: 100, Updated: day(2), DownloadFn: &local, DownloadTime: &downloaded, Tags: []string{"angst"}})
	ts.addStory(t, &domain.Story{ID: "s-a2", AuthorID: "a-alice", Title: "Bells", Words: 200, Updated: day(3)})
	ts.addStory(t, &domain.Story{ID: "s-a3", AuthorID: "a-alice", Title: "Cinders", Words: 300, Updated: day(4)})
	ts.addStory(t, &domain.Story{ID: "s-b1", AuthorID: "a-bob", Title: "Dawn", Words: 400, Updated: day(5)})
	ts.addStory(t, &domain.Story{ID: "s-b2", AuthorID: "a-bob", Title: "Embers", Words: 500, Updated: day(6)})
	ts.addStory(t, &domain.Story{ID: "s-c1", AuthorID: "a-carol", Title: "Frost", Words: 600, Updated: day(7), Tags: []string{"angst"}})
	ts.addStory(t, &domain.Story{ID: "s-c2", AuthorID: "a-carol", Title: "Gales", Words: 700, Updated: day(8)})
	ts.addStory(t, &domain.Story{ID: "s-c3", AuthorID: "a-carol", Title: "Hollow", Words: 800, Updated: day(9)})
	ts.addStory(t, &domain.Story{ID: "s-c4", AuthorID: "a-carol", Title: "Ice", Words: 900, Updated: day(10)})
	ts.addStory(t, &domain.Story{ID: "s-d1", AuthorID: "a-dave", Title: "Jade", Words: 1000, Updated: day(11)})

	dir := filepath.Join(ts.mirrorDir, local)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, domain.ChapterFile(1)), []byte("<p>Leaves <em>fall</em></p>"), 0o644))
}

// stubFetcher writes a single chapter, or fails with err.
type stubFetcher struct {
	mirrorDir string
	err       error
}

func (f *stubFetcher) URLs(st *domain.Story, a *domain.Author) (string, string) {
	authorURL := ""
	if a != nil {
		authorURL = "https://www.fanfiction.net/u/" + a.SiteID
	}
	return "https://www.fanfiction.net/s/" + st.SiteID, authorURL
}

func (f *stubFetcher) Fetch(_ context.Context, req fetch.Request) (*fetch.Result, error) {
	if f.err != nil {
		storyURL, authorURL := f.URLs(req.Story, req.Author)
		return nil, &fetch.Error{StoryURL: storyURL, AuthorURL: authorURL, Err: f.err}
	}
	dir := filepath.Join(f.mirrorDir, req.Target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, domain.ChapterFile(1)), []byte("<p>fetched</p>"), 0o644); err != nil {
		return nil, err
	}
	return &fetch.Result{Path: req.Target, Chapters: []domain.Chapter{{StoryID: req.Story.ID, Num: 1, Title: "One"}}}, nil
}

// startWorker runs a fetch worker pool over the server's queue and routes favorites to it.
func (ts *testServer) startWorker(t *testing.T, fetchErr error) {
	t.Helper()
	worker := service.NewFetchWorker(ts.store, ts.queue, &stubFetcher{mirrorDir: ts.mirrorDir, err: fetchErr}, 1, ts.logger)
	ts.services.Favorite = service.NewFavoriteService(ts.store, ts.queue, worker, false, ts.logger)
	worker.Start()
	t.Cleanup(worker.Stop)
}
