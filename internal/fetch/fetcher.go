// Package fetch downloads stories from remote archives into the local mirror.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/ffmirror/ffserve/internal/domain"
)

// Request describes one story download.
type Request struct {
	Story  *domain.Story
	Author *domain.Author
	// Target is the story directory relative to the mirror root.
	Target  string
	Verbose bool
	// Progress receives human readable status lines. May be nil.
	Progress func(status string)
}

// Result is a finished download.
type Result struct {
	Path     string
	Chapters []domain.Chapter
}

// Fetcher downloads stories.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Result, error)
	// URLs returns the remote story and author pages, for error reports.
	URLs(st *domain.Story, a *domain.Author) (storyURL, authorURL string)
}

// Error is a failed download together with the remote pages it concerned.
type Error struct {
	StoryURL  string
	AuthorURL string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("could not download story %s (author %s): %v", e.StoryURL, e.AuthorURL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options configures an HTTPFetcher.
type Options struct {
	MirrorDir         string
	UserAgent         string
	RequestsPerSecond float64
	Timeout           time.Duration
	MaxRetries        int
	// RetryInitialInterval is the first backoff delay (default: 1s)
	RetryInitialInterval time.Duration
	Sites                []Site
	Client               *http.Client
}

// HTTPFetcher scrapes chapters over HTTP and writes them as NNNN.html files.
type HTTPFetcher struct {
	client     *http.Client
	limiter    *rate.Limiter
	sites      map[string]Site
	mirrorDir  string
	userAgent  string
	maxRetries int
	retryStart time.Duration
	logger     *slog.Logger
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher. One limiter is shared by every concurrent Fetch call.
func NewHTTPFetcher(opts Options, logger *slog.Logger) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Sites == nil {
		opts.Sites = DefaultSites()
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 0.5
	}
	if opts.RetryInitialInterval <= 0 {
		opts.RetryInitialInterval = time.Second
	}

	sites := make(map[string]Site, len(opts.Sites))
	for _, s := range opts.Sites {
		sites[s.Name()] = s
	}

	return &HTTPFetcher{
		client:     opts.Client,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		sites:      sites,
		mirrorDir:  opts.MirrorDir,
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		retryStart: opts.RetryInitialInterval,
		logger:     logger,
	}
}

// URLs returns the remote story and author pages. Unknown sites yield empty strings.
func (f *HTTPFetcher) URLs(st *domain.Story, a *domain.Author) (string, string) {
	var storyURL, authorURL string
	if site, ok := f.sites[st.Site]; ok {
		storyURL = site.StoryURL(st.SiteID)
	}
	if a != nil {
		if site, ok := f.sites[a.Site]; ok {
			authorURL = site.AuthorURL(a)
		}
	}
	return storyURL, authorURL
}

// Fetch downloads every chapter of req.Story into MirrorDir/Target.
// The previous copy, if any, is replaced only after all chapters were fetched.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	storyURL, authorURL := f.URLs(req.Story, req.Author)
	fail := func(err error) (*Result, error) {
		return nil, &Error{StoryURL: storyURL, AuthorURL: authorURL, Err: err}
	}

	site, ok := f.sites[req.Story.Site]
	if !ok {
		return fail(errors.Errorf("unsupported site %q", req.Story.Site))
	}
	if !filepath.IsLocal(req.Target) {
		return fail(errors.Errorf("invalid target %q", req.Target))
	}

	level := slog.LevelDebug
	if req.Verbose {
		level = slog.LevelInfo
	}
	report := func(n, total int) {
		status := fmt.Sprintf("downloaded chapter %d/%d", n, total)
		f.logger.Log(ctx, level, "fetch progress", "story_id", req.Story.ID, "chapter", n, "total", total)
		if req.Progress != nil {
			req.Progress(status)
		}
	}

	texts, err := site.Chapters(ctx, f.getDocument, req.Story, report)
	if err != nil {
		return fail(err)
	}
	if len(texts) == 0 {
		return fail(errors.New("story has no chapters"))
	}

	if err := f.writeChapters(req.Target, texts); err != nil {
		return fail(err)
	}

	chapters := make([]domain.Chapter, len(texts))
	for i, t := range texts {
		chapters[i] = domain.Chapter{StoryID: req.Story.ID, Num: t.Num, Title: t.Title}
	}
	return &Result{Path: req.Target, Chapters: chapters}, nil
}

func (f *HTTPFetcher) writeChapters(target string, texts []ChapterText) error {
	dir := filepath.Join(f.mirrorDir, target)
	partial := dir + ".partial"

	if err := os.RemoveAll(partial); err != nil {
		return errors.Wrap(err, "clear partial download")
	}
	if err := os.MkdirAll(partial, 0o755); err != nil {
		return errors.Wrap(err, "create story directory")
	}
	for _, t := range texts {
		name := filepath.Join(partial, domain.ChapterFile(t.Num))
		if err := os.WriteFile(name, []byte(t.HTML), 0o644); err != nil {
			return errors.Wrapf(err, "write chapter %d", t.Num)
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrap(err, "remove previous download")
	}
	return errors.Wrap(os.Rename(partial, dir), "move download into place")
}

// getDocument fetches a page, retrying transport errors, 429 and 5xx with exponential backoff.
func (f *HTTPFetcher) getDocument(ctx context.Context, url string) (*goquery.Document, error) {
	var doc *goquery.Document

	op := func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if f.userAgent != "" {
			req.Header.Set("User-Agent", f.userAgent)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return errors.Wrapf(err, "failed to fetch %q", url)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return errors.Errorf("fetch %q status = %s", url, resp.Status)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(errors.Errorf("fetch %q status = %s", url, resp.Status))
		}

		doc, err = goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return backoff.Permanent(errors.Wrapf(err, "parse %q", url))
		}
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = f.retryStart
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(f.maxRetries)), ctx)

	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return doc, nil
}
