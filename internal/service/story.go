package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/ffmirror/ffserve/internal/domain"
	domainerrors "github.com/ffmirror/ffserve/internal/errors"
	"github.com/ffmirror/ffserve/internal/store"
)

// Story content formats.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

var chapterFilePattern = regexp.MustCompile(`^(\d{4})\.html$`)

// ChapterContent is one chapter read from the mirror.
type ChapterContent struct {
	Num     int
	Title   string
	Content string
}

// StoryView is a locally cached story ready to be rendered.
type StoryView struct {
	Story    *domain.Story
	Format   string
	Chapters []ChapterContent
}

// StoryService serves downloaded stories from the mirror directory.
type StoryService struct {
	store     store.Reader
	mirrorDir string
	logger    *slog.Logger
}

// NewStoryService creates a story service reading chapters below mirrorDir.
func NewStoryService(st store.Reader, mirrorDir string, logger *slog.Logger) *StoryService {
	return &StoryService{store: st, mirrorDir: mirrorDir, logger: logger}
}

// Read loads every chapter of a downloaded story. Stories that were never fetched are NotFound.
func (s *StoryService) Read(ctx context.Context, storyID, format string) (*StoryView, error) {
	if format == "" {
		format = FormatHTML
	}
	if format != FormatHTML && format != FormatMarkdown {
		return nil, domainerrors.ValidationWithDetails("unsupported format", map[string]any{
			"format":  format,
			"allowed": []string{FormatHTML, FormatMarkdown},
		})
	}

	story, err := s.store.GetStory(ctx, storyID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("story %s not found", storyID)
	}
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "get story")
	}
	if !story.Downloaded() {
		return nil, domainerrors.NotFoundf("story %s has not been downloaded", storyID)
	}

	dir, err := s.storyDir(*story.DownloadFn)
	if err != nil {
		return nil, err
	}

	chapters, err := s.chapters(ctx, story.ID, dir)
	if err != nil {
		return nil, err
	}

	view := &StoryView{Story: story, Format: format, Chapters: make([]ChapterContent, 0, len(chapters))}
	for _, ch := range chapters {
		data, err := os.ReadFile(filepath.Join(dir, domain.ChapterFile(ch.Num))) //#nosec G304 -- path built from the mirror root
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domainerrors.NotFoundf("chapter %d of story %s is missing", ch.Num, storyID)
		}
		if err != nil {
			return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "read chapter %d", ch.Num)
		}

		content := string(data)
		if format == FormatMarkdown {
			content, err = toMarkdown(content)
			if err != nil {
				return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "convert chapter %d", ch.Num)
			}
		}
		view.Chapters = append(view.Chapters, ChapterContent{Num: ch.Num, Title: ch.Title, Content: content})
	}

	return view, nil
}

func (s *StoryService) storyDir(downloadFn string) (string, error) {
	if !filepath.IsLocal(downloadFn) {
		s.logger.Warn("refusing story path outside the mirror", slog.String("download_fn", downloadFn))
		return "", domainerrors.NotFoundf("story directory %s not found", downloadFn)
	}

	dir := filepath.Join(s.mirrorDir, downloadFn)
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return "", domainerrors.NotFoundf("story directory %s not found", downloadFn)
	}
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "stat story directory")
	}
	return dir, nil
}

// chapters returns the recorded chapter list, or the NNNN.html files on disk for stories
// synced without chapter rows.
func (s *StoryService) chapters(ctx context.Context, storyID, dir string) ([]*domain.Chapter, error) {
	chapters, err := s.store.ListChapters(ctx, storyID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list chapters")
	}
	if len(chapters) > 0 {
		return chapters, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list story directory")
	}
	for _, e := range entries {
		m := chapterFilePattern.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1]) //nolint:errcheck // four digits
		chapters = append(chapters, &domain.Chapter{StoryID: storyID, Num: num, Title: fmt.Sprintf("Chapter %d", num)})
	}
	slices.SortFunc(chapters, func(a, b *domain.Chapter) int { return a.Num - b.Num })
	return chapters, nil
}

func toMarkdown(s string) (string, error) {
	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(markdown), nil
}
