// Package store defines the mirror database contract used by the listing and fetch services.
package store

import (
	"context"
	"time"

	"github.com/ffmirror/ffserve/internal/domain"
)

// AuthorStoryRow is one (author, story) pair of a grouped listing.
// Story is nil for an author with no stories in the view.
type AuthorStoryRow struct {
	Author *domain.Author
	Story  *domain.Story
}

// AuthorStoryFilter narrows a grouped listing.
type AuthorStoryFilter struct {
	// Tag restricts the listing to stories carrying this tag name. Authors
	// without a matching story are left out.
	Tag string
}

// StoryFilter selects a page of the flat story listing.
type StoryFilter struct {
	Tag    string
	Sort   domain.SortOrder
	Limit  int
	Offset int
}

// Reader is the read side of the mirror. Request handlers only ever use this.
type Reader interface {
	// GetAuthor returns ErrNotFound unless exactly one author has the id.
	GetAuthor(ctx context.Context, id string) (*domain.Author, error)
	// GetStory returns the story with its tags and author name.
	GetStory(ctx context.Context, id string) (*domain.Story, error)
	GetTagByName(ctx context.Context, name string) (*domain.Tag, error)

	// ListAuthorStories returns rows for in-mirror authors, author-major: all rows of one
	// author are adjacent, authors ordered case-insensitively by name then id, stories by title.
	ListAuthorStories(ctx context.Context, filter AuthorStoryFilter) ([]AuthorStoryRow, error)
	ListStories(ctx context.Context, filter StoryFilter) ([]*domain.Story, error)
	CountStories(ctx context.Context, filter StoryFilter) (int, error)

	ListWrittenStories(ctx context.Context, authorID string) ([]*domain.Story, error)
	ListFavoriteStories(ctx context.Context, authorID string) ([]*domain.Story, error)
	ListChapters(ctx context.Context, storyID string) ([]*domain.Chapter, error)

	Ping(ctx context.Context) error
}

// Writer holds the mutations. Only the fetch worker and the sync tooling call these.
type Writer interface {
	// MarkStoryDownloaded records a finished download and replaces the chapter list.
	MarkStoryDownloaded(ctx context.Context, storyID, downloadFn string, at time.Time, chapters []domain.Chapter) error

	SaveAuthor(ctx context.Context, a *domain.Author) error
	// SaveStory upserts the story and replaces its tag set with story.Tags.
	SaveStory(ctx context.Context, s *domain.Story) error
	SetFavorites(ctx context.Context, authorID string, storyIDs []string) error
}

// Store is the full mirror database.
type Store interface {
	Reader
	Writer
	Close() error
}
