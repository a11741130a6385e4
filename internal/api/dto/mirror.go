package dto

import (
	"time"

	"github.com/ffmirror/ffserve/internal/domain"
	"github.com/ffmirror/ffserve/internal/service"
)

// Author is an author in API responses.
type Author struct {
	ID       string `json:"id" doc:"Author ID"`
	Site     string `json:"site" doc:"Source site"`
	SiteID   string `json:"site_id" doc:"Author ID on the source site"`
	Name     string `json:"name" doc:"Display name"`
	InMirror bool   `json:"in_mirror" doc:"Whether the author's stories are archived locally"`
}

// Story is a story in API responses.
type Story struct {
	ID           string     `json:"id" doc:"Story ID"`
	Site         string     `json:"site" doc:"Source site"`
	SiteID       string     `json:"site_id" doc:"Story ID on the source site"`
	AuthorID     string     `json:"author_id" doc:"Author ID"`
	AuthorName   string     `json:"author_name" doc:"Author display name"`
	Title        string     `json:"title" doc:"Title"`
	Category     string     `json:"category" doc:"Fandom or category"`
	Words        int        `json:"words" doc:"Word count"`
	Updated      time.Time  `json:"updated" doc:"Last update on the source site"`
	DownloadTime *time.Time `json:"download_time,omitempty" doc:"When the local copy was made"`
	LocalPath    string     `json:"local_path,omitempty" doc:"Story directory relative to the mirror root"`
	NeedsFetch   bool       `json:"needs_fetch" doc:"Whether the local copy is missing or stale"`
	Tags         []string   `json:"tags" doc:"Tag names"`
}

// AuthorEntry is an author with the stories attached for a view.
type AuthorEntry struct {
	Author  Author  `json:"author" doc:"Author"`
	Stories []Story `json:"stories" doc:"Stories shown for this author"`
}

// AuthorPage is one page of a grouped author listing.
type AuthorPage struct {
	Authors   []AuthorEntry `json:"authors" doc:"Authors on this page"`
	Page      int           `json:"page" doc:"Page index, -1 for all"`
	Last      bool          `json:"last" doc:"Whether this is the last page"`
	PageCount int           `json:"page_count" doc:"Total number of pages"`
	Tag       string        `json:"tag,omitempty" doc:"Tag filter, if any"`
}

// StoryPage is one page of the flat story listing.
type StoryPage struct {
	Stories   []Story `json:"stories" doc:"Stories on this page"`
	Sort      string  `json:"sort" doc:"Applied sort key"`
	Tag       string  `json:"tag,omitempty" doc:"Tag filter, if any"`
	Page      int     `json:"page" doc:"Page index, -1 for all"`
	PageSize  int     `json:"page_size" doc:"Stories per page"`
	Total     int     `json:"total" doc:"Total stories across all pages"`
	PageCount int     `json:"page_count" doc:"Total number of pages"`
	LastPage  int     `json:"last_page" doc:"Index of the last page"`
}

// Favorites lists an author's favorites next to their own stories.
type Favorites struct {
	Author    Author  `json:"author" doc:"Author"`
	Sort      string  `json:"sort" doc:"Applied sort key"`
	Favorites []Story `json:"favorites" doc:"Stories the author favorited"`
	Written   []Story `json:"written" doc:"Stories the author wrote"`
}

// Chapter is one chapter of a story.
type Chapter struct {
	Num     int    `json:"num" doc:"Chapter number, starting at 1"`
	Title   string `json:"title" doc:"Chapter title"`
	Content string `json:"content" doc:"Chapter text in the requested format"`
}

// StoryContent is a locally cached story.
type StoryContent struct {
	Story    Story     `json:"story" doc:"Story"`
	Format   string    `json:"format" doc:"Content format: html or markdown"`
	Chapters []Chapter `json:"chapters" doc:"Chapters in order"`
}

// FetchJob is a background download.
type FetchJob struct {
	ID          string     `json:"id" doc:"Job ID"`
	StoryID     string     `json:"story_id" doc:"Story being downloaded"`
	State       string     `json:"state" doc:"pending, in_progress, succeeded or failed"`
	Status      string     `json:"status,omitempty" doc:"Progress message while in progress"`
	Path        string     `json:"path,omitempty" doc:"Downloaded story directory, on success"`
	Error       string     `json:"error,omitempty" doc:"Failure reason"`
	StoryURL    string     `json:"story_url,omitempty" doc:"Remote story page, on failure"`
	AuthorURL   string     `json:"author_url,omitempty" doc:"Remote author page, on failure"`
	PollURL     string     `json:"poll_url" doc:"Where to poll this job"`
	CreatedAt   time.Time  `json:"created_at" doc:"Submission time"`
	StartedAt   *time.Time `json:"started_at,omitempty" doc:"Start time"`
	CompletedAt *time.Time `json:"completed_at,omitempty" doc:"Completion time"`
}

// Favorite is the result of favoriting a story.
type Favorite struct {
	StoryID string    `json:"story_id" doc:"Story ID"`
	Path    string    `json:"path,omitempty" doc:"Local story directory when no download was needed"`
	Job     *FetchJob `json:"job,omitempty" doc:"Submitted download, when one was needed"`
}

// NewAuthor converts a domain author.
func NewAuthor(a *domain.Author) Author {
	return Author{ID: a.ID, Site: a.Site, SiteID: a.SiteID, Name: a.Name, InMirror: a.InMirror}
}

// NewStory converts a domain story.
func NewStory(s *domain.Story) Story {
	out := Story{
		ID:           s.ID,
		Site:         s.Site,
		SiteID:       s.SiteID,
		AuthorID:     s.AuthorID,
		AuthorName:   s.AuthorName,
		Title:        s.Title,
		Category:     s.Category,
		Words:        s.Words,
		Updated:      s.Updated,
		DownloadTime: s.DownloadTime,
		NeedsFetch:   s.NeedsFetch(),
		Tags:         s.Tags,
	}
	if s.DownloadFn != nil {
		out.LocalPath = *s.DownloadFn
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	return out
}

// NewStories converts a story list, never returning nil.
func NewStories(stories []*domain.Story) []Story {
	out := make([]Story, len(stories))
	for i, s := range stories {
		out[i] = NewStory(s)
	}
	return out
}

// NewAuthorEntry converts an author with attached stories.
func NewAuthorEntry(e domain.AuthorStories) AuthorEntry {
	return AuthorEntry{Author: NewAuthor(e.Author), Stories: NewStories(e.Stories)}
}

// NewAuthorPage converts a grouped page.
func NewAuthorPage(p *service.AuthorPage) AuthorPage {
	entries := make([]AuthorEntry, len(p.Entries))
	for i, e := range p.Entries {
		entries[i] = NewAuthorEntry(e)
	}
	return AuthorPage{Authors: entries, Page: p.Page, Last: p.Last, PageCount: p.PageCount, Tag: p.Tag}
}

// NewStoryPage converts a flat listing page.
func NewStoryPage(p *service.StoryPage) StoryPage {
	return StoryPage{
		Stories:   NewStories(p.Stories),
		Sort:      string(p.Sort),
		Tag:       p.Tag,
		Page:      p.Page,
		PageSize:  p.PageSize,
		Total:     p.Total,
		PageCount: p.PageCount,
		LastPage:  p.LastPage,
	}
}

// NewFavorites converts a favorites view.
func NewFavorites(v *service.FavoritesView) Favorites {
	return Favorites{
		Author:    NewAuthor(v.Author),
		Sort:      string(v.Sort),
		Favorites: NewStories(v.Favorites),
		Written:   NewStories(v.Written),
	}
}

// NewStoryContent converts a story view.
func NewStoryContent(v *service.StoryView) StoryContent {
	chapters := make([]Chapter, len(v.Chapters))
	for i, ch := range v.Chapters {
		chapters[i] = Chapter{Num: ch.Num, Title: ch.Title, Content: ch.Content}
	}
	return StoryContent{Story: NewStory(v.Story), Format: v.Format, Chapters: chapters}
}

// NewFetchJob converts a job. pollURL is where clients poll it.
func NewFetchJob(j *domain.FetchJob, pollURL string) *FetchJob {
	return &FetchJob{
		ID:          j.ID,
		StoryID:     j.StoryID,
		State:       string(j.State),
		Status:      j.Status,
		Path:        j.Path,
		Error:       j.Error,
		StoryURL:    j.StoryURL,
		AuthorURL:   j.AuthorURL,
		PollURL:     pollURL,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
