// Package domain holds the mirror entities and the fetch job state machine.
package domain

import (
	"fmt"
	"time"
)

// Author is a writer known to the mirror. InMirror marks authors whose stories are archived locally.
type Author struct {
	ID       string `json:"id"`
	Site     string `json:"site"`
	SiteID   string `json:"site_id"`
	Name     string `json:"name"`
	InMirror bool   `json:"in_mirror"`
}

// Story is a mirrored story. DownloadFn is nil until the story has been fetched at least once.
type Story struct {
	ID           string     `json:"id"`
	Site         string     `json:"site"`
	SiteID       string     `json:"site_id"`
	AuthorID     string     `json:"author_id"`
	AuthorName   string     `json:"author_name"`
	Title        string     `json:"title"`
	Category     string     `json:"category"`
	Words        int        `json:"words"`
	Updated      time.Time  `json:"updated"`
	DownloadTime *time.Time `json:"download_time,omitempty"`
	DownloadFn   *string    `json:"download_fn,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
}

// NeedsFetch reports whether the local copy is missing or older than the remote story.
func (s *Story) NeedsFetch() bool {
	if s.DownloadFn == nil || *s.DownloadFn == "" || s.DownloadTime == nil {
		return true
	}
	return s.Updated.After(*s.DownloadTime)
}

// Downloaded reports whether a local copy exists, however stale.
func (s *Story) Downloaded() bool {
	return s.DownloadFn != nil && *s.DownloadFn != ""
}

// Tag is a free-form label attached to stories.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Chapter is one downloaded chapter. The text lives on disk, see ChapterFile.
type Chapter struct {
	StoryID string `json:"story_id"`
	Num     int    `json:"num"`
	Title   string `json:"title"`
}

// ChapterFile is the file name of chapter num inside a story directory.
func ChapterFile(num int) string {
	return fmt.Sprintf("%04d.html", num)
}

// AuthorStories is an author with the stories attached for one view.
type AuthorStories struct {
	Author  *Author
	Stories []*Story
}

// StoryCount is the pagination weight of the entry.
func (a AuthorStories) StoryCount() int {
	return len(a.Stories)
}
