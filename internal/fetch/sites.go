package fetch

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/ffmirror/ffserve/internal/domain"
)

// GetFunc fetches and parses one remote page.
type GetFunc func(ctx context.Context, url string) (*goquery.Document, error)

// ChapterText is one downloaded chapter before it is written to disk.
type ChapterText struct {
	Num   int
	Title string
	HTML  string
}

// Site knows the URL scheme and page layout of one archive.
type Site interface {
	// Name matches Story.Site and Author.Site.
	Name() string
	StoryURL(siteID string) string
	AuthorURL(a *domain.Author) string
	// Chapters downloads every chapter, calling progress after each one.
	Chapters(ctx context.Context, get GetFunc, st *domain.Story, progress func(n, total int)) ([]ChapterText, error)
}

// DefaultSites returns the archives the mirror knows about.
func DefaultSites() []Site {
	return []Site{
		&FFNet{SiteName: "ffnet", BaseURL: "https://www.fanfiction.net"},
		&FFNet{SiteName: "fictionpress", BaseURL: "https://www.fictionpress.com"},
		&AO3{BaseURL: "https://archiveofourown.org"},
	}
}

// FFNet handles fanfiction.net and its sister site fictionpress.com, one page per chapter.
type FFNet struct {
	SiteName string
	BaseURL  string
}

func (s *FFNet) Name() string { return s.SiteName }

func (s *FFNet) StoryURL(siteID string) string {
	return fmt.Sprintf("%s/s/%s", s.BaseURL, siteID)
}

func (s *FFNet) AuthorURL(a *domain.Author) string {
	return fmt.Sprintf("%s/u/%s", s.BaseURL, a.SiteID)
}

var chapterNumberPrefix = regexp.MustCompile(`^\d+\.\s*`)

func (s *FFNet) Chapters(ctx context.Context, get GetFunc, st *domain.Story, progress func(n, total int)) ([]ChapterText, error) {
	first, err := get(ctx, s.chapterURL(st.SiteID, 1))
	if err != nil {
		return nil, err
	}

	var titles []string
	first.Find("select#chap_select").First().Find("option").Each(func(_ int, opt *goquery.Selection) {
		titles = append(titles, chapterNumberPrefix.ReplaceAllString(strings.TrimSpace(opt.Text()), ""))
	})
	if len(titles) == 0 {
		titles = []string{st.Title}
	}

	out := make([]ChapterText, 0, len(titles))
	for i, title := range titles {
		num := i + 1
		doc := first
		if num > 1 {
			if doc, err = get(ctx, s.chapterURL(st.SiteID, num)); err != nil {
				return nil, err
			}
		}
		body, err := storyText(doc, "#storytext")
		if err != nil {
			return nil, errors.Wrapf(err, "chapter %d", num)
		}
		out = append(out, ChapterText{Num: num, Title: title, HTML: body})
		progress(num, len(titles))
	}
	return out, nil
}

func (s *FFNet) chapterURL(siteID string, num int) string {
	return fmt.Sprintf("%s/s/%s/%d", s.BaseURL, siteID, num)
}

// AO3 handles archiveofourown.org using the full-work view, one request per story.
type AO3 struct {
	BaseURL string
}

func (s *AO3) Name() string { return "ao3" }

func (s *AO3) StoryURL(siteID string) string {
	return fmt.Sprintf("%s/works/%s", s.BaseURL, siteID)
}

func (s *AO3) AuthorURL(a *domain.Author) string {
	return fmt.Sprintf("%s/users/%s", s.BaseURL, a.SiteID)
}

func (s *AO3) Chapters(ctx context.Context, get GetFunc, st *domain.Story, progress func(n, total int)) ([]ChapterText, error) {
	doc, err := get(ctx, s.StoryURL(st.SiteID)+"?view_full_work=true&view_adult=true")
	if err != nil {
		return nil, err
	}

	chapters := doc.Find("#chapters > .chapter")
	if chapters.Length() == 0 {
		body, err := storyText(doc, "#chapters .userstuff")
		if err != nil {
			return nil, err
		}
		progress(1, 1)
		return []ChapterText{{Num: 1, Title: st.Title, HTML: body}}, nil
	}

	total := chapters.Length()
	out := make([]ChapterText, 0, total)
	var firstErr error
	chapters.EachWithBreak(func(i int, ch *goquery.Selection) bool {
		body, err := storyText(ch, ".userstuff")
		if err != nil {
			firstErr = errors.Wrapf(err, "chapter %d", i+1)
			return false
		}
		title := strings.Join(strings.Fields(ch.Find("h3.title").First().Text()), " ")
		out = append(out, ChapterText{Num: i + 1, Title: title, HTML: body})
		progress(i+1, total)
		return true
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

type finder interface {
	Find(selector string) *goquery.Selection
}

func storyText(doc finder, selector string) (string, error) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", errors.Errorf("no story text at %q", selector)
	}
	body, err := sel.Html()
	if err != nil {
		return "", errors.Wrap(err, "render story text")
	}
	return strings.TrimSpace(body), nil
}
