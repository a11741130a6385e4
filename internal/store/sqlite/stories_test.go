package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/ffmirror/ffserve/internal/domain"
	"github.com/ffmirror/ffserve/internal/store"
)

// seedMirror creates:
//
//	bob   (in mirror)  s3 "Zeta"  [romance], s4 "Alpha" [humor]
//	Alice (in mirror)  s1 "Beta"  [romance], s2 "Gamma"
//	carol (in mirror)  no stories
//	dave  (not mirror) s5 "Delta" [romance]
func seedMirror(t *testing.T, s *Store) {
	t.Helper()
	mustSaveAuthor(t, s, "a-bob", "bob", true)
	mustSaveAuthor(t, s, "a-alice", "Alice", true)
	mustSaveAuthor(t, s, "a-carol", "carol", true)
	mustSaveAuthor(t, s, "a-dave", "dave", false)

	mustSaveStory(t, s, &domain.Story{ID: "s1", AuthorID: "a-alice", Title: "Beta", Category: "HP", Words: 1000, Updated: day(5), Tags: []string{"romance"}})
	mustSaveStory(t, s, &domain.Story{ID: "s2", AuthorID: "a-alice", Title: "Gamma", Category: "Naruto", Words: 3000, Updated: day(2)})
	mustSaveStory(t, s, &domain.Story{ID: "s3", AuthorID: "a-bob", Title: "Zeta", Category: "HP", Words: 2000, Updated: day(9), Tags: []string{"romance"}})
	mustSaveStory(t, s, &domain.Story{ID: "s4", AuthorID: "a-bob", Title: "Alpha", Category: "Bleach", Words: 2000, Updated: day(1), Tags: []string{"humor", "romance-adjacent"}})
	mustSaveStory(t, s, &domain.Story{ID: "s5", AuthorID: "a-dave", Title: "Delta", Category: "HP", Words: 10, Updated: day(3), Tags: []string{"romance"}})
}

func storyIDs(stories []*domain.Story) []string {
	ids := make([]string, len(stories))
	for i, st := range stories {
		ids[i] = st.ID
	}
	return ids
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestListAuthorStories_AllAuthors(t *testing.T) {
	s := newTestStore(t)
	seedMirror(t, s)

	rows, err := s.ListAuthorStories(context.Background(), store.AuthorStoryFilter{})
	if err != nil {
		t.Fatalf("ListAuthorStories: %v", err)
	}

	type pair struct{ author, story string }
	var got []pair
	for _, r := range rows {
		p := pair{author: r.Author.ID}
		if r.Story != nil {
			p.story = r.Story.ID
		}
		got = append(got, p)
	}
	want := []pair{
		{"a-alice", "s1"}, {"a-alice", "s2"},
		{"a-bob", "s4"}, {"a-bob", "s3"},
		{"a-carol", ""},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d: got %v, want %v", i, got[i], want[i])
		}
	}

	if !equalStrings(rows[0].Story.Tags, []string{"romance"}) {
		t.Errorf("tags not attached: %v", rows[0].Story.Tags)
	}
	if rows[0].Story.AuthorName != "Alice" {
		t.Errorf("author name not denormalised: %q", rows[0].Story.AuthorName)
	}
}

func TestListAuthorStories_ByTag(t *testing.T) {
	s := newTestStore(t)
	seedMirror(t, s)

	rows, err := s.ListAuthorStories(context.Background(), store.AuthorStoryFilter{Tag: "romance"})
	if err != nil {
		t.Fatalf("ListAuthorStories: %v", err)
	}

	var got []string
	for _, r := range rows {
		got = append(got, r.Author.ID+"/"+r.Story.ID)
	}
	// dave is not in the mirror; s4 only carries a similar tag.
	want := []string{"a-alice/s1", "a-bob/s3"}
	if !equalStrings(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	// Tags on the rows are the story's full tag set.
	if !equalStrings(rows[1].Story.Tags, []string{"romance"}) {
		t.Errorf("unexpected tags %v", rows[1].Story.Tags)
	}
}

func TestListStories_Sorts(t *testing.T) {
	s := newTestStore(t)
	seedMirror(t, s)
	ctx := context.Background()

	tests := []struct {
		sort domain.SortOrder
		want []string
	}{
		{domain.SortTitle, []string{"s4", "s1", "s2", "s3"}},
		{domain.SortAuthor, []string{"s1", "s2", "s4", "s3"}},
		{domain.SortCategory, []string{"s4", "s1", "s3", "s2"}},
		{domain.SortWords, []string{"s2", "s4", "s3", "s1"}},
		{domain.SortUpdated, []string{"s3", "s1", "s2", "s4"}},
		{"", []string{"s3", "s1", "s2", "s4"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.sort), func(t *testing.T) {
			got, err := s.ListStories(ctx, store.StoryFilter{Sort: tt.sort})
			if err != nil {
				t.Fatalf("ListStories: %v", err)
			}
			if !equalStrings(storyIDs(got), tt.want) {
				t.Errorf("got %v, want %v", storyIDs(got), tt.want)
			}
		})
	}
}

func TestListStories_PagingAndCount(t *testing.T) {
	s := newTestStore(t)
	seedMirror(t, s)
	ctx := context.Background()

	page, err := s.ListStories(ctx, store.StoryFilter{Sort: domain.SortTitle, Limit: 3, Offset: 3})
	if err != nil {
		t.Fatalf("ListStories: %v", err)
	}
	if !equalStrings(storyIDs(page), []string{"s3"}) {
		t.Errorf("got %v", storyIDs(page))
	}

	n, err := s.CountStories(ctx, store.StoryFilter{})
	if err != nil {
		t.Fatalf("CountStories: %v", err)
	}
	if n != 4 {
		t.Errorf("count: got %d, want 4", n)
	}

	n, err = s.CountStories(ctx, store.StoryFilter{Tag: "romance"})
	if err != nil {
		t.Fatalf("CountStories: %v", err)
	}
	if n != 2 {
		t.Errorf("tag count: got %d, want 2", n)
	}
}

func TestListStories_UnknownSort(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ListStories(context.Background(), store.StoryFilter{Sort: "rating"})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetStory(t *testing.T) {
	s := newTestStore(t)
	seedMirror(t, s)
	ctx := context.Background()

	st, err := s.GetStory(ctx, "s4")
	if err != nil {
		t.Fatalf("GetStory: %v", err)
	}
	if st.Title != "Alpha" || st.AuthorName != "bob" || st.Words != 2000 {
		t.Errorf("unexpected story %+v", st)
	}
	if !st.Updated.Equal(day(1)) {
		t.Errorf("updated: got %v", st.Updated)
	}
	if st.DownloadFn != nil || st.DownloadTime != nil {
		t.Errorf("new story should not be downloaded")
	}
	if !equalStrings(st.Tags, []string{"humor", "romance-adjacent"}) {
		t.Errorf("tags: %v", st.Tags)
	}

	if _, err := s.GetStory(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetTagByName(t *testing.T) {
	s := newTestStore(t)
	seedMirror(t, s)
	ctx := context.Background()

	tag, err := s.GetTagByName(ctx, "humor")
	if err != nil {
		t.Fatalf("GetTagByName: %v", err)
	}
	if tag.Name != "humor" || tag.ID == "" {
		t.Errorf("unexpected tag %+v", tag)
	}

	if _, err := s.GetTagByName(ctx, "Humor"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("tag lookup should be exact, got %v", err)
	}
}

func TestSaveStory_ReplacesTags(t *testing.T) {
	s := newTestStore(t)
	seedMirror(t, s)
	ctx := context.Background()

	mustSaveStory(t, s, &domain.Story{ID: "s1", AuthorID: "a-alice", Title: "Beta", Updated: day(5), Tags: []string{"angst"}})

	st, err := s.GetStory(ctx, "s1")
	if err != nil {
		t.Fatalf("GetStory: %v", err)
	}
	if !equalStrings(st.Tags, []string{"angst"}) {
		t.Errorf("tags: %v", st.Tags)
	}
}

func TestMarkStoryDownloaded(t *testing.T) {
	s := newTestStore(t)
	seedMirror(t, s)
	ctx := context.Background()

	chapters := []domain.Chapter{{Num: 1, Title: "Start"}, {Num: 2, Title: "End"}}
	if err := s.MarkStoryDownloaded(ctx, "s2", ".favs/ffnet-s2-gamma", day(20), chapters); err != nil {
		t.Fatalf("MarkStoryDownloaded: %v", err)
	}

	st, err := s.GetStory(ctx, "s2")
	if err != nil {
		t.Fatalf("GetStory: %v", err)
	}
	if st.DownloadFn == nil || *st.DownloadFn != ".favs/ffnet-s2-gamma" {
		t.Errorf("download_fn: %v", st.DownloadFn)
	}
	if st.DownloadTime == nil || !st.DownloadTime.Equal(day(20)) {
		t.Errorf("download_time: %v", st.DownloadTime)
	}
	if st.NeedsFetch() {
		t.Errorf("fresh download should not need fetch")
	}

	got, err := s.ListChapters(ctx, "s2")
	if err != nil {
		t.Fatalf("ListChapters: %v", err)
	}
	if len(got) != 2 || got[0].Num != 1 || got[1].Title != "End" {
		t.Errorf("chapters: %+v", got)
	}

	// A second download replaces the chapter list.
	if err := s.MarkStoryDownloaded(ctx, "s2", ".favs/ffnet-s2-gamma", day(21), chapters[:1]); err != nil {
		t.Fatalf("MarkStoryDownloaded again: %v", err)
	}
	got, _ = s.ListChapters(ctx, "s2") //nolint:errcheck // checked above
	if len(got) != 1 {
		t.Errorf("expected 1 chapter, got %d", len(got))
	}

	if err := s.MarkStoryDownloaded(ctx, "missing", "x", day(1), nil); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFavoritesAndWritten(t *testing.T) {
	s := newTestStore(t)
	seedMirror(t, s)
	ctx := context.Background()

	if err := s.SetFavorites(ctx, "a-carol", []string{"s3", "s1", "s5"}); err != nil {
		t.Fatalf("SetFavorites: %v", err)
	}

	favs, err := s.ListFavoriteStories(ctx, "a-carol")
	if err != nil {
		t.Fatalf("ListFavoriteStories: %v", err)
	}
	if !equalStrings(storyIDs(favs), []string{"s3", "s1", "s5"}) {
		t.Errorf("favorites: %v", storyIDs(favs))
	}

	written, err := s.ListWrittenStories(ctx, "a-bob")
	if err != nil {
		t.Fatalf("ListWrittenStories: %v", err)
	}
	if !equalStrings(storyIDs(written), []string{"s4", "s3"}) {
		t.Errorf("written: %v", storyIDs(written))
	}

	none, err := s.ListWrittenStories(ctx, "a-carol")
	if err != nil {
		t.Fatalf("ListWrittenStories: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no stories, got %d", len(none))
	}
}
