package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffmirror/ffserve/internal/domain"
	domainerrors "github.com/ffmirror/ffserve/internal/errors"
	"github.com/ffmirror/ffserve/internal/paging"
	"github.com/ffmirror/ffserve/internal/store"
)

// seedListing creates alice(3) bob(2) Carol(4) dave(1) eve(0) and zed, who is not in the mirror.
func seedListing(t *testing.T, env *testEnv) {
	t.Helper()

	env.addAuthor(t, "a-alice", "Alice", true)
	env.addAuthor(t, "a-bob", "bob", true)
	env.addAuthor(t, "a-carol", "Carol", true)
	env.addAuthor(t, "a-dave", "Dave", true)
	env.addAuthor(t, "a-eve", "Eve", true)
	env.addAuthor(t, "a-zed", "Zed", false)

	stories := []*domain.Story{
		{ID: "s-a1", AuthorID: "a-alice", Title: "Autumn", Category: "Harry Potter", Words: 1000, Updated: day(3), Tags: []string{"angst"}},
		{ID: "s-a2", AuthorID: "a-alice", Title: "Bells", Category: "Harry Potter", Words: 2000, Updated: day(4)},
		{ID: "s-a3", AuthorID: "a-alice", Title: "Cinders", Category: "Naruto", Words: 3000, Updated: day(5)},
		{ID: "s-b1", AuthorID: "a-bob", Title: "Dawn", Category: "Naruto", Words: 4000, Updated: day(6)},
		{ID: "s-b2", AuthorID: "a-bob", Title: "Embers", Category: "Bleach", Words: 5000, Updated: day(7)},
		{ID: "s-c1", AuthorID: "a-carol", Title: "Frost", Category: "Bleach", Words: 6000, Updated: day(8), Tags: []string{"angst", "fluff"}},
		{ID: "s-c2", AuthorID: "a-carol", Title: "Gales", Category: "Bleach", Words: 7000, Updated: day(9)},
		{ID: "s-c3", AuthorID: "a-carol", Title: "Hollow", Category: "Naruto", Words: 8000, Updated: day(10)},
		{ID: "s-c4", AuthorID: "a-carol", Title: "Ice", Category: "Naruto", Words: 9000, Updated: day(11)},
		{ID: "s-d1", AuthorID: "a-dave", Title: "Jade", Category: "Harry Potter", Words: 10000, Updated: day(12)},
		{ID: "s-z1", AuthorID: "a-zed", Title: "Zenith", Category: "Bleach", Words: 99999, Updated: day(20), Tags: []string{"angst"}},
	}
	for _, st := range stories {
		env.addStory(t, st)
	}
}

func entryIDs(entries []domain.AuthorStories) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Author.ID
	}
	return ids
}

func storyIDs(stories []*domain.Story) []string {
	ids := make([]string, len(stories))
	for i, s := range stories {
		ids[i] = s.ID
	}
	return ids
}

func TestAuthorsPage_GroupsByStoryCount(t *testing.T) {
	env := setupTestEnv(t)
	seedListing(t, env)
	svc := env.listing(5, 5)
	ctx := context.Background()

	page, err := svc.AuthorsPage(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-alice", "a-bob"}, entryIDs(page.Entries))
	assert.False(t, page.Last)
	assert.Equal(t, 3, page.PageCount)

	page, err = svc.AuthorsPage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-carol", "a-dave"}, entryIDs(page.Entries))

	// Eve has no stories and is flushed as the undersized last page.
	page, err = svc.AuthorsPage(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-eve"}, entryIDs(page.Entries))
	assert.Empty(t, page.Entries[0].Stories)
	assert.True(t, page.Last)
}

func TestAuthorsPage_All(t *testing.T) {
	env := setupTestEnv(t)
	seedListing(t, env)
	svc := env.listing(5, 5)

	page, err := svc.AuthorsPage(context.Background(), paging.All)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-alice", "a-bob", "a-carol", "a-dave", "a-eve"}, entryIDs(page.Entries))
	assert.True(t, page.Last)
	assert.Equal(t, []string{"s-a1", "s-a2", "s-a3"}, storyIDs(page.Entries[0].Stories))
}

func TestAuthorsPage_OutOfRange(t *testing.T) {
	env := setupTestEnv(t)
	seedListing(t, env)
	svc := env.listing(5, 5)

	_, err := svc.AuthorsPage(context.Background(), 3)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = svc.AuthorsPage(context.Background(), -2)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestAuthorsPage_EmptyMirror(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.listing(5, 5)

	page, err := svc.AuthorsPage(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
	assert.True(t, page.Last)
	assert.Equal(t, 1, page.PageCount)
}

func TestTagAuthorsPage(t *testing.T) {
	env := setupTestEnv(t)
	seedListing(t, env)
	svc := env.listing(5, 5)

	page, err := svc.TagAuthorsPage(context.Background(), "angst", 0)
	require.NoError(t, err)

	// Zed's tagged story is left out because zed is not in the mirror.
	assert.Equal(t, []string{"a-alice", "a-carol"}, entryIDs(page.Entries))
	assert.Equal(t, []string{"s-a1"}, storyIDs(page.Entries[0].Stories))
	assert.Equal(t, []string{"s-c1"}, storyIDs(page.Entries[1].Stories))
	assert.Equal(t, "angst", page.Tag)
	assert.True(t, page.Last)
}

func TestTagAuthorsPage_UnknownTag(t *testing.T) {
	env := setupTestEnv(t)
	seedListing(t, env)
	svc := env.listing(5, 5)

	_, err := svc.TagAuthorsPage(context.Background(), "crossover", 0)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestStories_WordsSortAcrossPages(t *testing.T) {
	env := setupTestEnv(t)
	seedListing(t, env)
	svc := env.listing(5, 4)
	ctx := context.Background()

	var all []*domain.Story
	for i := range 3 {
		page, err := svc.Stories(ctx, StoryQuery{Sort: "words", Page: i})
		require.NoError(t, err)
		assert.Equal(t, 10, page.Total)
		assert.Equal(t, 3, page.PageCount)
		assert.Equal(t, 2, page.LastPage)
		all = append(all, page.Stories...)
	}

	require.Len(t, all, 10)
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].Words, all[i].Words)
	}
	assert.Equal(t, "s-d1", all[0].ID)

	_, err := svc.Stories(ctx, StoryQuery{Sort: "words", Page: 3})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestStories_DefaultSortIsUpdated(t *testing.T) {
	env := setupTestEnv(t)
	seedListing(t, env)
	svc := env.listing(5, 100)

	page, err := svc.Stories(context.Background(), StoryQuery{})
	require.NoError(t, err)
	assert.Equal(t, domain.SortUpdated, page.Sort)
	for i := 1; i < len(page.Stories); i++ {
		assert.False(t, page.Stories[i].Updated.After(page.Stories[i-1].Updated))
	}
}

func TestStories_AllPage(t *testing.T) {
	env := setupTestEnv(t)
	seedListing(t, env)
	svc := env.listing(5, 2)

	page, err := svc.Stories(context.Background(), StoryQuery{Sort: "title", Page: paging.All})
	require.NoError(t, err)
	assert.Len(t, page.Stories, 10)
	assert.Equal(t, "s-a1", page.Stories[0].ID)
}

func TestStories_TagFilter(t *testing.T) {
	env := setupTestEnv(t)
	seedListing(t, env)
	svc := env.listing(5, 10)

	page, err := svc.Stories(context.Background(), StoryQuery{Tag: "angst", Sort: "title"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s-a1", "s-c1"}, storyIDs(page.Stories))
	assert.Equal(t, 2, page.Total)
}

func TestStories_InvalidSort(t *testing.T) {
	env := setupTestEnv(t)
	seedListing(t, env)
	svc := env.listing(5, 10)

	_, err := svc.Stories(context.Background(), StoryQuery{Sort: "rating"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidSort)
}

func TestAuthorStories(t *testing.T) {
	env := setupTestEnv(t)
	seedListing(t, env)
	svc := env.listing(5, 5)

	entry, err := svc.AuthorStories(context.Background(), "a-carol")
	require.NoError(t, err)
	assert.Equal(t, "Carol", entry.Author.Name)
	assert.Equal(t, 4, entry.StoryCount())

	_, err = svc.AuthorStories(context.Background(), "a-nobody")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestLocateAuthor_ConsistentWithListing(t *testing.T) {
	env := setupTestEnv(t)
	seedListing(t, env)
	svc := env.listing(5, 5)
	ctx := context.Background()

	for _, id := range []string{"a-alice", "a-bob", "a-carol", "a-dave", "a-eve"} {
		index, err := svc.LocateAuthor(ctx, id)
		require.NoError(t, err, id)

		page, err := svc.AuthorsPage(ctx, index)
		require.NoError(t, err)
		assert.Contains(t, entryIDs(page.Entries), id)
	}

	_, err := svc.LocateAuthor(ctx, "a-zed")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = svc.LocateAuthor(ctx, "a-nobody")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestAuthorFavorites(t *testing.T) {
	env := setupTestEnv(t)
	seedListing(t, env)
	svc := env.listing(5, 5)
	ctx := context.Background()

	require.NoError(t, env.store.SetFavorites(ctx, "a-alice", []string{"s-c4", "s-b1", "s-z1"}))

	view, err := svc.AuthorFavorites(ctx, "a-alice", "title")
	require.NoError(t, err)
	assert.Equal(t, domain.SortTitle, view.Sort)
	assert.Equal(t, []string{"s-b1", "s-c4", "s-z1"}, storyIDs(view.Favorites))
	assert.Equal(t, []string{"s-a1", "s-a2", "s-a3"}, storyIDs(view.Written))

	view, err = svc.AuthorFavorites(ctx, "a-alice", "words")
	require.NoError(t, err)
	assert.Equal(t, []string{"s-z1", "s-c4", "s-b1"}, storyIDs(view.Favorites))

	_, err = svc.AuthorFavorites(ctx, "a-alice", "kudos")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidSort)
}

func TestGroupRows_OrdersUnsortedRows(t *testing.T) {
	alice := &domain.Author{ID: "a1", Name: "alice"}
	bob := &domain.Author{ID: "b1", Name: "Bob"}
	eve := &domain.Author{ID: "e1", Name: "Eve"}

	rows := []store.AuthorStoryRow{
		{Author: bob, Story: &domain.Story{ID: "b-1"}},
		{Author: alice, Story: &domain.Story{ID: "a-1"}},
		{Author: eve},
		{Author: bob, Story: &domain.Story{ID: "b-2"}},
		{Author: alice, Story: &domain.Story{ID: "a-2"}},
	}

	entries := groupRows(rows)

	require.Len(t, entries, 3)
	assert.Equal(t, []string{"a1", "b1", "e1"}, entryIDs(entries))
	assert.Equal(t, []string{"a-1", "a-2"}, storyIDs(entries[0].Stories))
	assert.Equal(t, []string{"b-1", "b-2"}, storyIDs(entries[1].Stories))
	assert.Empty(t, entries[2].Stories)
}

func TestGroupRows_Empty(t *testing.T) {
	assert.Empty(t, groupRows(nil))
}
