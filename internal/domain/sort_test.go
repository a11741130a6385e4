package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSortOrder(t *testing.T) {
	o, err := ParseSortOrder("")
	require.NoError(t, err)
	assert.Equal(t, SortUpdated, o)

	o, err = ParseSortOrder("Words")
	require.NoError(t, err)
	assert.Equal(t, SortWords, o)

	_, err = ParseSortOrder("rating")
	assert.Error(t, err)
}

func TestSortStories(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	stories := func() []*Story {
		return []*Story{
			{ID: "1", Title: "Beta", AuthorName: "zed", Category: "HP", Words: 500, Updated: day(3)},
			{ID: "2", Title: "Alpha", AuthorName: "Amy", Category: "Naruto", Words: 900, Updated: day(1)},
			{ID: "3", Title: "Gamma", AuthorName: "bob", Category: "HP", Words: 500, Updated: day(3)},
		}
	}
	ids := func(s []*Story) []string {
		out := make([]string, len(s))
		for i, st := range s {
			out[i] = st.ID
		}
		return out
	}

	tests := []struct {
		order SortOrder
		want  []string
	}{
		{SortTitle, []string{"2", "1", "3"}},
		{SortAuthor, []string{"2", "3", "1"}},
		{SortCategory, []string{"1", "3", "2"}},
		{SortWords, []string{"2", "1", "3"}},
		{SortUpdated, []string{"1", "3", "2"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			s := stories()
			SortStories(s, tt.order)
			assert.Equal(t, tt.want, ids(s))
		})
	}
}

func TestSortKeys(t *testing.T) {
	assert.Equal(t, []string{"title", "author", "category", "words", "updated"}, SortKeys())
}
