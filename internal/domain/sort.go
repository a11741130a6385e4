package domain

import (
	"slices"
	"strings"

	"github.com/ffmirror/ffserve/internal/util"
)

// SortOrder is a story listing order.
type SortOrder string

const (
	SortTitle    SortOrder = "title"
	SortAuthor   SortOrder = "author"
	SortCategory SortOrder = "category"
	SortWords    SortOrder = "words"
	SortUpdated  SortOrder = "updated"
)

// DefaultSort is used when a listing request names no order.
const DefaultSort = SortUpdated

var sortOrders = []SortOrder{SortTitle, SortAuthor, SortCategory, SortWords, SortUpdated}

// errUnknownSort is wrapped by callers into a domain InvalidSort error.
type errUnknownSort string

func (e errUnknownSort) Error() string { return "unknown sort key " + string(e) }

// SortKeys lists the accepted sort keys.
func SortKeys() []string {
	keys := make([]string, len(sortOrders))
	for i, o := range sortOrders {
		keys[i] = string(o)
	}
	return keys
}

// ParseSortOrder maps a request value to a SortOrder. The empty string yields DefaultSort.
func ParseSortOrder(s string) (SortOrder, error) {
	if s == "" {
		return DefaultSort, nil
	}
	o := SortOrder(strings.ToLower(s))
	if !slices.Contains(sortOrders, o) {
		return "", errUnknownSort(s)
	}
	return o, nil
}

// Descending reports whether the order lists the largest value first.
func (o SortOrder) Descending() bool {
	return o == SortWords || o == SortUpdated
}

// SortStories orders stories in place. Ties fall back to title and then id.
func SortStories(stories []*Story, order SortOrder) {
	slices.SortStableFunc(stories, func(a, b *Story) int {
		if c := compareBy(a, b, order); c != 0 {
			if order.Descending() {
				return -c
			}
			return c
		}
		if c := strings.Compare(a.Title, b.Title); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func compareBy(a, b *Story, order SortOrder) int {
	switch order {
	case SortTitle:
		return strings.Compare(a.Title, b.Title)
	case SortAuthor:
		return strings.Compare(util.NameKey(a.AuthorName), util.NameKey(b.AuthorName))
	case SortCategory:
		return strings.Compare(a.Category, b.Category)
	case SortWords:
		return a.Words - b.Words
	case SortUpdated:
		return a.Updated.Compare(b.Updated)
	default:
		return 0
	}
}
