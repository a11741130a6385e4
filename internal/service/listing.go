package service

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/ffmirror/ffserve/internal/config"
	"github.com/ffmirror/ffserve/internal/domain"
	domainerrors "github.com/ffmirror/ffserve/internal/errors"
	"github.com/ffmirror/ffserve/internal/paging"
	"github.com/ffmirror/ffserve/internal/store"
	"github.com/ffmirror/ffserve/internal/util"
	"github.com/ffmirror/ffserve/internal/validation"
)

// AuthorPage is one page of a grouped author listing.
type AuthorPage struct {
	Entries []domain.AuthorStories
	// Page is the requested index, paging.All for the whole list.
	Page      int
	Last      bool
	PageCount int
	Tag       string
}

// StoryQuery selects a page of the flat story listing.
type StoryQuery struct {
	Tag  string `json:"tag"`
	Sort string `json:"sort" validate:"sortkey"`
	Page int    `json:"page" validate:"gte=-1"`
}

// StoryPage is one page of the flat story listing.
type StoryPage struct {
	Stories   []*domain.Story
	Sort      domain.SortOrder
	Tag       string
	Page      int
	PageSize  int
	Total     int
	PageCount int
	LastPage  int
}

// FavoritesView lists what an author liked next to what they wrote.
type FavoritesView struct {
	Author    *domain.Author
	Sort      domain.SortOrder
	Favorites []*domain.Story
	Written   []*domain.Story
}

type pageQuery struct {
	Page int `json:"page" validate:"gte=-1"`
}

type sortQuery struct {
	Sort string `json:"sort" validate:"sortkey"`
}

// ListingService composes the author and story views of the mirror.
type ListingService struct {
	store     store.Reader
	validator *validation.Validator
	threshold int
	pageSize  int
	logger    *slog.Logger
}

// NewListingService creates a listing service.
func NewListingService(st store.Reader, v *validation.Validator, cfg config.MirrorConfig, logger *slog.Logger) *ListingService {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = cfg.PageThreshold
	}
	return &ListingService{
		store:     st,
		validator: v,
		threshold: cfg.PageThreshold,
		pageSize:  pageSize,
		logger:    logger,
	}
}

// AuthorsPage returns one page of every in-mirror author with their written stories.
func (s *ListingService) AuthorsPage(ctx context.Context, page int) (*AuthorPage, error) {
	if err := s.validator.Validate(pageQuery{Page: page}); err != nil {
		return nil, err
	}

	entries, err := s.authorEntries(ctx, store.AuthorStoryFilter{})
	if err != nil {
		return nil, err
	}
	return s.page(entries, page, "")
}

// TagAuthorsPage returns one page of the authors having at least one story tagged name.
// Only the matching stories are attached.
func (s *ListingService) TagAuthorsPage(ctx context.Context, name string, page int) (*AuthorPage, error) {
	if err := s.validator.Validate(pageQuery{Page: page}); err != nil {
		return nil, err
	}

	tag, err := s.tag(ctx, name)
	if err != nil {
		return nil, err
	}

	entries, err := s.authorEntries(ctx, store.AuthorStoryFilter{Tag: tag.Name})
	if err != nil {
		return nil, err
	}
	return s.page(entries, page, tag.Name)
}

// Stories returns one page of the flat story listing.
func (s *ListingService) Stories(ctx context.Context, q StoryQuery) (*StoryPage, error) {
	if err := s.validator.Validate(q); err != nil {
		return nil, err
	}
	order, err := domain.ParseSortOrder(q.Sort)
	if err != nil {
		return nil, domainerrors.InvalidSort(q.Sort, domain.SortKeys())
	}

	if q.Tag != "" {
		tag, err := s.tag(ctx, q.Tag)
		if err != nil {
			return nil, err
		}
		q.Tag = tag.Name
	}

	filter := store.StoryFilter{Tag: q.Tag, Sort: order}
	total, err := s.store.CountStories(ctx, filter)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "count stories")
	}

	pageCount := max(1, (total+s.pageSize-1)/s.pageSize)
	if q.Page >= pageCount {
		return nil, domainerrors.NotFoundf("page %d does not exist", q.Page)
	}
	if q.Page != paging.All {
		filter.Limit = s.pageSize
		filter.Offset = q.Page * s.pageSize
	}

	stories, err := s.store.ListStories(ctx, filter)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list stories")
	}

	return &StoryPage{
		Stories:   stories,
		Sort:      order,
		Tag:       q.Tag,
		Page:      q.Page,
		PageSize:  s.pageSize,
		Total:     total,
		PageCount: pageCount,
		LastPage:  pageCount - 1,
	}, nil
}

// AuthorStories returns one author with every story they wrote.
func (s *ListingService) AuthorStories(ctx context.Context, authorID string) (*domain.AuthorStories, error) {
	author, err := s.author(ctx, authorID)
	if err != nil {
		return nil, err
	}

	stories, err := s.store.ListWrittenStories(ctx, author.ID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list written stories")
	}
	return &domain.AuthorStories{Author: author, Stories: stories}, nil
}

// LocateAuthor returns the index of the all-authors page that lists authorID.
func (s *ListingService) LocateAuthor(ctx context.Context, authorID string) (int, error) {
	if _, err := s.author(ctx, authorID); err != nil {
		return 0, err
	}

	entries, err := s.authorEntries(ctx, store.AuthorStoryFilter{})
	if err != nil {
		return 0, err
	}

	index, ok := paging.Find(entries, domain.AuthorStories.StoryCount, s.threshold, func(e domain.AuthorStories) bool {
		return e.Author.ID == authorID
	})
	if !ok {
		return 0, domainerrors.NotFoundf("author %s is not in the mirror", authorID)
	}
	return index, nil
}

// AuthorFavorites returns the stories an author favorited and the ones they wrote, both in order.
func (s *ListingService) AuthorFavorites(ctx context.Context, authorID, sort string) (*FavoritesView, error) {
	if err := s.validator.Validate(sortQuery{Sort: sort}); err != nil {
		return nil, err
	}
	order, err := domain.ParseSortOrder(sort)
	if err != nil {
		return nil, domainerrors.InvalidSort(sort, domain.SortKeys())
	}

	author, err := s.author(ctx, authorID)
	if err != nil {
		return nil, err
	}

	favorites, err := s.store.ListFavoriteStories(ctx, author.ID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list favorite stories")
	}
	written, err := s.store.ListWrittenStories(ctx, author.ID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list written stories")
	}

	domain.SortStories(favorites, order)
	domain.SortStories(written, order)

	return &FavoritesView{Author: author, Sort: order, Favorites: favorites, Written: written}, nil
}

func (s *ListingService) page(entries []domain.AuthorStories, index int, tag string) (*AuthorPage, error) {
	pageCount := paging.Count(entries, domain.AuthorStories.StoryCount, s.threshold)

	items, last, err := paging.Page(entries, domain.AuthorStories.StoryCount, s.threshold, index)
	if errors.Is(err, paging.ErrPageOutOfRange) {
		return nil, domainerrors.NotFoundf("page %d does not exist", index)
	}
	if err != nil {
		return nil, err
	}

	return &AuthorPage{
		Entries:   items,
		Page:      index,
		Last:      last,
		PageCount: pageCount,
		Tag:       tag,
	}, nil
}

func (s *ListingService) authorEntries(ctx context.Context, filter store.AuthorStoryFilter) ([]domain.AuthorStories, error) {
	rows, err := s.store.ListAuthorStories(ctx, filter)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list authors")
	}
	return groupRows(rows), nil
}

func (s *ListingService) author(ctx context.Context, id string) (*domain.Author, error) {
	author, err := s.store.GetAuthor(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("author %s not found", id)
	}
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "get author")
	}
	return author, nil
}

func (s *ListingService) tag(ctx context.Context, name string) (*domain.Tag, error) {
	tag, err := s.store.GetTagByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("tag %q not found", name)
	}
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "get tag")
	}
	return tag, nil
}

// groupRows folds author-major rows into one entry per author. Rows are stable-sorted by
// folded name and author id first, so grouping holds even if the store order drifts.
func groupRows(rows []store.AuthorStoryRow) []domain.AuthorStories {
	keys := make(map[string]string, len(rows))
	for _, r := range rows {
		if _, ok := keys[r.Author.ID]; !ok {
			keys[r.Author.ID] = util.NameKey(r.Author.Name)
		}
	}

	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b store.AuthorStoryRow) int {
		return cmp.Or(
			cmp.Compare(keys[a.Author.ID], keys[b.Author.ID]),
			cmp.Compare(a.Author.ID, b.Author.ID),
		)
	})

	entries := []domain.AuthorStories{}
	for _, r := range sorted {
		if n := len(entries); n == 0 || entries[n-1].Author.ID != r.Author.ID {
			entries = append(entries, domain.AuthorStories{Author: r.Author, Stories: []*domain.Story{}})
		}
		if r.Story != nil {
			last := &entries[len(entries)-1]
			last.Stories = append(last.Stories, r.Story)
		}
	}
	return entries
}
