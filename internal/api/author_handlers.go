package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ffmirror/ffserve/internal/api/dto"
)

func (s *Server) registerAuthorRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listAuthors",
		Method:      http.MethodGet,
		Path:        authorsPath,
		Summary:     "List authors",
		Description: "Returns one page of in-mirror authors with their stories. Pages hold at least the configured number of stories, except the last one.",
		Tags:        []string{"Authors"},
	}, s.handleListAuthors)

	huma.Register(s.api, huma.Operation{
		OperationID:   "locateAuthor",
		Method:        http.MethodGet,
		Path:          authorsPath + "/{id}",
		Summary:       "Go to author",
		Description:   "Redirects to the author listing page that shows this author",
		Tags:          []string{"Authors"},
		DefaultStatus: http.StatusFound,
	}, s.handleLocateAuthor)

	huma.Register(s.api, huma.Operation{
		OperationID: "getAuthorStories",
		Method:      http.MethodGet,
		Path:        authorsPath + "/{id}/stories",
		Summary:     "Get author stories",
		Description: "Returns one author with every story they wrote",
		Tags:        []string{"Authors"},
	}, s.handleGetAuthorStories)

	huma.Register(s.api, huma.Operation{
		OperationID: "getAuthorFavorites",
		Method:      http.MethodGet,
		Path:        authorsPath + "/{id}/favorites",
		Summary:     "Get author favorites",
		Description: "Returns the stories an author favorited next to the ones they wrote",
		Tags:        []string{"Authors"},
	}, s.handleGetAuthorFavorites)
}

// ListAuthorsInput contains parameters for listing authors.
type ListAuthorsInput struct {
	dto.PageParams
}

// AuthorPageOutput wraps a grouped author page for Huma.
type AuthorPageOutput struct {
	Body dto.AuthorPage
}

// AuthorInput identifies an author.
type AuthorInput struct {
	dto.IDParam
}

// AuthorStoriesOutput wraps a single author view for Huma.
type AuthorStoriesOutput struct {
	Body dto.AuthorEntry
}

// AuthorFavoritesInput contains parameters for the favorites view.
type AuthorFavoritesInput struct {
	dto.IDParam
	dto.SortParams
}

// AuthorFavoritesOutput wraps the favorites view for Huma.
type AuthorFavoritesOutput struct {
	Body dto.Favorites
}

func (s *Server) handleListAuthors(ctx context.Context, input *ListAuthorsInput) (*AuthorPageOutput, error) {
	page, err := s.services.Listing.AuthorsPage(ctx, input.Page)
	if err != nil {
		return nil, err
	}
	return &AuthorPageOutput{Body: dto.NewAuthorPage(page)}, nil
}

func (s *Server) handleLocateAuthor(ctx context.Context, input *AuthorInput) (*dto.RedirectOutput, error) {
	page, err := s.services.Listing.LocateAuthor(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	location := url.URL{
		Path:     authorsPath,
		RawQuery: "page=" + strconv.Itoa(page),
		Fragment: input.ID,
	}
	return &dto.RedirectOutput{Status: http.StatusFound, Location: location.String()}, nil
}

func (s *Server) handleGetAuthorStories(ctx context.Context, input *AuthorInput) (*AuthorStoriesOutput, error) {
	entry, err := s.services.Listing.AuthorStories(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &AuthorStoriesOutput{Body: dto.NewAuthorEntry(*entry)}, nil
}

func (s *Server) handleGetAuthorFavorites(ctx context.Context, input *AuthorFavoritesInput) (*AuthorFavoritesOutput, error) {
	view, err := s.services.Listing.AuthorFavorites(ctx, input.ID, input.Sort)
	if err != nil {
		return nil, err
	}
	return &AuthorFavoritesOutput{Body: dto.NewFavorites(view)}, nil
}
