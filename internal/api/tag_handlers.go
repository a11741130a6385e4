package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ffmirror/ffserve/internal/api/dto"
	"github.com/ffmirror/ffserve/internal/service"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTagStories",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{name}",
		Summary:     "List tagged stories",
		Description: "Returns one page of in-mirror stories carrying the tag",
		Tags:        []string{"Tags"},
	}, s.handleListTagStories)

	huma.Register(s.api, huma.Operation{
		OperationID: "listTagAuthors",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{name}/authors",
		Summary:     "List tagged authors",
		Description: "Returns one page of authors with at least one story carrying the tag, showing only those stories",
		Tags:        []string{"Tags"},
	}, s.handleListTagAuthors)
}

// TagParam is the tag name path parameter.
type TagParam struct {
	Name string `path:"name" doc:"Tag name"`
}

// ListTagStoriesInput contains parameters for the tagged story listing.
type ListTagStoriesInput struct {
	TagParam
	dto.SortParams
	dto.PageParams
}

// ListTagAuthorsInput contains parameters for the tagged author listing.
type ListTagAuthorsInput struct {
	TagParam
	dto.PageParams
}

func (s *Server) handleListTagStories(ctx context.Context, input *ListTagStoriesInput) (*StoryPageOutput, error) {
	page, err := s.services.Listing.Stories(ctx, service.StoryQuery{Tag: input.Name, Sort: input.Sort, Page: input.Page})
	if err != nil {
		return nil, err
	}
	return &StoryPageOutput{Body: dto.NewStoryPage(page)}, nil
}

func (s *Server) handleListTagAuthors(ctx context.Context, input *ListTagAuthorsInput) (*AuthorPageOutput, error) {
	page, err := s.services.Listing.TagAuthorsPage(ctx, input.Name, input.Page)
	if err != nil {
		return nil, err
	}
	return &AuthorPageOutput{Body: dto.NewAuthorPage(page)}, nil
}
