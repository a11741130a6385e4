package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ffmirror/ffserve/internal/api/dto"
	"github.com/ffmirror/ffserve/internal/service"
)

func (s *Server) registerStoryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listStories",
		Method:      http.MethodGet,
		Path:        storiesPath,
		Summary:     "List stories",
		Description: "Returns one page of every in-mirror story, sorted by the requested key",
		Tags:        []string{"Stories"},
	}, s.handleListStories)

	huma.Register(s.api, huma.Operation{
		OperationID: "getStory",
		Method:      http.MethodGet,
		Path:        storiesPath + "/{id}",
		Summary:     "Read story",
		Description: "Returns the locally cached chapters of a downloaded story",
		Tags:        []string{"Stories"},
	}, s.handleGetStory)
}

// ListStoriesInput contains parameters for the flat story listing.
type ListStoriesInput struct {
	dto.SortParams
	dto.PageParams
}

// StoryPageOutput wraps a flat listing page for Huma.
type StoryPageOutput struct {
	Body dto.StoryPage
}

// GetStoryInput contains parameters for reading a story.
type GetStoryInput struct {
	dto.IDParam
	Format string `query:"format" doc:"Chapter format: html (default) or markdown"`
}

// StoryContentOutput wraps story chapters for Huma.
type StoryContentOutput struct {
	Body dto.StoryContent
}

func (s *Server) handleListStories(ctx context.Context, input *ListStoriesInput) (*StoryPageOutput, error) {
	page, err := s.services.Listing.Stories(ctx, service.StoryQuery{Sort: input.Sort, Page: input.Page})
	if err != nil {
		return nil, err
	}
	return &StoryPageOutput{Body: dto.NewStoryPage(page)}, nil
}

func (s *Server) handleGetStory(ctx context.Context, input *GetStoryInput) (*StoryContentOutput, error) {
	view, err := s.services.Story.Read(ctx, input.ID, input.Format)
	if err != nil {
		return nil, err
	}
	return &StoryContentOutput{Body: dto.NewStoryContent(view)}, nil
}
