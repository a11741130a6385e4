package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ffmirror/ffserve/internal/api/dto"
	"github.com/ffmirror/ffserve/internal/domain"
)

func (s *Server) registerFavoriteRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "favoriteStory",
		Method:        http.MethodPost,
		Path:          storiesPath + "/{id}/favorite",
		Summary:       "Favorite story",
		Description:   "Redirects to the story when its local copy is current. Otherwise submits a download and returns 202 with the job to poll.",
		Tags:          []string{"Favorites"},
		DefaultStatus: http.StatusAccepted,
		Middlewares:   huma.Middlewares{s.limitFavorites},
	}, s.handleFavoriteStory)

	huma.Register(s.api, huma.Operation{
		OperationID: "getFetchJob",
		Method:      http.MethodGet,
		Path:        fetchJobsPath + "/{id}",
		Summary:     "Poll fetch job",
		Description: "Reports a download. Redirects to the story once it succeeded and returns 502 with the remote pages when it failed.",
		Tags:        []string{"Favorites"},
	}, s.handleGetFetchJob)
}

// FavoriteStoryInput identifies the story to favorite.
type FavoriteStoryInput struct {
	dto.IDParam
}

// FavoriteOutput is either a redirect to the story or an accepted job.
type FavoriteOutput struct {
	Status   int
	Location string `header:"Location"`
	Body     dto.Favorite
}

// FetchJobInput identifies a fetch job.
type FetchJobInput struct {
	dto.IDParam
}

// FetchJobOutput reports a job, redirecting to the story on success.
type FetchJobOutput struct {
	Status   int
	Location string `header:"Location"`
	Body     *dto.FetchJob
}

func (s *Server) handleFavoriteStory(ctx context.Context, input *FavoriteStoryInput) (*FavoriteOutput, error) {
	result, err := s.services.Favorite.RequestFavorite(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if result.Job == nil {
		return &FavoriteOutput{
			Status:   http.StatusSeeOther,
			Location: storyURL(result.Story.ID),
			Body:     dto.Favorite{StoryID: result.Story.ID, Path: result.Path},
		}, nil
	}

	pollURL := jobURL(result.Job.ID)
	return &FavoriteOutput{
		Status:   http.StatusAccepted,
		Location: pollURL,
		Body:     dto.Favorite{StoryID: result.Story.ID, Job: dto.NewFetchJob(result.Job, pollURL)},
	}, nil
}

func (s *Server) handleGetFetchJob(ctx context.Context, input *FetchJobInput) (*FetchJobOutput, error) {
	job, err := s.services.Favorite.JobStatus(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	out := &FetchJobOutput{Status: http.StatusOK, Body: dto.NewFetchJob(job, jobURL(job.ID))}
	if job.State == domain.FetchSucceeded {
		out.Status = http.StatusSeeOther
		out.Location = storyURL(job.StoryID)
	}
	return out, nil
}

func storyURL(id string) string {
	return storiesPath + "/" + url.PathEscape(id)
}

func jobURL(id string) string {
	return fetchJobsPath + "/" + url.PathEscape(id)
}
