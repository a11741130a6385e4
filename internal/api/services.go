package api

import "github.com/ffmirror/ffserve/internal/service"

// Services groups the business logic services used by the API server.
type Services struct {
	Listing  *service.ListingService
	Story    *service.StoryService
	Favorite *service.FavoriteService
}
