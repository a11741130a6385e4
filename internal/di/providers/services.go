package providers

import (
	"github.com/samber/do/v2"

	"github.com/ffmirror/ffserve/internal/config"
	"github.com/ffmirror/ffserve/internal/logger"
	"github.com/ffmirror/ffserve/internal/service"
	"github.com/ffmirror/ffserve/internal/validation"
)

// ProvideListingService provides the author and story listing service.
func ProvideListingService(i do.Injector) (*service.ListingService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewListingService(storeHandle.Store, v, cfg.Mirror, log.Logger), nil
}

// ProvideStoryService provides the story reader.
func ProvideStoryService(i do.Injector) (*service.StoryService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewStoryService(storeHandle.Store, cfg.Mirror.Path, log.Logger), nil
}

// ProvideFavoriteService provides the favorite orchestrator.
func ProvideFavoriteService(i do.Injector) (*service.FavoriteService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	queueHandle := do.MustInvoke[*QueueHandle](i)
	workerHandle := do.MustInvoke[*FetchWorkerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewFavoriteService(storeHandle.Store, queueHandle.Queue, workerHandle.FetchWorker, cfg.Mirror.Debug, log.Logger), nil
}
