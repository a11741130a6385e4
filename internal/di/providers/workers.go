package providers

import (
	"github.com/samber/do/v2"

	"github.com/ffmirror/ffserve/internal/config"
	"github.com/ffmirror/ffserve/internal/fetch"
	"github.com/ffmirror/ffserve/internal/logger"
	"github.com/ffmirror/ffserve/internal/service"
)

// ProvideFetcher provides the remote archive scraper.
func ProvideFetcher(i do.Injector) (*fetch.HTTPFetcher, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return fetch.NewHTTPFetcher(fetch.Options{
		MirrorDir:         cfg.Mirror.Path,
		UserAgent:         cfg.Fetch.UserAgent,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		Timeout:           cfg.Fetch.Timeout,
		MaxRetries:        cfg.Fetch.MaxRetries,
	}, log.Logger), nil
}

// FetchWorkerHandle wraps the fetch worker pool with shutdown capability.
type FetchWorkerHandle struct {
	*service.FetchWorker
}

// Shutdown implements do.Shutdownable.
func (h *FetchWorkerHandle) Shutdown() error {
	h.FetchWorker.Stop()
	return nil
}

// ProvideFetchWorker provides the background story download workers.
func ProvideFetchWorker(i do.Injector) (*FetchWorkerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	queueHandle := do.MustInvoke[*QueueHandle](i)
	fetcher := do.MustInvoke[*fetch.HTTPFetcher](i)

	worker := service.NewFetchWorker(storeHandle.Store, queueHandle.Queue, fetcher, cfg.Fetch.Workers, log.Logger)

	// Start workers
	worker.Start()

	log.Info("Fetch workers started", "workers", cfg.Fetch.Workers, "rate", cfg.Fetch.RequestsPerSecond)

	return &FetchWorkerHandle{FetchWorker: worker}, nil
}
