package providers

import (
	"github.com/samber/do/v2"

	"github.com/ffmirror/ffserve/internal/config"
	"github.com/ffmirror/ffserve/internal/logger"
	"github.com/ffmirror/ffserve/internal/queue"
	"github.com/ffmirror/ffserve/internal/store/sqlite"
)

// StoreHandle wraps the mirror database with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the mirror database.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := sqlite.Open(cfg.Mirror.DatabasePath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Mirror database opened", "path", cfg.Mirror.DatabasePath)

	return &StoreHandle{Store: db}, nil
}

// QueueHandle wraps the fetch job queue with shutdown capability.
type QueueHandle struct {
	*queue.Queue
}

// Shutdown implements do.Shutdownable.
func (h *QueueHandle) Shutdown() error {
	return h.Close()
}

// ProvideQueue provides the durable fetch job queue.
func ProvideQueue(i do.Injector) (*QueueHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	q, err := queue.Open(cfg.Fetch.QueuePath, log.Logger, queue.WithResultTTL(cfg.Fetch.ResultTTL))
	if err != nil {
		return nil, err
	}

	log.Info("Fetch queue opened", "path", cfg.Fetch.QueuePath, "result_ttl", cfg.Fetch.ResultTTL)

	return &QueueHandle{Queue: q}, nil
}
