package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/ffmirror/ffserve/internal/api"
	"github.com/ffmirror/ffserve/internal/config"
	"github.com/ffmirror/ffserve/internal/logger"
	"github.com/ffmirror/ffserve/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	handler *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	defer h.handler.Close()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	queueHandle := do.MustInvoke[*QueueHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Listing:  do.MustInvoke[*service.ListingService](i),
		Story:    do.MustInvoke[*service.StoryService](i),
		Favorite: do.MustInvoke[*service.FavoriteService](i),
	}

	handler := api.NewServer(storeHandle.Store, queueHandle.Queue, services, cfg.Server, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, handler: handler}, nil
}
