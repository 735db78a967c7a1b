package appbuilder

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zkemail/paytox/pkg/logger"
	"github.com/zkemail/paytox/pkg/rabbitmq"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	Logger         *logger.Logger
	Addr           string
	WorkerServices []rabbitmq.WorkerService
	Engine         *gin.Engine
	Closers        []func() error
}

// Start runs the worker services and the REST API until ctx is cancelled or one of them fails.
func (a *Application) Start(ctx context.Context) error {
	a.Logger.Info("Starting Application runtime...")

	g, gctx := errgroup.WithContext(ctx)

	for _, ws := range a.WorkerServices {
		ws := ws
		a.Logger.Infof("Starting %s WorkerService", ws.GetServiceName())
		g.Go(func() error {
			return ws.StartService(gctx)
		})
	}

	server := &http.Server{
		Addr:              a.Addr,
		Handler:           a.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		a.Logger.Infof("REST API is now listening on: %s", a.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	for _, closer := range a.Closers {
		if cerr := closer(); cerr != nil {
			a.Logger.Error(cerr, "Cleanup failed")
		}
	}

	a.Logger.Info("Application stopped")
	return err
}
