package pkg

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"filingdesk/internal/app/config"
	"filingdesk/internal/app/handler"
	"filingdesk/internal/app/metrics"
	"filingdesk/internal/app/middleware"
	"filingdesk/internal/app/reaper"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	Config         *config.Config
	Router         *gin.Engine
	Handler        *handler.APIHandler
	AuthMiddleware *middleware.AuthMiddleware
	Limiter        *middleware.RateLimiter
	Reaper         *reaper.Reaper
}

func NewApp(c *config.Config, r *gin.Engine, h *handler.APIHandler, am *middleware.AuthMiddleware, l *middleware.RateLimiter, rp *reaper.Reaper) *Application {
	return &Application{
		Config:         c,
		Router:         r,
		Handler:        h,
		AuthMiddleware: am,
		Limiter:        l,
		Reaper:         rp,
	}
}

// Setup installs middleware and every route on the router.
func (a *Application) Setup() {
	a.Router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", handler.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	a.Router.Use(metrics.Middleware())
	a.Router.MaxMultipartMemory = 16 << 20

	a.Handler.RegisterAPIRoutes(a.Router, a.AuthMiddleware, a.Limiter)
	a.Router.GET("/metrics", metrics.Handler())
	a.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// RunApp serves until ctx is cancelled, then shuts down gracefully.
func (a *Application) RunApp(ctx context.Context) error {
	logrus.Info("Server start up")
	a.Setup()

	if a.Reaper != nil && a.Config.Reaper.Enabled {
		go a.Reaper.Run(ctx)
	}

	serverAddress := fmt.Sprintf("%s:%d", a.Config.ServiceHost, a.Config.ServicePort)
	srv := &http.Server{
		Addr:              serverAddress,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Starting server on %s", serverAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logrus.Info("Server down")
	return nil
}
