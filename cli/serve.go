package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"atpkiosk/config"
	"atpkiosk/handlers"
	"atpkiosk/middleware"
	"atpkiosk/routes"
	"atpkiosk/services/payment"
	"atpkiosk/utils"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local kiosk API for the renderer",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.AppConfig
	svcs, err := buildServices()
	if err != nil {
		return err
	}
	logger := svcs.logger

	bridge := payment.NewBridgeCheckout()
	ctrl := svcs.controller(bridge)
	defer ctrl.Close()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))

	kioskHandler := handlers.NewKioskHandler(ctrl, bridge, cfg.Currency)
	handlerBundle := handlers.NewHandlerBundle(kioskHandler, cfg.KioskAPISecret, splitOrigins(cfg.CORSOrigins), cfg.MaxRequestsPerMin)
	routes.RegisterRoutes(router, handlerBundle)

	port := cfg.AppPort
	if port == "" {
		port = "8090"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	utils.StartHealthMonitor(ctx, time.Minute, svcs.checks)

	serveErr := make(chan error, 1)
	logger.Sugar().Infof("Starting kiosk API on %s (backend %s)...", srv.Addr, cfg.APIBaseURL)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Sugar().Info("serve: server is shutting down...")

	// Event streams stay open until their context ends; close the visit first
	// so subscribers are released.
	ctrl.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Sugar().Info("serve: server stopped gracefully")
	return nil
}
