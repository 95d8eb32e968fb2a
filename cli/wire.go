package cli

import (
	"context"
	"fmt"

	"atpkiosk/config"
	"atpkiosk/gateway"
	"atpkiosk/services/jobstatus"
	"atpkiosk/services/navigation"
	"atpkiosk/services/payment"
	"atpkiosk/services/session"
	"atpkiosk/services/storage"
	"atpkiosk/services/upload"
	"atpkiosk/utils"

	"go.uber.org/zap"
)

// services is everything a kiosk visit needs, built from AppConfig.
type services struct {
	logger   *zap.Logger
	client   *gateway.Client
	sessions *session.DefaultSessionService
	uploads  *upload.DefaultUploadService
	poller   *jobstatus.Poller
	checks   map[string]utils.HealthCheck
}

func buildServices() (*services, error) {
	cfg := config.AppConfig
	logger := utils.GetLogger()

	client := gateway.NewClient(gateway.Options{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.APITimeout,
		AuthToken: cfg.APIAuthToken,
		Logger:    logger.Named("gateway"),
	})

	checks := map[string]utils.HealthCheck{"backend": client.Ping}

	var cache session.Cache = session.NewMemoryCache()
	if cfg.SessionCache == "redis" {
		rdb, err := utils.GetCacheClient()
		if err != nil {
			return nil, err
		}
		cache = session.NewRedisCache(rdb)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	var previewer upload.Previewer
	if cfg.CloudinaryEnabled() {
		cld, err := storage.NewCloudinaryStorage(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cloudinary previews: %w", err)
		}
		previewer = cld
	}

	return &services{
		logger:   logger,
		client:   client,
		sessions: session.NewSessionService(client, cache, cfg.CountdownInterval, logger.Named("session")),
		uploads:  upload.NewUploadService(client, cfg.UploadMode, previewer, logger.Named("upload")),
		poller:   jobstatus.NewPoller(client, cfg.PollInterval, logger.Named("jobstatus")),
		checks:   checks,
	}, nil
}

func (s *services) controller(checkout payment.Checkout) *navigation.Controller {
	cfg := config.AppConfig
	return navigation.NewController(navigation.Deps{
		Sessions:       s.sessions,
		Uploads:        s.uploads,
		PaymentBackend: s.client,
		Checkout:       checkout,
		PaymentOptions: payment.Options{
			CheckoutKey:  cfg.CheckoutKey,
			CheckoutName: cfg.CheckoutName,
			Currency:     cfg.Currency,
		},
		Poller:           s.poller,
		AutoAdvanceDelay: cfg.AutoAdvanceDelay,
		Logger:           s.logger.Named("navigation"),
	})
}
