// snapcased is the snapcase checkout service: it drives the custom
// phone-case order wizard, carries the draft across the external payment
// redirect, and commits finished orders with a primary-then-fallback write.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/snapcase/snapcase/internal/api"
	"github.com/snapcase/snapcase/internal/config"
	"github.com/snapcase/snapcase/internal/fulfillment"
	"github.com/snapcase/snapcase/internal/imaging"
	"github.com/snapcase/snapcase/internal/order"
	"github.com/snapcase/snapcase/internal/payment"
	"github.com/snapcase/snapcase/internal/session"
	"github.com/snapcase/snapcase/internal/storage"
	"github.com/snapcase/snapcase/internal/wizard"
	"github.com/snapcase/snapcase/pkg/webkit"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		port       = flag.Int("port", 0, "HTTP listen port (overrides config)")
		verbose    = flag.Bool("verbose", false, "Enable request logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *verbose {
		cfg.Verbose = true
	}

	srv := webkit.New(webkit.Options{
		Port:    cfg.Port,
		Verbose: cfg.Verbose,
		Name:    "snapcased",
	})

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("creating data dir: %v", err)
	}
	sessions, err := session.Open(filepath.Join(cfg.DataDir, "snapcase.db"), cfg.SessionMaxAge)
	if err != nil {
		log.Fatalf("opening session store: %v", err)
	}
	defer sessions.Close()

	fallbackStore, err := order.NewFallbackStore(sessions.DB())
	if err != nil {
		log.Fatalf("opening fallback order store: %v", err)
	}

	engine := imaging.NewEngine(cfg.MaxImageBytes)
	catalog := fulfillment.NewCatalog(cfg.APIBaseURL, nil)
	resolver := fulfillment.NewResolver(catalog)
	pricer := order.NewCalculator(cfg)
	notifier := order.NewNotifier(cfg.NotifyURL, cfg.NotifySecret, srv.Logger)
	commits := order.NewService(
		pricer,
		resolver,
		storage.NewHTTPUploader(cfg.StorageBaseURL, nil),
		order.NewAPIClient(cfg.APIBaseURL, nil),
		fallbackStore,
		notifier,
		srv.Logger,
	)
	ctrl := wizard.NewController(engine, pricer, resolver, srv.Logger)

	handler := api.NewHandler(api.Deps{
		Controller:    ctrl,
		Engine:        engine,
		Sessions:      sessions,
		Catalog:       catalog,
		Payments:      payment.NewClient(cfg.PaymentBaseURL, nil),
		Commits:       commits,
		Pricer:        pricer,
		ReturnBaseURL: cfg.ReturnBaseURL,
		MaxImageBytes: cfg.MaxImageBytes,
		Logger:        srv.Logger,
	})
	handler.Routes(srv.Router)

	srv.Logger.Info("snapcased ready",
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL,
		"payment_base_url", cfg.PaymentBaseURL,
		"data_dir", cfg.DataDir,
	)

	if err := srv.Serve(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
