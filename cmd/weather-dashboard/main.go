package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-dashboard/internal/api/http"
	"github.com/i474232898/weather-dashboard/internal/cli"
	"github.com/i474232898/weather-dashboard/internal/config"
	"github.com/i474232898/weather-dashboard/internal/geocode"
	"github.com/i474232898/weather-dashboard/internal/logging"
	"github.com/i474232898/weather-dashboard/internal/scheduler"
	"github.com/i474232898/weather-dashboard/internal/store"
	"github.com/i474232898/weather-dashboard/internal/weather"
	"github.com/i474232898/weather-dashboard/internal/weather/providers"
)

const appName = "weather-dashboard"

func main() {
	add := flag.String("add", "", "add or update one location and exit")
	refresh := flag.Bool("refresh", false, "refresh every location in the workbook and exit")
	serve := flag.Bool("serve", false, "run the HTTP API and the periodic refresh scheduler")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg, os.Stderr, appName)
	slog.SetDefault(log)

	service := newService(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *serve:
		err = runServer(ctx, cfg, service, log)
	case *add != "":
		err = runAdd(ctx, service, *add)
	case *refresh:
		err = runRefresh(ctx, service)
	default:
		menu := cli.NewMenu(service, os.Stdin, os.Stdout, log)
		menu.Clear = true
		err = menu.Run(ctx)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("weather-dashboard stopped", "err", err)
		stop()
		os.Exit(1)
	}
}

func newService(cfg *config.AppConfig, log *slog.Logger) *weather.Service {
	// Shared HTTP client for outbound forecast calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	fetcher := providers.NewSMHIProvider(providers.HTTPClientConfig{Client: httpClient}, cfg.SMHIBaseURL)
	geo := geocode.NewGoogleGeocoder(cfg.GeocoderAPIKey, cfg.GeocodeTimeout, log)
	transformer := weather.NewTransformer(weather.TransformConfig{
		Hours: cfg.ForecastHours,
		Zone:  cfg.Timezone,
	})
	workbook := store.NewWorkbookStore(cfg.WorkbookPath, log)

	return weather.NewService(geo, fetcher, transformer, workbook, weather.WithLogger(log))
}

func runAdd(ctx context.Context, service *weather.Service, query string) error {
	place, res, err := service.AddLocation(ctx, query)
	if err != nil {
		return err
	}
	fmt.Printf("%s: wrote %d rows to sheet %q (lat %.6f, lon %.6f)\n",
		place.Name, res.Rows, res.SheetName, place.Coordinate.Latitude, place.Coordinate.Longitude)
	return nil
}

func runRefresh(ctx context.Context, service *weather.Service) error {
	report, err := service.UpdateAll(ctx)
	if err != nil {
		return err
	}
	for _, f := range report.Failed {
		fmt.Printf("%s: %s\n", f.Location, f.Message)
	}
	fmt.Printf("Dashboard updated: %d refreshed, %d failed.\n", len(report.Refreshed), len(report.Failed))
	return nil
}

func runServer(ctx context.Context, cfg *config.AppConfig, service *weather.Service, log *slog.Logger) error {
	// Scheduler that periodically refreshes the whole workbook.
	sched := scheduler.New(service, cfg.RefreshInterval, cfg.RefreshInterval, log)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// A refresh-all over many locations runs well past a single request budget.
		WriteTimeout: 2 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": appName,
		})
	})

	httpapi.RegisterRoutes(app, service)

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "port", cfg.Port)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("fiber server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
