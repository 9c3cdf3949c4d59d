package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Service sequences geocode, fetch, transform and store.
type Service struct {
	geocoder    Geocoder
	fetcher     ForecastFetcher
	transformer *Transformer
	store       Store
	logger      *slog.Logger
	now         func() time.Time

	// mu keeps a single pipeline run touching the workbook at a time.
	mu sync.Mutex
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the wall clock used for the anchor hour and fetched column.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new Service.
func NewService(geocoder Geocoder, fetcher ForecastFetcher, transformer *Transformer, store Store, opts ...Option) *Service {
	s := &Service{
		geocoder:    geocoder,
		fetcher:     fetcher,
		transformer: transformer,
		store:       store,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ETL fetches, transforms and stores the forecast for one location.
// Any stage failure aborts before the workbook is touched, and so does a
// forecast with no hours in the window.
func (s *Service) ETL(ctx context.Context, coord Coordinate, location string) (UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.etl(ctx, uuid.NewString(), coord, location)
}

func (s *Service) etl(ctx context.Context, runID string, coord Coordinate, location string) (UpsertResult, error) {
	log := s.logger.With("run_id", runID, "location", location)
	log.Debug("etl started", "lat", coord.Latitude, "lon", coord.Longitude, "provider", s.fetcher.Name())

	raw, err := s.fetcher.Fetch(ctx, coord)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("fetch forecast for %s: %w", location, err)
	}

	rows, err := s.transformer.Transform(raw, coord, s.now())
	if err != nil {
		return UpsertResult{}, fmt.Errorf("transform forecast for %s: %w", location, err)
	}
	if len(rows) == 0 {
		log.Warn("no forecast hours in window; sheet left unchanged")
		return UpsertResult{SheetName: location, Rows: 0}, nil
	}

	res, err := s.store.Upsert(location, rows)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("store forecast for %s: %w", location, err)
	}

	log.Info("etl completed", "sheet", res.SheetName, "created", res.Created, "rows", res.Rows)
	return res, nil
}

// AddLocation geocodes query and runs the ETL for the resolved place.
func (s *Service) AddLocation(ctx context.Context, query string) (Place, UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	place, err := s.geocoder.Geocode(ctx, query)
	if err != nil {
		return Place{}, UpsertResult{}, fmt.Errorf("geocode %q: %w", query, err)
	}

	res, err := s.etl(ctx, uuid.NewString(), place.Coordinate, place.Name)
	if err != nil {
		return place, UpsertResult{}, err
	}
	return place, res, nil
}

// UpdateAll re-geocodes every sheet in the workbook and refreshes it.
// Failing to list the sheets aborts the pass; a failing location is
// recorded in the report and the pass moves on.
func (s *Service) UpdateAll(ctx context.Context) (RefreshReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := RefreshReport{
		RunID:     uuid.NewString(),
		Refreshed: []string{},
		Failed:    []LocationFailure{},
	}
	log := s.logger.With("run_id", report.RunID)

	names, err := s.store.SheetNames()
	if err != nil {
		return report, fmt.Errorf("load dashboard: %w", err)
	}
	log.Info("refresh started", "locations", len(names))

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := s.refreshOne(ctx, report.RunID, name); err != nil {
			log.Warn("refresh failed", "location", name, "err", err)
			report.Failed = append(report.Failed, LocationFailure{
				Location: name,
				Err:      err,
				Message:  err.Error(),
			})
			continue
		}
		report.Refreshed = append(report.Refreshed, name)
	}

	log.Info("refresh completed", "refreshed", len(report.Refreshed), "failed", len(report.Failed))
	return report, nil
}

func (s *Service) refreshOne(ctx context.Context, runID, name string) error {
	place, err := s.geocoder.Geocode(ctx, name)
	if err != nil {
		switch {
		case errors.Is(err, ErrGeocodeNotFound):
			return fmt.Errorf("location not found for %s: %w", name, err)
		case errors.Is(err, ErrGeocodeTimeout), errors.Is(err, ErrGeocodeService):
			return fmt.Errorf("geocode %s: %w", name, err)
		default:
			return fmt.Errorf("geocode %s: unexpected error: %w", name, err)
		}
	}

	// The sheet name stays the location key, whatever display name the
	// geocoder returns today.
	_, err = s.etl(ctx, runID, place.Coordinate, name)
	return err
}

// Sheets lists the location sheets of the dashboard.
func (s *Service) Sheets() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SheetNames()
}

// SheetRows returns the stored rows of one location sheet.
func (s *Service) SheetRows(name string) ([]ObservationRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Rows(name)
}
