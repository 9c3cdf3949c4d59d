package httpapi

import (
	"context"
	"errors"
	"io/fs"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-dashboard/internal/store"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

var validate = validator.New()

// Dashboard is the part of weather.Service the HTTP surface needs.
type Dashboard interface {
	AddLocation(ctx context.Context, query string) (weather.Place, weather.UpsertResult, error)
	UpdateAll(ctx context.Context) (weather.RefreshReport, error)
	Sheets() ([]string, error)
	SheetRows(name string) ([]weather.ObservationRow, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, dash Dashboard) {
	v1 := app.Group("/api/v1")

	v1.Get("/sheets", func(c *fiber.Ctx) error {
		names, err := dash.Sheets()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return c.JSON(fiber.Map{"sheets": []string{}})
			}
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{"sheets": names})
	})

	v1.Get("/sheets/:name", func(c *fiber.Ctx) error {
		name, err := url.PathUnescape(c.Params("name"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid sheet name")
		}

		rows, err := dash.SheetRows(name)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{
			"sheet":  store.SheetKey(name),
			"header": weather.Header,
			"rows":   rows,
		})
	})

	v1.Post("/locations", func(c *fiber.Ctx) error {
		var req addLocationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		place, res, err := dash.AddLocation(c.UserContext(), req.Name)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{
			"place":  place,
			"result": res,
		})
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		report, err := dash.UpdateAll(c.UserContext())
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(report)
	})
}

// addLocationRequest is the body of POST /locations.
type addLocationRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// toFiberError maps pipeline failures onto HTTP statuses.
func toFiberError(err error) error {
	switch {
	case errors.Is(err, weather.ErrGeocodeNotFound), errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, weather.ErrOutsideCoverage):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, weather.ErrGeocodeTimeout):
		return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
	case errors.Is(err, weather.ErrGeocodeService),
		errors.Is(err, weather.ErrFetchHTTP),
		errors.Is(err, weather.ErrFetchNetwork),
		errors.Is(err, weather.ErrNoData),
		errors.Is(err, weather.ErrMalformedData):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
