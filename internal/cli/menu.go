package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

const clearSequence = "\033[H\033[2J"

// Dashboard is what the menu drives.
type Dashboard interface {
	AddLocation(ctx context.Context, query string) (weather.Place, weather.UpsertResult, error)
	UpdateAll(ctx context.Context) (weather.RefreshReport, error)
}

// Menu is the interactive main menu of the dashboard.
type Menu struct {
	dash   Dashboard
	in     *bufio.Reader
	out    io.Writer
	logger *slog.Logger

	// pending holds a line read still in flight after an abandoned prompt.
	pending chan lineResult

	// Clear wipes the terminal before each menu render.
	Clear bool
}

// NewMenu creates a Menu reading choices from in and printing to out.
func NewMenu(dash Dashboard, in io.Reader, out io.Writer, logger *slog.Logger) *Menu {
	if logger == nil {
		logger = slog.Default()
	}
	return &Menu{
		dash:   dash,
		in:     bufio.NewReader(in),
		out:    out,
		logger: logger,
	}
}

type lineResult struct {
	text string
	err  error
}

// Run loops until the user exits, input ends or ctx is cancelled.
func (m *Menu) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.render()

		choice, err := m.prompt(ctx, "Enter your choice (1-3): ")
		if err != nil {
			return endOfInput(err)
		}

		switch choice {
		case "1":
			if err := m.addLocation(ctx); err != nil {
				return endOfInput(err)
			}
		case "2":
			if err := m.refresh(ctx); err != nil {
				return endOfInput(err)
			}
		case "3":
			fmt.Fprintln(m.out, "\nExiting the application.")
			return nil
		default:
			fmt.Fprintln(m.out, "\nInvalid choice. Please try again.")
		}
	}
}

func (m *Menu) render() {
	if m.Clear {
		fmt.Fprint(m.out, clearSequence)
	}
	line := strings.Repeat("*", 40)
	fmt.Fprintf(m.out, "\n%s\n%s\n%s\n", line, center("MAIN MENU", 40), line)
	fmt.Fprintln(m.out, "\n1. Add new location to Excel-dashboard")
	fmt.Fprintln(m.out, "2. Update dashboard with the new data")
	fmt.Fprintln(m.out, "3. Exit")
}

func (m *Menu) addLocation(ctx context.Context) error {
	query, err := m.prompt(ctx, "Enter city name: ")
	if err != nil {
		return err
	}
	if query == "" {
		fmt.Fprintln(m.out, "\nPlease enter a city name.")
		return m.pause(ctx)
	}

	place, res, err := m.dash.AddLocation(ctx, query)
	if err != nil {
		m.logger.Debug("add location failed", "query", query, "err", err)
		fmt.Fprintf(m.out, "\nError: %s\n", describe(err))
		return m.pause(ctx)
	}

	fmt.Fprintf(m.out, "\nCoordinates for %s: %.6f, %.6f\n",
		place.Name, place.Coordinate.Latitude, place.Coordinate.Longitude)
	if res.Rows == 0 {
		fmt.Fprintln(m.out, "No forecast hours in the coming window; the dashboard was left unchanged.")
		return nil
	}
	if res.Created {
		fmt.Fprintln(m.out, "Excel dashboard has been created.")
	} else {
		fmt.Fprintf(m.out, "Excel dashboard has been updated with data for %s.\n", res.SheetName)
	}
	fmt.Fprintln(m.out, "\nData successfully added.")
	return nil
}

func (m *Menu) refresh(ctx context.Context) error {
	report, err := m.dash.UpdateAll(ctx)
	if err != nil {
		fmt.Fprintf(m.out, "\nAn error occurred while updating the dashboard: %s\n", describe(err))
		return m.pause(ctx)
	}

	for _, f := range report.Failed {
		fmt.Fprintf(m.out, "%s: %s\n", f.Location, describe(f.Err))
	}
	if len(report.Failed) > 0 {
		fmt.Fprintf(m.out, "\nDashboard updated: %d refreshed, %d failed.\n", len(report.Refreshed), len(report.Failed))
		return m.pause(ctx)
	}
	fmt.Fprintln(m.out, "\nDashboard updated successfully.")
	return nil
}

func (m *Menu) prompt(ctx context.Context, label string) (string, error) {
	fmt.Fprint(m.out, label)
	line, err := m.readLine(ctx)
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (m *Menu) pause(ctx context.Context) error {
	fmt.Fprint(m.out, "\nPress \"Enter\" to continue...")
	_, err := m.readLine(ctx)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// readLine waits for the next input line or for ctx to be done. A read
// abandoned on cancellation is picked up by the next call.
func (m *Menu) readLine(ctx context.Context) (string, error) {
	if m.pending == nil {
		ch := make(chan lineResult, 1)
		go func() {
			text, err := m.in.ReadString('\n')
			ch <- lineResult{text: text, err: err}
		}()
		m.pending = ch
	}

	select {
	case r := <-m.pending:
		m.pending = nil
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// endOfInput treats a closed stdin as a normal exit.
func endOfInput(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// describe turns a pipeline error into a message for the user.
func describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, weather.ErrGeocodeNotFound):
		return "Geocoding failed. Check your input or try a different location."
	case errors.Is(err, weather.ErrGeocodeTimeout):
		return "Geocoder service timed out."
	case errors.Is(err, weather.ErrGeocodeService):
		return "Geocoder service error."
	case errors.Is(err, weather.ErrOutsideCoverage):
		return "The provided location is outside the valid geographic area of SMHI."
	default:
		return err.Error()
	}
}

func center(s string, width int) string {
	pad := width - len(s)
	if pad <= 0 {
		return s
	}
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}
