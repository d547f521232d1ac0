package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	apierrors "classpulse/internal/errors"
)

// Source retrieves the raw cell grid of one worksheet. The first row of
// the grid is the header row; all cells come back as strings.
type Source interface {
	Fetch(ctx context.Context, spreadsheetID, worksheet string) ([][]string, error)
}

// GoogleSource reads worksheets through the Google Sheets API with a
// service account.
type GoogleSource struct {
	svc    *gsheets.Service
	logger *slog.Logger
}

// NewGoogleSource builds a Sheets API client from service-account JSON.
func NewGoogleSource(ctx context.Context, credentialsJSON []byte, logger *slog.Logger) (*GoogleSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(gsheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, apierrors.NewConfigError("create sheets service", err)
	}
	return &GoogleSource{
		svc:    svc,
		logger: logger.With(slog.String("component", "sheets.source")),
	}, nil
}

// Fetch returns the worksheet's cells as strings. A worksheet that
// exists but has no cells yields an empty grid, not an error.
func (g *GoogleSource) Fetch(ctx context.Context, spreadsheetID, worksheet string) ([][]string, error) {
	start := time.Now()
	resp, err := g.svc.Spreadsheets.Values.Get(spreadsheetID, worksheet).Context(ctx).Do()
	if err != nil {
		g.logger.ErrorContext(ctx, "worksheet fetch failed",
			slog.String("worksheet", worksheet),
			slog.String("error", err.Error()))
		return nil, apierrors.NewSheetsError(fmt.Sprintf("fetch worksheet %q", worksheet), err)
	}

	grid := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = cellString(cell)
		}
		grid[i] = cells
	}

	g.logger.DebugContext(ctx, "worksheet fetched",
		slog.String("worksheet", worksheet),
		slog.Int("rows", len(grid)),
		slog.Duration("duration", time.Since(start)))
	return grid, nil
}

// cellString renders one API cell value. The API returns formatted
// values, which are strings for ordinary sheets, but formula results can
// surface as numbers or bools.
func cellString(v interface{}) string {
	switch c := v.(type) {
	case string:
		return c
	case nil:
		return ""
	default:
		return fmt.Sprint(c)
	}
}
