package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"classpulse/internal/config"
	"classpulse/internal/infrastructure"
	"classpulse/internal/relation"
	"classpulse/internal/sheets"
	"classpulse/pkg/contracts/domain"
)

// DataSource is the slice of the sheets layer the dataset needs: fetch,
// cache invalidation and cache stats.
type DataSource interface {
	Fetch(ctx context.Context, spreadsheetID, worksheet string) ([][]string, error)
	Invalidate()
	Stats() sheets.CacheStats
}

// Dataset loads the configured worksheets and turns them into relations.
// It is shared by both portals; all methods are safe for concurrent use
// because the underlying source is.
type Dataset struct {
	source  DataSource
	sheetID string
	names   config.WorksheetsConfig
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// NewDataset creates a dataset over the given source. A nil logger falls
// back to the default logger; metrics may be nil.
func NewDataset(source DataSource, sheetID string, names config.WorksheetsConfig, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *Dataset {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dataset{
		source:  source,
		sheetID: sheetID,
		names:   names,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "dataset")),
	}
}

// ClassLog returns the class log relation. Hr is the only column coerced
// to numbers; everything else stays text.
func (d *Dataset) ClassLog(ctx context.Context) (relation.Relation, error) {
	return d.fetch(ctx, d.names.ClassLog, "Hr")
}

// StudentData returns the student/EM contact lookup relation.
func (d *Dataset) StudentData(ctx context.Context) (relation.Relation, error) {
	return d.fetch(ctx, d.names.StudentData)
}

// Profiles returns the teacher profile relation.
func (d *Dataset) Profiles(ctx context.Context) (relation.Relation, error) {
	return d.fetch(ctx, d.names.Profiles)
}

// Supalearn returns the auxiliary roster relation (SupalearnID, DemoFit).
func (d *Dataset) Supalearn(ctx context.Context) (relation.Relation, error) {
	return d.fetch(ctx, d.names.Supalearn)
}

// WarmUp loads every worksheet once so the cache is hot before the first
// login. It returns the worksheet titles that loaded and those that
// failed; a failure is not fatal, the portal starts degraded.
func (d *Dataset) WarmUp(ctx context.Context) (warmed, failed []string) {
	return d.loadAll(ctx)
}

// Refresh drops every memoized worksheet and loads them again. Existing
// sessions keep their snapshot; only new logins see the fresh data.
func (d *Dataset) Refresh(ctx context.Context) (refreshed, failed []string) {
	d.source.Invalidate()
	d.logger.InfoContext(ctx, "worksheet cache invalidated")
	return d.loadAll(ctx)
}

// Stats reports cache activity for readiness output.
func (d *Dataset) Stats() sheets.CacheStats {
	return d.source.Stats()
}

// SpreadsheetID returns the configured spreadsheet identifier.
func (d *Dataset) SpreadsheetID() string {
	return d.sheetID
}

func (d *Dataset) fetch(ctx context.Context, worksheet string, numeric ...string) (relation.Relation, error) {
	start := time.Now()
	grid, err := d.source.Fetch(ctx, d.sheetID, worksheet)
	infrastructure.RecordSheetFetchMetrics(ctx, d.metrics, worksheet, len(grid), time.Since(start), err)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		d.logger.ErrorContext(ctx, "worksheet fetch failed",
			slog.String("worksheet", worksheet),
			slog.String("error", err.Error()))
		return relation.Relation{}, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, worksheet, err)
	}
	infrastructure.AddSpanEvent(ctx, "worksheet.loaded", map[string]interface{}{
		"worksheet": worksheet,
		"rows":      len(grid),
	})
	if len(grid) == 0 {
		return relation.Relation{}, nil
	}
	return relation.Build(grid[0], grid[1:], numeric...), nil
}

func (d *Dataset) loadAll(ctx context.Context) (loaded, failed []string) {
	names := []string{d.names.ClassLog, d.names.StudentData, d.names.Profiles, d.names.Supalearn}
	errs := make([]error, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			_, errs[i] = d.fetch(gctx, name)
			return nil
		})
	}
	g.Wait()

	for i, name := range names {
		if errs[i] != nil {
			failed = append(failed, name)
			continue
		}
		loaded = append(loaded, name)
	}
	d.logger.InfoContext(ctx, "worksheets loaded",
		slog.Int("loaded", len(loaded)),
		slog.Int("failed", len(failed)))
	return loaded, failed
}

// tableOf converts a relation into its wire shape.
func tableOf(rel relation.Relation) domain.Table {
	rows := make([][]any, rel.Len())
	for i := 0; i < rel.Len(); i++ {
		row := rel.Row(i)
		cells := make([]any, row.Len())
		for j := 0; j < row.Len(); j++ {
			cells[j] = row.At(j).Native()
		}
		rows[i] = cells
	}
	return domain.Table{Columns: rel.Columns(), Rows: rows}
}
