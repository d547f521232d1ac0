package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"classpulse/internal/config"
	"classpulse/internal/exporter"
	"classpulse/internal/infrastructure"
	"classpulse/internal/relation"
	"classpulse/internal/services"
	"classpulse/internal/sheets"
)

// Logical worksheet names accepted by -worksheet.
const (
	worksheetClassLog    = "class-log"
	worksheetStudentData = "student-data"
	worksheetProfiles    = "profiles"
	worksheetSupalearn   = "supalearn"
)

func main() {
	worksheet := flag.String("worksheet", worksheetClassLog, "worksheet to export: class-log | student-data | profiles | supalearn")
	month := flag.Int("month", 0, "restrict class-log rows to this calendar month (1-12, 0 = all)")
	spreadsheet := flag.String("spreadsheet", "", "spreadsheet ID (defaults to the configured CLASSPULSE_SHEETS_SPREADSHEET_ID)")
	out := flag.String("out", "", "output csv path (defaults to <worksheet>.csv under data/exports)")
	appendOut := flag.Bool("append", false, "append rows to an existing export instead of overwriting it")
	flag.Parse()

	paths, err := config.GetPaths()
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}
	cfg.Logging.FilePath = paths.GetLogPath("logcsv.log")

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	if *spreadsheet == "" {
		*spreadsheet = cfg.Sheets.SpreadsheetID
	}
	if *spreadsheet == "" {
		logger.Error("No spreadsheet configured; pass -spreadsheet or set CLASSPULSE_SHEETS_SPREADSHEET_ID")
		os.Exit(1)
	}
	if *month < 0 || *month > 12 {
		logger.Error("Month out of range", slog.Int("month", *month))
		os.Exit(1)
	}
	if *out == "" {
		*out = *worksheet + ".csv"
	}

	logger.Info("Starting worksheet export",
		slog.String("worksheet", *worksheet),
		slog.Int("month", *month),
		slog.String("spreadsheet_id", *spreadsheet),
		slog.String("output_file", *out))

	creds, err := sheets.LoadCredentials(sheets.CredentialsConfig{
		File:       cfg.Sheets.CredentialsFile,
		Passphrase: cfg.Sheets.CredentialsPassphrase,
	})
	if err != nil {
		logger.Error("Failed to load sheets credentials", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Sheets.FetchTimeout)
	defer cancel()

	google, err := sheets.NewGoogleSource(ctx, creds, logger)
	if err != nil {
		logger.Error("Failed to create sheets client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	source := sheets.NewCachedSource(google, sheets.NewCache(), logger)
	dataset := services.NewDataset(source, *spreadsheet, cfg.Sheets.Worksheets, nil, logger)

	rel, err := fetchWorksheet(ctx, dataset, *worksheet)
	if err != nil {
		logger.Error("Worksheet fetch failed",
			slog.String("worksheet", *worksheet),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	fmt.Printf("Fetched %d rows from %s\n", rel.Len(), *worksheet)

	if *month > 0 {
		if *worksheet != worksheetClassLog {
			logger.Warn("Month filter only applies to the class log; exporting all rows")
		} else {
			before := rel.Len()
			rel = filterMonth(rel, *month)
			logger.Info("Applied month filter",
				slog.Int("month", *month),
				slog.Int("kept", rel.Len()),
				slog.Int("dropped", before-rel.Len()))
		}
	}

	writer := exporter.NewCSVWriter(paths)
	if *appendOut {
		err = writer.AppendRelation(*out, rel)
	} else {
		err = writer.WriteRelation(*out, rel)
	}
	if err != nil {
		logger.Error("Failed to write CSV",
			slog.String("path", *out),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Worksheet export completed",
		slog.Int("rows", rel.Len()),
		slog.String("output_path", *out))
	fmt.Printf("Export complete: %d rows written to %s\n", rel.Len(), *out)
}

// fetchWorksheet maps the logical worksheet name onto its dataset
// accessor, so the CLI shares the coercion rules with the portals.
func fetchWorksheet(ctx context.Context, dataset *services.Dataset, name string) (relation.Relation, error) {
	switch name {
	case worksheetClassLog:
		return dataset.ClassLog(ctx)
	case worksheetStudentData:
		return dataset.StudentData(ctx)
	case worksheetProfiles:
		return dataset.Profiles(ctx)
	case worksheetSupalearn:
		return dataset.Supalearn(ctx)
	default:
		return relation.Relation{}, fmt.Errorf("unknown worksheet %q (want class-log, student-data, profiles or supalearn)", name)
	}
}

// filterMonth keeps the class-log rows whose MM cell names the given
// calendar month. Cells are zero-padded before comparison, so "4" and
// "04" both mean April.
func filterMonth(rel relation.Relation, month int) relation.Relation {
	want := fmt.Sprintf("%02d", month)
	var keep []int
	for i := 0; i < rel.Len(); i++ {
		cell := strings.TrimSpace(rel.Value(i, "MM").String())
		for len(cell) < 2 {
			cell = "0" + cell
		}
		if cell == want {
			keep = append(keep, i)
		}
	}
	return rel.Select(keep)
}
