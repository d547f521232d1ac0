package exporter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"classpulse/internal/config"
	"classpulse/internal/relation"
)

// utf8BOM marks exported files as UTF-8 so Excel decodes them correctly.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// RenderCSV renders a relation as CSV bytes ready to serve as a download.
// The header row comes first, then one record per relation row. Null cells
// render as empty fields and numbers print without a trailing ".0".
func RenderCSV(rel relation.Relation) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	writer := csv.NewWriter(&buf)
	if err := writer.Write(rel.Columns()); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}
	for i := 0; i < rel.Len(); i++ {
		if err := writer.Write(recordStrings(rel.Row(i))); err != nil {
			return nil, fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// recordStrings renders each cell of a row for CSV output.
func recordStrings(row relation.Row) []string {
	record := make([]string, row.Len())
	for j := 0; j < row.Len(); j++ {
		record[j] = row.At(j).String()
	}
	return record
}

// CSVWriter writes relations to CSV files under the exports directory.
// Relative file names land there; absolute paths are taken as given.
type CSVWriter struct {
	paths *config.Paths
}

func NewCSVWriter(paths *config.Paths) *CSVWriter {
	return &CSVWriter{paths: paths}
}

// WriteRelation writes a fresh export with header row and BOM, row by
// row through a stream writer.
func (w *CSVWriter) WriteRelation(filePath string, rel relation.Relation) error {
	stream, err := w.CreateStreamWriter(filePath, rel.Columns())
	if err != nil {
		return err
	}
	for i := 0; i < rel.Len(); i++ {
		if err := stream.WriteRecord(recordStrings(rel.Row(i))); err != nil {
			stream.Close()
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return stream.Close()
}

// AppendRelation adds the relation's rows to an existing export without
// repeating the header row.
func (w *CSVWriter) AppendRelation(filePath string, rel relation.Relation) error {
	records := make([][]string, 0, rel.Len())
	for i := 0; i < rel.Len(); i++ {
		records = append(records, recordStrings(rel.Row(i)))
	}
	return w.WriteCSV(filePath, WriteOptions{Records: records, Append: true})
}

// WriteOptions configures WriteCSV. Appending skips both the header row
// and the BOM, since the target file already starts with them.
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool
}

// WriteCSV writes records to a file with the given options.
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	fullPath := w.resolvePath(filePath)

	slog.Info("writing csv export",
		slog.String("path", fullPath),
		slog.Int("records", len(options.Records)),
		slog.Bool("append", options.Append))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if options.Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(fullPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if options.BOMPrefix && !options.Append {
		if _, err := file.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if !options.Append && len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return writer.Error()
}

// StreamWriter writes one export record at a time, so large worksheets
// never need their string form held in memory all at once.
type StreamWriter struct {
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter opens filePath for a fresh export, writing the BOM
// and the header row before any records.
func (w *CSVWriter) CreateStreamWriter(filePath string, headers []string) (*StreamWriter, error) {
	fullPath := w.resolvePath(filePath)

	slog.Info("creating csv stream",
		slog.String("path", fullPath),
		slog.Int("columns", len(headers)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := file.Write(utf8BOM); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(file)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}

	return &StreamWriter{file: file, writer: writer}, nil
}

// WriteRecord appends a single record to the stream.
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes buffered records and closes the file.
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	return w.paths.GetExportPath(filePath)
}
