// Package csvfile reads scraped raw weather tables and writes the pipeline's
// CSV artifacts. All files are UTF-8; a leading byte-order mark is accepted
// on input and written on output.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// Column aliases accepted in a raw table header.
var columnAliases = map[string][]string{
	"date":        {"日期", "date", "date_text"},
	"sky":         {"天气状况", "sky", "sky_text"},
	"temperature": {"气温", "temperature", "temperature_text"},
	"wind":        {"风力风向", "wind", "wind_text"},
}

// RawHeader is the header written for raw tables.
var RawHeader = []string{"日期", "天气状况", "气温", "风力风向"}

// Reader loads a raw observation table from disk.
// It implements pipeline.RowSource.
type Reader struct {
	path   string
	logger *slog.Logger
}

// NewReader creates a Reader for the CSV file at path.
func NewReader(path string, logger *slog.Logger) *Reader {
	return &Reader{path: path, logger: logger}
}

// ReadRows reads every data row of the table.
func (r *Reader) ReadRows(ctx context.Context) ([]domain.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open raw table: %w", err)
	}
	defer f.Close()

	rows, err := DecodeRows(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	r.logger.Info("raw table read", "path", r.path, "rows", len(rows))
	return rows, nil
}

// DecodeRows parses a raw table. Columns are located by header name, so
// extra columns such as a leading index are ignored.
func DecodeRows(r io.Reader) ([]domain.RawRow, error) {
	header, records, err := decode(r)
	if err != nil {
		return nil, err
	}

	idx := make(map[string]int, len(columnAliases))
	for i, h := range header {
		h = strings.TrimSpace(h)
		for col, aliases := range columnAliases {
			for _, a := range aliases {
				if strings.EqualFold(h, a) {
					idx[col] = i
				}
			}
		}
	}
	for _, col := range []string{"date", "sky", "temperature", "wind"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("raw table header missing %s column", col)
		}
	}

	rows := make([]domain.RawRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, domain.RawRow{
			DateText:        cell(rec, idx["date"]),
			SkyText:         cell(rec, idx["sky"]),
			TemperatureText: cell(rec, idx["temperature"]),
			WindText:        cell(rec, idx["wind"]),
		})
	}
	return rows, nil
}

// ReadTable reads a CSV file and returns its header and data records.
func ReadTable(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return decode(f)
}

func decode(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, errors.New("empty table")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read records: %w", err)
	}
	return header, records, nil
}

func cell(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
