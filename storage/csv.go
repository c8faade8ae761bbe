package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"yacht-platform/models"
)

var exportHeader = []string{
	"id", "title", "brand", "model", "year", "length", "price", "currency",
	"location", "condition", "seller_type", "source_platform", "source_url",
	"hin", "mmsi", "is_duplicate", "score", "updated_at",
}

// CSVWriter exports listings to a CSV file.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(exportHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteListings appends one row per listing.
func (c *CSVWriter) WriteListings(listings []*models.Listing) error {
	for _, l := range listings {
		row := []string{
			strconv.FormatInt(l.ID, 10),
			l.Title,
			l.Brand,
			l.Model,
			optionalInt(l.Year),
			optionalFloat(l.Length),
			optionalFloat(l.Price),
			l.Currency,
			l.Location,
			l.Condition,
			l.SellerType,
			l.SourcePlatform,
			l.SourceURL,
			l.HIN,
			l.MMSI,
			strconv.FormatBool(l.IsDuplicate),
			strconv.FormatFloat(l.Score, 'f', 2, 64),
			l.UpdatedAt.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// ReadRawCSV reads seed listings from a CSV file with a header row. Columns
// are matched by name; unknown columns are ignored and missing ones are left
// empty. Only "title" and "source_url" are required.
func ReadRawCSV(path string) ([]*models.RawListing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()
	return ParseRawCSV(f)
}

// ParseRawCSV is ReadRawCSV over an arbitrary reader.
func ParseRawCSV(r io.Reader) ([]*models.RawListing, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv: empty file")
		}
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"title", "source_url"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("csv: missing required column %q", required)
		}
	}

	var out []*models.RawListing
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}

		cell := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}

		out = append(out, &models.RawListing{
			Title:          cell("title"),
			RawPrice:       cell("price"),
			Currency:       cell("currency"),
			RawYear:        cell("year"),
			Brand:          cell("brand"),
			Model:          cell("model"),
			RawLength:      cell("length"),
			Location:       cell("location"),
			Condition:      cell("condition"),
			Description:    cell("description"),
			SellerName:     cell("seller_name"),
			SellerType:     cell("seller_type"),
			SourceURL:      cell("source_url"),
			SourcePlatform: cell("source_platform"),
			Images:         cell("images"),
			HIN:            cell("hin"),
			MMSI:           cell("mmsi"),
		})
	}
	return out, nil
}
