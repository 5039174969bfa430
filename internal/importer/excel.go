// Package importer loads regulatory source lists from spreadsheets.
package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jonesrussell/north-cloud/regwatch/internal/config"
)

// Column indices (0-based).
const (
	colLabel     = 0 // Column A
	colURL       = 1 // Column B
	colCategory  = 2 // Column C
	colLanguage  = 3 // Column D
	colAuthority = 4 // Column E

	minRequiredColumns = 2
	headerRows         = 1
)

// Headers is the expected first row.
var Headers = []string{"label", "url", "category", "language", "authority"}

var errNoSheets = errors.New("workbook has no sheets")

// SourceRow is a parsed spreadsheet row.
type SourceRow struct {
	Row       int // Excel row number (for error reporting)
	Label     string
	URL       string
	Category  string
	Language  string
	Authority string
}

// ImportError is a validation failure for a specific row.
type ImportError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ValidateRow returns an error message for row, or "".
func ValidateRow(row SourceRow) string {
	if strings.TrimSpace(row.Label) == "" {
		return "label is required"
	}
	if strings.TrimSpace(row.URL) == "" {
		return "url is required"
	}
	if !strings.HasPrefix(row.URL, "http://") && !strings.HasPrefix(row.URL, "https://") {
		return "url must start with http:// or https://"
	}
	return ""
}

// ParseExcel reads the first sheet of a workbook. Rows failing validation
// are reported in the second return value and skipped; duplicate URLs keep
// their first occurrence.
func ParseExcel(r io.Reader) ([]SourceRow, []ImportError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errNoSheets
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	var (
		parsed   []SourceRow
		failures []ImportError
		seen     = make(map[string]int)
	)
	for i, cells := range rows {
		if i < headerRows || blank(cells) {
			continue
		}
		rowNum := i + 1
		if len(cells) < minRequiredColumns {
			failures = append(failures, ImportError{Row: rowNum, Error: "label and url columns are required"})
			continue
		}

		row := SourceRow{
			Row:       rowNum,
			Label:     cell(cells, colLabel),
			URL:       cell(cells, colURL),
			Category:  cell(cells, colCategory),
			Language:  cell(cells, colLanguage),
			Authority: cell(cells, colAuthority),
		}
		if msg := ValidateRow(row); msg != "" {
			failures = append(failures, ImportError{Row: rowNum, Error: msg})
			continue
		}
		if first, dup := seen[row.URL]; dup {
			failures = append(failures, ImportError{Row: rowNum, Error: fmt.Sprintf("duplicate of row %d", first)})
			continue
		}
		seen[row.URL] = rowNum
		parsed = append(parsed, row)
	}
	return parsed, failures, nil
}

// LoadSources opens path and converts valid rows to source configs.
// Missing authority and language are left for config defaults.
func LoadSources(path string) ([]config.SourceConfig, []ImportError, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sources file: %w", err)
	}
	defer func() { _ = file.Close() }()

	rows, failures, err := ParseExcel(file)
	if err != nil {
		return nil, nil, err
	}

	sources := make([]config.SourceConfig, 0, len(rows))
	for _, r := range rows {
		sources = append(sources, config.SourceConfig{
			Label:     r.Label,
			URL:       r.URL,
			Category:  r.Category,
			Language:  r.Language,
			Authority: r.Authority,
		})
	}
	return sources, failures, nil
}

func cell(cells []string, idx int) string {
	if idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
