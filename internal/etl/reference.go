// Package etl reconciles fetched registry records with the
// Finansinspektionen reference dataset and bulk-loads the merged snapshot
// into Postgres.
package etl

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
)

// ReferenceRow is one row of the reference dataset. OrgNumber is stored
// normalized (no hyphens or whitespace).
type ReferenceRow struct {
	OrgNumber string
	Name      string
	Category  string
}

// ReferenceOptions names the columns to read from the reference dataset.
type ReferenceOptions struct {
	IDColumn       string // required header, e.g., "CorporateID_Clean"
	NameColumn     string
	CategoryColumn string
}

// LoadReference reads the reference dataset from a CSV or XLSX file,
// selected by extension. Rows with a blank identifier are skipped.
func LoadReference(path string, opts ReferenceOptions) ([]ReferenceRow, error) {
	if opts.IDColumn == "" {
		return nil, eris.New("reference: no identifier column configured")
	}

	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		rows, err = readCSV(path)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("reference: %s is empty", path)
	}

	header := mapColumns(rows[0])
	idIdx, ok := header[strings.ToLower(opts.IDColumn)]
	if !ok {
		return nil, eris.Errorf("reference: column %q not found in %s", opts.IDColumn, path)
	}
	nameIdx, hasName := header[strings.ToLower(opts.NameColumn)]
	catIdx, hasCat := header[strings.ToLower(opts.CategoryColumn)]

	var out []ReferenceRow
	for _, row := range rows[1:] {
		if idIdx >= len(row) {
			continue
		}
		id := NormalizeID(row[idIdx])
		if id == "" {
			continue
		}

		ref := ReferenceRow{OrgNumber: id}
		if hasName && nameIdx < len(row) {
			ref.Name = strings.TrimSpace(row[nameIdx])
		}
		if hasCat && catIdx < len(row) {
			ref.Category = strings.TrimSpace(row[catIdx])
		}
		out = append(out, ref)
	}

	zap.L().Info("reference dataset loaded",
		zap.String("component", "etl.reference"),
		zap.String("file", path),
		zap.Int("rows", len(out)),
	)
	return out, nil
}

// readCSV reads all rows from a UTF-8 CSV file, tolerating a leading
// byte-order mark.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reference: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	// Exported FI files carry a UTF-8 BOM; decode it away.
	reader := csv.NewReader(unicode.UTF8BOM.NewDecoder().Reader(f))
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "reference: read %s", path)
		}
		rows = append(rows, record)
	}
}

// readXLSX reads all rows from the first sheet of an XLSX file.
func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reference: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("reference: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// mapColumns builds a lowercased header name → index map.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

// LoadIdentifiers reads the newline-delimited organisation number file.
// Blank lines and a leading byte-order mark are dropped.
func LoadIdentifiers(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "etl: open identifier file %s", path)
	}
	defer f.Close() //nolint:errcheck

	var ids []string
	scanner := bufio.NewScanner(unicode.UTF8BOM.NewDecoder().Reader(f))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "etl: read identifier file %s", path)
	}

	zap.L().Info("identifiers loaded",
		zap.String("component", "etl"),
		zap.String("file", path),
		zap.Int("count", len(ids)),
	)
	return ids, nil
}
