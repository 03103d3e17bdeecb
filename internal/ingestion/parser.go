package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned when an uploaded file is not supported.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Row is one parsed input row, keyed by sanitized column header.
type Row map[string]string

// Get returns the trimmed value of a column, or "" when absent.
func (r Row) Get(field string) string {
	return strings.TrimSpace(r[field])
}

// Parser turns raw file bytes plus a declared extension into ordered rows.
type Parser struct{}

// NewParser creates a file parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads the payload according to the declared extension. Row order is
// stable and equals input order; row numbers reported elsewhere are 1-based
// positions in the returned slice. An empty file yields an empty slice.
func (p *Parser) Parse(payload []byte, extension string) ([]Row, error) {
	switch strings.ToLower(strings.TrimPrefix(extension, ".")) {
	case "csv":
		return parseCSV(payload)
	case "xlsx", "xls":
		return parseExcel(payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, extension)
	}
}

func parseCSV(payload []byte) ([]Row, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	return buildRows(records), nil
}

// parseExcel reads the first worksheet only; additional worksheets are
// ignored. This mirrors the upload template layout.
func parseExcel(payload []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return []Row{}, nil
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet rows: %w", err)
	}

	return buildRows(records), nil
}

// buildRows converts raw records into header-keyed rows. The first non-empty
// record is the header; fully empty records are skipped.
func buildRows(records [][]string) []Row {
	var headers []string
	rows := []Row{}

	for _, record := range records {
		if isEmptyRecord(record) {
			continue
		}
		if headers == nil {
			headers = sanitizeHeaders(record)
			continue
		}

		row := make(Row, len(headers))
		for idx, header := range headers {
			if idx < len(record) {
				row[header] = strings.TrimSpace(record[idx])
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}

	return rows
}

func isEmptyRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.TrimSpace(value)
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}
