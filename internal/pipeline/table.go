package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/githubphadnis/xta/constants"
)

// Table is the in-memory form of an uploaded statement: a header row plus
// data rows, all strings.
type Table struct {
	Headers []string
	Rows    [][]string
}

// HasHeader reports whether name is one of the table's headers (exact match).
func (t *Table) HasHeader(name string) bool {
	return t.columnIndex(name) >= 0
}

// Column returns the cell of row at the named header, "" when absent.
func (t *Table) Column(row []string, header string) string {
	i := t.columnIndex(header)
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func (t *Table) columnIndex(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// SampleCSV renders the header plus the first n data rows as CSV, the shape
// the column-mapping call expects.
func (t *Table) SampleCSV(n int) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(t.Headers)
	for i, row := range t.Rows {
		if i >= n {
			break
		}
		_ = w.Write(row)
	}
	w.Flush()
	return buf.String()
}

// LoadTable parses the uploaded bytes according to the classified format.
// Unparseable bytes are a hard error: the whole import terminates with zero
// rows committed.
func LoadTable(filename string, contents []byte) (*Table, error) {
	ext := constants.NormalizeExt(filepath.Ext(filename))
	var (
		records [][]string
		err     error
	)
	switch ext {
	case "csv":
		records, err = readCSV(contents)
	case "xls", "xlsx":
		records, err = readWorkbook(contents)
	default:
		return nil, fmt.Errorf("not a spreadsheet extension: %q", ext)
	}
	if err != nil {
		return nil, err
	}

	records = dropEmpty(records)
	if len(records) < 2 {
		return nil, fmt.Errorf("no data rows")
	}
	return &Table{Headers: records[0], Rows: records[1:]}, nil
}

// readCSV parses delimited text, sniffing the delimiter from the first
// line. European bank exports routinely use ';'.
func readCSV(contents []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(contents))
	r.Comma = sniffDelimiter(contents)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return records, nil
}

func sniffDelimiter(contents []byte) rune {
	line := contents
	if i := bytes.IndexByte(contents, '\n'); i >= 0 {
		line = contents[:i]
	}
	best, bestCount := ',', 0
	for _, cand := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(cand))); n > bestCount {
			best, bestCount = cand, n
		}
	}
	return best
}

// readWorkbook reads the first sheet of an XLS/XLSX workbook.
func readWorkbook(contents []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(contents))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// dropEmpty removes rows that are empty across all columns and columns that
// are empty across all rows, before any sampling or row-walking.
func dropEmpty(records [][]string) [][]string {
	kept := records[:0:0]
	width := 0
	for _, row := range records {
		if !rowEmpty(row) {
			kept = append(kept, row)
			if len(row) > width {
				width = len(row)
			}
		}
	}
	if len(kept) == 0 {
		return nil
	}

	used := make([]bool, width)
	for _, row := range kept {
		for i, cell := range row {
			if strings.TrimSpace(cell) != "" {
				used[i] = true
			}
		}
	}

	out := make([][]string, len(kept))
	for ri, row := range kept {
		var slim []string
		for i := 0; i < width; i++ {
			if !used[i] {
				continue
			}
			if i < len(row) {
				slim = append(slim, row[i])
			} else {
				slim = append(slim, "")
			}
		}
		out[ri] = slim
	}
	return out
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
