package matrixify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sokinpui/shopdiff.go/internal/changeset"
	"github.com/sokinpui/shopdiff.go/internal/fs"
	"github.com/sokinpui/shopdiff.go/internal/ui"
)

const (
	maxSheetName = 31
	// CompletedMarker is written next to imported JSON files once all
	// sheets are converted.
	CompletedMarker = "convert.json.completed"
)

// DefaultExclude lists sheets Matrixify adds that hold no records.
var DefaultExclude = []string{"Export Summary"}

// Export writes every JSON document of jsonDir as one sheet of a new
// workbook in outDir and returns its path. A directory without JSON files
// produces no workbook and an empty path.
func Export(jsonDir, outDir string, now time.Time) (string, error) {
	files, err := fs.ListJSON(jsonDir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		ui.Warning("Skipping %s (no JSON files found).", jsonDir)
		return "", nil
	}
	if err := fs.EnsureDir(outDir); err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	ui.Info("Processing %d JSON file(s) in %s...", len(files), jsonDir)
	for i, file := range files {
		sheet := sheetName(fs.SectionName(file))
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return "", err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return "", fmt.Errorf("failed to add sheet %s: %w", sheet, err)
		}
		if err := writeSheet(f, sheet, file); err != nil {
			return "", err
		}
	}

	out := filepath.Join(outDir, "Export_"+now.Format("2006-01-02_150405")+".xlsx")
	if err := f.SaveAs(out); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", out, err)
	}
	ui.Success("Excel file created: %s", out)
	return out, nil
}

func sheetName(name string) string {
	if r := []rune(name); len(r) > maxSheetName {
		return string(r[:maxSheetName])
	}
	return name
}

func writeSheet(f *excelize.File, sheet, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	records, err := changeset.Decode(data)
	if err != nil {
		return fmt.Errorf("%s is not a JSON array: %w", file, err)
	}

	var columns []string
	index := make(map[string]int)
	rows := make([]map[string]string, 0, len(records))
	for _, record := range records {
		fields, err := objectFields(record)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		row := make(map[string]string, len(fields))
		for _, fld := range fields {
			if _, ok := index[fld.key]; !ok {
				index[fld.key] = len(columns)
				columns = append(columns, fld.key)
			}
			row[fld.key] = cellText(fld.value)
		}
		rows = append(rows, row)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for r, row := range rows {
		values := make([]interface{}, len(columns))
		for i, c := range columns {
			values[i] = row[c]
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

type field struct {
	key   string
	value json.RawMessage
}

// objectFields returns the members of a JSON object in document order.
func objectFields(raw json.RawMessage) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("record is not a JSON object")
	}
	var fields []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		fields = append(fields, field{key: key, value: value})
	}
	return fields, nil
}

// cellText maps a JSON value to the text Matrixify expects in a cell.
func cellText(value json.RawMessage) string {
	trimmed := bytes.TrimSpace(value)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		return ""
	case bytes.Equal(trimmed, []byte("true")):
		return "TRUE"
	case bytes.Equal(trimmed, []byte("false")):
		return "FALSE"
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return string(trimmed)
	}
	return compact.String()
}

// FindWorkbook returns path itself when it is a file, or the single .xlsx
// file inside it when it is a directory.
func FindWorkbook(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return path, nil
	}
	matches, err := filepath.Glob(filepath.Join(path, "*.xlsx"))
	if err != nil {
		return "", err
	}
	if len(matches) != 1 {
		return "", fmt.Errorf("expected exactly one .xlsx file in %s, found %d", path, len(matches))
	}
	return matches[0], nil
}

// Import converts every sheet of the workbook, except the excluded ones,
// into `<Sheet>.json` in outDir and writes the completion marker. Cells are
// read as text; TRUE and FALSE become booleans.
func Import(xlsxPath, outDir string, exclude []string) ([]string, error) {
	f, err := excelize.OpenFile(xlsxPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", xlsxPath, err)
	}
	defer f.Close()

	skip := make(map[string]struct{}, len(exclude))
	for _, s := range exclude {
		skip[s] = struct{}{}
	}

	var written []string
	for _, sheet := range f.GetSheetList() {
		if _, ok := skip[sheet]; ok {
			continue
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return written, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		records, err := sheetRecords(rows)
		if err != nil {
			return written, fmt.Errorf("sheet %s: %w", sheet, err)
		}
		data, err := changeset.Encode(records)
		if err != nil {
			return written, err
		}
		out := filepath.Join(outDir, sheet+".json")
		if err := fs.WriteFile(out, data); err != nil {
			return written, err
		}
		written = append(written, out)
	}

	if err := fs.WriteFile(filepath.Join(outDir, CompletedMarker), []byte("Conversion complete.")); err != nil {
		return written, err
	}
	ui.Success("JSON files saved to %s", outDir)
	return written, nil
}

func sheetRecords(rows [][]string) ([]json.RawMessage, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	records := make([]json.RawMessage, 0, len(rows)-1)
	for _, row := range rows[1:] {
		var b strings.Builder
		b.WriteByte('{')
		for j, column := range header {
			if j > 0 {
				b.WriteByte(',')
			}
			key, err := json.Marshal(column)
			if err != nil {
				return nil, err
			}
			b.Write(key)
			b.WriteByte(':')

			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			switch cell {
			case "TRUE":
				b.WriteString("true")
			case "FALSE":
				b.WriteString("false")
			default:
				value, err := json.Marshal(cell)
				if err != nil {
					return nil, err
				}
				b.Write(value)
			}
		}
		b.WriteByte('}')
		records = append(records, json.RawMessage(b.String()))
	}
	return records, nil
}
