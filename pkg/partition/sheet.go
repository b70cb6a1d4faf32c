package partition

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// tableText renders rows as tab separated cells, one row per line,
// dropping trailing empty cells and empty rows.
func tableText(rows [][]string) string {
	var sb strings.Builder
	for _, row := range rows {
		end := len(row)
		for end > 0 && strings.TrimSpace(row[end-1]) == "" {
			end--
		}
		if end == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.Join(row[:end], "\t"))
	}
	return sb.String()
}

// partitionXlsx emits one Table element per non-empty worksheet.
func partitionXlsx(data []byte) ([]Element, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{UnzipSizeLimit: MaxPartSize})
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var out []Element
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return out, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if text := tableText(rows); text != "" {
			out = append(out, Element{Type: Table, Text: text, Page: i + 1})
		}
	}
	return out, nil
}

// partitionXls reads a BIFF8 workbook.
func partitionXls(data []byte) (out []Element, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read xls: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	for i := 0; i < wb.GetNumberSheets(); i++ {
		sheet, err := wb.GetSheet(i)
		if err != nil {
			continue
		}
		var rows [][]string
		for r := 0; r < sheet.GetNumberRows(); r++ {
			row, err := sheet.GetRow(r)
			if err != nil || row == nil {
				continue
			}
			var cells []string
			for _, cell := range row.GetCols() {
				cells = append(cells, cell.GetString())
			}
			rows = append(rows, cells)
		}
		if text := tableText(rows); text != "" {
			out = append(out, Element{Type: Table, Text: text, Page: i + 1})
		}
	}
	return out, nil
}

// partitionDelimited reads CSV or TSV into a single Table element.
func partitionDelimited(data []byte, comma rune) ([]Element, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse delimited text: %w", err)
		}
		rows = append(rows, rec)
	}
	text := tableText(rows)
	if text == "" {
		return nil, nil
	}
	return []Element{{Type: Table, Text: text, Page: 1}}, nil
}
