package extract

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// FlattenXLSX reads every sheet of a spreadsheet and flattens it into
// pricelist-style lines: one line per row, cells joined by a pipe separator
// so the parser can treat columns as adjacent tokens.
func FlattenXLSX(path string) (string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "extract: open spreadsheet %s", path)
	}

	var lines []string
	for _, sheet := range f.Sheets {
		for _, row := range sheet.Rows {
			if line := rowToLine(row); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}

func rowToLine(row *xlsx.Row) string {
	var cells []string
	for _, cell := range row.Cells {
		v := strings.TrimSpace(cell.String())
		if v != "" {
			cells = append(cells, v)
		}
	}
	return strings.Join(cells, " | ")
}
