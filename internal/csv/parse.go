package csv

import (
	"strings"
)

// Parse splits text into rows of fields.
//
// Records end at a newline outside quotes. Inside quotes a doubled quote
// decodes to one literal quote; any other quote toggles quoted mode, even in
// the middle of a field. Every field is trimmed of surrounding whitespace.
// Records whose raw text is blank produce no row.
func Parse(text string) [][]string {
	var (
		rows     [][]string
		row      []string
		field    strings.Builder
		inQuotes bool
		start    int
	)

	endField := func() {
		row = append(row, strings.TrimSpace(field.String()))
		field.Reset()
	}

	endRecord := func(end int) {
		if strings.TrimSpace(text[start:end]) != "" {
			endField()
			rows = append(rows, row)
		}
		row = nil
		field.Reset()
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(text) && text[i+1] == '"' {
				field.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == ',' && !inQuotes:
			endField()
		case c == '\n' && !inQuotes:
			endRecord(i)
			start = i + 1
		default:
			field.WriteByte(c)
		}
	}
	endRecord(len(text))

	return rows
}
