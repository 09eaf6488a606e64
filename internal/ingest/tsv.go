// Copyright Abx Labs Ltd., 2026. All rights reserved.

package ingest

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// maxLineBytes accommodates screener rows with long product descriptions.
const maxLineBytes = 1 << 20

// readTable reads a tab-separated file into a header and data rows. Ragged
// rows are repaired to the header width: short rows are padded with empty
// fields, long rows have their tail joined into the last column. Tools pad
// inconsistently when a description itself contains a tab.
func readTable(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if header == nil {
			header = fields
			continue
		}
		if len(fields) < len(header) {
			for len(fields) < len(header) {
				fields = append(fields, "")
			}
		} else if len(fields) > len(header) {
			last := len(header) - 1
			fields[last] = strings.Join(fields[last:], " ")
			fields = fields[:len(header)]
		}
		rows = append(rows, fields)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if header == nil {
		return nil, nil, fmt.Errorf("%w: %s is empty", ErrMalformedInput, path)
	}
	return header, rows, nil
}

// headerIndex maps lowercased column names to their positions.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return idx
}

// column returns the named field of a row, or "" when the table lacks the
// column.
func column(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parsePercent parses a percentage field. Blank and placeholder values
// parse to zero; anything else malformed is an error.
func parsePercent(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "-", "NA", "ND":
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad percentage %q", s)
	}
	return v, nil
}

// parseCoordinate parses a 1-based coordinate field, tolerating blanks.
func parseCoordinate(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}
