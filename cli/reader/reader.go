// Package reader loads batch input files into item slices for
// gristmill run. Two formats are supported: plain line files (one item
// per line) and CSV files (one map per row, keyed by header).
package reader

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Options controls how an input file is parsed.
type Options struct {
	// Delimiter is the CSV field delimiter. Empty means sniff it from
	// the header line.
	Delimiter string
	// SkipBlank drops blank lines from line-oriented input.
	SkipBlank bool
}

// Load reads the file at path into a slice of items. Files ending in
// .csv or .tsv are parsed as CSV with a header row; everything else is
// read line by line.
func Load(path string, opts Options) ([]any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return CSV(path, opts.Delimiter)
	default:
		return Lines(path, opts.SkipBlank)
	}
}

// Lines reads path into one string item per line. Trailing newlines are
// stripped; blank lines are dropped when skipBlank is set.
func Lines(path string, skipBlank bool) ([]any, error) {
	// Line inputs run to millions of items; counting first buys one
	// allocation instead of repeated growth.
	total, err := FileLen(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open input file %q: %w", path, err)
	}
	defer f.Close()

	items := make([]any, 0, total)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if skipBlank && strings.TrimSpace(line) == "" {
			continue
		}
		items = append(items, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	return items, nil
}

// CSV reads path as a CSV file with a header row. Each record becomes a
// map[string]any keyed by the header fields. An empty delimiter is
// sniffed from the header line.
func CSV(path string, delimiter string) ([]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open input file %q: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 64*1024)

	sep := []rune(delimiter)
	if len(sep) == 0 {
		d, err := sniffDelimiter(br)
		if err != nil {
			return nil, fmt.Errorf("sniffing delimiter of %q: %w", path, err)
		}
		sep = []rune{d}
	} else if len(sep) > 1 {
		return nil, fmt.Errorf("delimiter must be a single character, got %q", delimiter)
	}

	r := csv.NewReader(br)
	r.Comma = sep[0]
	r.FieldsPerRecord = 0
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header of %q: %w", path, err)
	}

	var items []any
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		row := make(map[string]any, len(header))
		for i, key := range header {
			row[key] = record[i]
		}
		items = append(items, row)
	}
	return items, nil
}

// sniffCandidates are the delimiters tried during sniffing, most common
// first. The winner is the candidate occurring most often in the header
// line.
var sniffCandidates = []rune{',', ';', '\t', '|'}

// sniffDelimiter inspects the first line without consuming it.
func sniffDelimiter(br *bufio.Reader) (rune, error) {
	const peekSize = 64 * 1024
	head, err := br.Peek(peekSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return 0, err
	}
	if i := strings.IndexByte(string(head), '\n'); i >= 0 {
		head = head[:i]
	}
	if len(head) == 0 {
		return 0, fmt.Errorf("empty input")
	}

	line := string(head)
	best := sniffCandidates[0]
	bestCount := 0
	for _, c := range sniffCandidates {
		if n := strings.Count(line, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	if bestCount == 0 {
		// Single-column file: any delimiter works.
		return sniffCandidates[0], nil
	}
	return best, nil
}

// FileLen counts the lines in path. Lines uses it to size the item
// slice before reading.
func FileLen(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("cannot open input file %q: %w", path, err)
	}
	defer f.Close()

	count := 0
	buf := make([]byte, 64*1024)
	trailing := false
	for {
		n, err := f.Read(buf)
		for _, b := range buf[:n] {
			if b == '\n' {
				count++
				trailing = false
			} else {
				trailing = true
			}
		}
		if err == io.EOF {
			if trailing {
				count++
			}
			return count, nil
		}
		if err != nil {
			return 0, fmt.Errorf("reading %q: %w", path, err)
		}
	}
}
