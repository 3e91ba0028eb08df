// Package roster implements the employee-roster PERSON detector. It is the
// model delegate registered under the "roster" model reference: names come
// from an operator-maintained CSV instead of a trained NER model, which is
// deliberate — the bank knows exactly whose names may appear in prompts.
package roster

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/albertopd/secureprompt/internal/scrub"
)

// ModelRef is the model reference recognizer specs use to reach this
// detector.
const ModelRef = "roster"

const matchScore = 0.95

// Detector matches employee names from a roster against input text.
// Implements scrub.Detector.
type Detector struct {
	// names holds lowercased full names and name parts, longest first so a
	// full-name match claims its range before the parts do.
	names []string
}

// Load reads a roster CSV and builds a detector. The file needs a header
// row; recognized columns are "name", or "first_name" and "last_name".
func Load(path string) (*Detector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening roster: %w", err)
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing roster %s: %w", path, err)
	}
	return d, nil
}

// Parse builds a detector from CSV content.
func Parse(r io.Reader) (*Detector, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading roster header: %w", err)
	}

	nameCol, firstCol, lastCol := -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "name", "full_name":
			nameCol = i
		case "first_name":
			firstCol = i
		case "last_name":
			lastCol = i
		}
	}
	if nameCol < 0 && (firstCol < 0 || lastCol < 0) {
		return nil, fmt.Errorf("roster header needs a name column or first_name/last_name columns")
	}

	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		names = append(names, n)
	}

	rows := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading roster row: %w", err)
		}
		rows++
		if nameCol >= 0 && nameCol < len(row) {
			add(row[nameCol])
			for _, part := range strings.Fields(row[nameCol]) {
				add(part)
			}
		}
		if firstCol >= 0 && lastCol >= 0 && firstCol < len(row) && lastCol < len(row) {
			add(row[firstCol] + " " + row[lastCol])
			add(row[firstCol])
			add(row[lastCol])
		}
	}

	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	log.Debug().Int("employees", rows).Int("name_terms", len(names)).Msg("roster loaded")
	return &Detector{names: names}, nil
}

// Detect returns PERSON spans for every roster name occurring in text.
// Matching is case-insensitive and word-bounded; a longer name claims its
// character range before any of its parts can.
func (d *Detector) Detect(ctx context.Context, text, language string, entityTypes []string) ([]scrub.DetectedSpan, error) {
	wanted := false
	for _, et := range entityTypes {
		if et == "PERSON" {
			wanted = true
			break
		}
	}
	if !wanted || text == "" {
		return nil, nil
	}

	claimed := make([]bool, len(text))

	var spans []scrub.DetectedSpan
	for _, name := range d.names {
		for from := 0; ; {
			// Case-insensitive match with offsets in the original text; a
			// lowered copy has different byte offsets for some Unicode input.
			start, end := scrub.FoldIndex(text, name, from)
			if start < 0 {
				break
			}
			from = start + 1

			if !wordBounded(text, start, end) || rangeClaimed(claimed, start, end) {
				continue
			}
			for i := start; i < end; i++ {
				claimed[i] = true
			}
			spans = append(spans, scrub.DetectedSpan{
				EntityType: "PERSON",
				Start:      start,
				End:        end,
				Text:       text[start:end],
				Score:      matchScore,
				Recognizer: "Employee roster",
			})
		}
	}

	return spans, nil
}

func wordBounded(s string, start, end int) bool {
	if r, size := utf8.DecodeLastRuneInString(s[:start]); size > 0 && isWordChar(r) {
		return false
	}
	if r, size := utf8.DecodeRuneInString(s[end:]); size > 0 && isWordChar(r) {
		return false
	}
	return true
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func rangeClaimed(claimed []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if claimed[i] {
			return true
		}
	}
	return false
}
