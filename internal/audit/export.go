package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// ExportRecord is a single audit entry projected for compliance export
// (GDPR Art. 30 processing records). Entity offsets and the anonymized text
// are omitted: exports describe WHAT was processed, not the content.
type ExportRecord struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	CorpKey       string    `json:"corp_key"`
	Role          string    `json:"role"`
	Operation     string    `json:"operation"`
	Tier          string    `json:"tier"`
	Language      string    `json:"language"`
	EntityCount   int       `json:"entity_count"`
	EntityTypes   []string  `json:"entity_types,omitempty"`
	Justification string    `json:"justification,omitempty"`
	Partial       bool      `json:"partial"`
}

// ToExportRecord projects a full Record for export.
func ToExportRecord(r *Record) ExportRecord {
	return ExportRecord{
		ID:            r.ID,
		Timestamp:     r.Timestamp,
		CorpKey:       r.CorpKey,
		Role:          r.Role,
		Operation:     r.Operation,
		Tier:          r.Tier,
		Language:      r.Language,
		EntityCount:   len(r.Entities),
		EntityTypes:   append([]string(nil), r.EntityTypes...),
		Justification: r.Justification,
		Partial:       r.Partial,
	}
}

// WriteJSON exports records as a JSON array.
func WriteJSON(w io.Writer, records []Record) error {
	out := make([]ExportRecord, 0, len(records))
	for i := range records {
		out = append(out, ToExportRecord(&records[i]))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

var csvHeader = []string{
	"id", "timestamp", "corp_key", "role", "operation", "tier",
	"language", "entity_count", "entity_types", "justification", "partial",
}

// WriteCSV exports records as CSV with a fixed header row.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for i := range records {
		r := ToExportRecord(&records[i])
		row := []string{
			r.ID,
			r.Timestamp.Format(time.RFC3339),
			r.CorpKey,
			r.Role,
			r.Operation,
			r.Tier,
			r.Language,
			strconv.Itoa(r.EntityCount),
			strings.Join(r.EntityTypes, ";"),
			r.Justification,
			strconv.FormatBool(r.Partial),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteHTML exports records as a standalone HTML report. Every free-text
// field (justifications in particular come from API callers) is run through
// bluemonday's strict policy so the report cannot carry markup or scripts.
func WriteHTML(w io.Writer, records []Record) error {
	p := bluemonday.StrictPolicy()

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><title>Audit report</title></head><body>\n")
	b.WriteString("<h1>SecurePrompt audit report</h1>\n<table border=\"1\">\n<tr>")
	for _, h := range csvHeader {
		b.WriteString("<th>" + h + "</th>")
	}
	b.WriteString("</tr>\n")

	for i := range records {
		r := ToExportRecord(&records[i])
		cells := []string{
			r.ID,
			r.Timestamp.Format(time.RFC3339),
			r.CorpKey,
			r.Role,
			r.Operation,
			r.Tier,
			r.Language,
			strconv.Itoa(r.EntityCount),
			strings.Join(r.EntityTypes, "; "),
			r.Justification,
			strconv.FormatBool(r.Partial),
		}
		b.WriteString("<tr>")
		for _, c := range cells {
			b.WriteString("<td>" + p.Sanitize(c) + "</td>")
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table>\n</body></html>\n")

	_, err := io.WriteString(w, b.String())
	return err
}
