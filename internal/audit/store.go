// Package audit provides the tamper-evident trail for scrub and descrub
// operations.
//
// Every operation produces a Record that is signed (HMAC-SHA256) and
// persisted in SQLite. The original text is never stored in the clear: it is
// encrypted with AES-256-GCM so that full reversal through the API remains
// possible while a database leak exposes only placeholders. Records are
// verifiable, exportable (JSON/CSV/HTML), and purged by a retention sweeper.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	spotel "github.com/albertopd/secureprompt/internal/otel"
	"github.com/albertopd/secureprompt/internal/scrub"
)

var tracer = spotel.Tracer("github.com/albertopd/secureprompt/internal/audit")

// ErrRecordNotFound is returned when no record matches the given ID (within
// the caller's corp key, when one is enforced).
var ErrRecordNotFound = errors.New("audit record not found")

// Operations recorded in the trail.
const (
	OpScrub   = "scrub"
	OpDescrub = "descrub"
)

// Record is the full audit entry for a single scrub or descrub.
type Record struct {
	ID             string                   `json:"id"`
	Timestamp      time.Time                `json:"timestamp"`
	CorpKey        string                   `json:"corp_key"`
	Role           string                   `json:"role"`
	Operation      string                   `json:"operation"`
	Tier           string                   `json:"tier"`
	Language       string                   `json:"language"`
	AnonymizedText string                   `json:"anonymized_text"`
	Entities       []scrub.AnonymizedEntity `json:"entities,omitempty"`
	EntityTypes    []string                 `json:"entity_types,omitempty"`
	Justification  string                   `json:"justification,omitempty"`
	ScrubID        string                   `json:"scrub_id,omitempty"` // for descrub records, the reversed scrub
	Partial        bool                     `json:"partial,omitempty"`
	Signature      string                   `json:"signature"`
}

// Store persists HMAC-signed audit records in SQLite.
type Store struct {
	db     *sql.DB
	signer *Signer
	box    *cipherBox
}

// NewStore creates an audit store with HMAC signing and original-text
// encryption.
func NewStore(dbPath, signingKey, cryptoKey string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS audit_records (
		id TEXT PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		corp_key TEXT NOT NULL,
		operation TEXT NOT NULL,
		record_json TEXT NOT NULL,
		original_cipher TEXT NOT NULL,
		original_nonce TEXT NOT NULL,
		signature TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_corp ON audit_records(corp_key);
	CREATE INDEX IF NOT EXISTS idx_audit_operation ON audit_records(operation);
	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_records(timestamp);
	`

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}

	signer, err := NewSigner(signingKey)
	if err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}

	box, err := newCipherBox(cryptoKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	return &Store{db: db, signer: signer, box: box}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewRecordID returns a fresh record identifier.
func NewRecordID() string {
	return uuid.NewString()
}

// Store saves a record with an HMAC signature; originalText is encrypted at
// rest (empty for descrub records). The record's ID and Timestamp are filled
// in when zero.
func (s *Store) Store(ctx context.Context, rec *Record, originalText string) error {
	ctx, span := tracer.Start(ctx, "audit.store",
		trace.WithAttributes(
			attribute.String("audit.operation", rec.Operation),
			attribute.String("corp_key", rec.CorpKey),
		))
	defer span.End()

	if rec.ID == "" {
		rec.ID = NewRecordID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	rec.Signature = ""
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	rec.Signature = s.signer.Sign(recordJSON)

	recordJSONWithSig, _ := json.Marshal(rec)

	cipherB64, nonceB64, err := s.box.encrypt(originalText)
	if err != nil {
		return fmt.Errorf("encrypting original text: %w", err)
	}

	query := `INSERT INTO audit_records (id, timestamp, corp_key, operation, record_json, original_cipher, original_nonce, signature)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.Timestamp, rec.CorpKey, rec.Operation,
		string(recordJSONWithSig), cipherB64, nonceB64, rec.Signature,
	)
	if err != nil {
		return fmt.Errorf("storing audit record: %w", err)
	}

	return nil
}

// Get retrieves a record by ID. A non-empty corpKey restricts the lookup to
// that corp; records belonging to other corps read as not found.
func (s *Store) Get(ctx context.Context, id, corpKey string) (*Record, error) {
	ctx, span := tracer.Start(ctx, "audit.get",
		trace.WithAttributes(attribute.String("audit.id", id)))
	defer span.End()

	query := `SELECT record_json FROM audit_records WHERE id = ?`
	args := []interface{}{id}
	if corpKey != "" {
		query += ` AND corp_key = ?`
		args = append(args, corpKey)
	}

	var recordJSON string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying audit record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling audit record: %w", err)
	}
	return &rec, nil
}

// Original decrypts and returns the original text stored with a scrub
// record. Corp-key isolation applies as in Get.
func (s *Store) Original(ctx context.Context, id, corpKey string) (string, error) {
	ctx, span := tracer.Start(ctx, "audit.original",
		trace.WithAttributes(attribute.String("audit.id", id)))
	defer span.End()

	query := `SELECT original_cipher, original_nonce FROM audit_records WHERE id = ?`
	args := []interface{}{id}
	if corpKey != "" {
		query += ` AND corp_key = ?`
		args = append(args, corpKey)
	}

	var cipherB64, nonceB64 string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&cipherB64, &nonceB64)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("querying audit record: %w", err)
	}

	return s.box.decrypt(cipherB64, nonceB64)
}

// List returns records matching the given filters, newest first.
func (s *Store) List(ctx context.Context, corpKey, operation string, from, to time.Time, limit int) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "audit.list",
		trace.WithAttributes(attribute.String("corp_key", corpKey)))
	defer span.End()

	query := `SELECT record_json FROM audit_records WHERE 1=1`
	args := []interface{}{}

	if corpKey != "" {
		query += ` AND corp_key = ?`
		args = append(args, corpKey)
	}
	if operation != "" {
		query += ` AND operation = ?`
		args = append(args, operation)
	}
	if !from.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, from)
	}
	if !to.IsZero() {
		query += ` AND timestamp <= ?`
		args = append(args, to)
	}

	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit records: %w", err)
	}
	defer rows.Close()

	var results []Record
	skipped := 0
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			skipped++
			log.Error().Err(err).Msg("audit row failed to scan, skipping")
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
			// A row that stops parsing in a tamper-evident store is signal.
			skipped++
			log.Error().Err(err).Msg("audit row failed to parse, possible tampering")
			continue
		}
		results = append(results, rec)
	}

	span.SetAttributes(
		attribute.Int("audit.record_count", len(results)),
		attribute.Int("audit.skipped_rows", skipped),
	)
	return results, nil
}

// Verify checks the HMAC signature integrity of a record against the stored
// signature column, which detects edits to record_json after the fact.
func (s *Store) Verify(ctx context.Context, id, corpKey string) (bool, error) {
	ctx, span := tracer.Start(ctx, "audit.verify",
		trace.WithAttributes(attribute.String("audit.id", id)))
	defer span.End()

	query := `SELECT record_json FROM audit_records WHERE id = ?`
	args := []interface{}{id}
	if corpKey != "" {
		query += ` AND corp_key = ?`
		args = append(args, corpKey)
	}

	var recordJSON string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return false, fmt.Errorf("querying audit record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return false, fmt.Errorf("unmarshaling audit record: %w", err)
	}

	signature := rec.Signature
	rec.Signature = ""
	payload, err := json.Marshal(&rec)
	if err != nil {
		return false, fmt.Errorf("marshaling for verification: %w", err)
	}

	return s.signer.Verify(payload, signature), nil
}

// Purge deletes records older than the cutoff and reports how many were
// removed.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "audit.purge")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_records WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging audit records: %w", err)
	}
	n, _ := res.RowsAffected()
	span.SetAttributes(attribute.Int64("audit.purged", n))
	return n, nil
}
