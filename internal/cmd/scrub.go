package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/albertopd/secureprompt/internal/audit"
	"github.com/albertopd/secureprompt/internal/config"
	"github.com/albertopd/secureprompt/internal/scrub"
)

// Principal recorded for local CLI operations. The CLI runs with operator
// privileges on the local audit store, outside the API-key role model.
const (
	cliCorpKey = "cli"
	cliRole    = "admin"
)

var (
	scrubTier     string
	scrubLanguage string
	scrubFile     string
	scrubNoAudit  bool
)

var scrubCmd = &cobra.Command{
	Use:   "scrub [text]",
	Short: "Anonymize text at the given risk tier",
	Long: `Scrubs sensitive entities out of the given text and prints the result
as JSON. Text is taken from the argument, --file, or stdin.

Each scrub is recorded in the local audit trail so it can be reversed later
with "secureprompt descrub <scrub_id>" (disable with --no-audit).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScrub,
}

func init() {
	rootCmd.AddCommand(scrubCmd)
	scrubCmd.Flags().StringVarP(&scrubTier, "tier", "t", "C3", "risk tier (C1, C2, C3, C4)")
	scrubCmd.Flags().StringVarP(&scrubLanguage, "language", "l", "en", "text language hint")
	scrubCmd.Flags().StringVarP(&scrubFile, "file", "f", "", "read text from file instead of argument")
	scrubCmd.Flags().BoolVar(&scrubNoAudit, "no-audit", false, "do not record the scrub (result is not reversible)")
}

func readInputText(args []string) (string, error) {
	if scrubFile != "" {
		data, err := os.ReadFile(scrubFile)
		if err != nil {
			return "", fmt.Errorf("reading input file: %w", err)
		}
		return string(data), nil
	}
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

func runScrub(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "cmd.scrub")
	defer span.End()

	text, err := readInputText(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	result, err := engine.Scrub(ctx, text, scrubTier, scrubLanguage)
	partial := false
	switch {
	case err == nil:
	case errors.Is(err, scrub.ErrDetection):
		// Delegate failure: the pattern and deny-list passes still ran.
		log.Warn().Err(err).Msg("Partial scrub: a detector failed")
		partial = true
	default:
		return err
	}

	out := struct {
		ScrubID        string                   `json:"scrub_id,omitempty"`
		AnonymizedText string                   `json:"anonymized_text"`
		Entities       []scrub.AnonymizedEntity `json:"entities"`
		Partial        bool                     `json:"partial,omitempty"`
	}{
		AnonymizedText: result.AnonymizedText,
		Entities:       result.Entities,
		Partial:        partial,
	}

	if !scrubNoAudit {
		if err := cfg.EnsureDataDir(); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
		cfg.WarnIfDefaultKeys()

		store, err := audit.NewStore(cfg.AuditDBPath(), cfg.SigningKey, cfg.CryptoKey)
		if err != nil {
			return fmt.Errorf("opening audit store: %w", err)
		}
		defer store.Close()

		rec := &audit.Record{
			CorpKey:        cliCorpKey,
			Role:           cliRole,
			Operation:      audit.OpScrub,
			Tier:           scrubTier,
			Language:       scrubLanguage,
			AnonymizedText: result.AnonymizedText,
			Entities:       result.Entities,
			EntityTypes:    entityTypeSet(result.Entities),
			Partial:        partial,
		}
		if err := store.Store(ctx, rec, text); err != nil {
			return fmt.Errorf("recording scrub: %w", err)
		}
		out.ScrubID = rec.ID
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func entityTypeSet(entities []scrub.AnonymizedEntity) []string {
	seen := map[string]bool{}
	var types []string
	for _, e := range entities {
		if !seen[e.EntityType] {
			seen[e.EntityType] = true
			types = append(types, e.EntityType)
		}
	}
	return types
}
