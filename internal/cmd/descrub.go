package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/albertopd/secureprompt/internal/audit"
	"github.com/albertopd/secureprompt/internal/config"
	"github.com/albertopd/secureprompt/internal/scrub"
)

var (
	descrubAll           bool
	descrubTokens        []string
	descrubJustification string
)

var descrubCmd = &cobra.Command{
	Use:   "descrub <scrub_id>",
	Short: "Reverse a recorded scrub",
	Long: `Restores original values into the anonymized text of a recorded scrub.

Use --all to restore everything, or --token (repeatable) to restore specific
placeholders. A justification is mandatory and is written to the audit trail.`,
	Args: cobra.ExactArgs(1),
	RunE: runDescrub,
}

func init() {
	rootCmd.AddCommand(descrubCmd)
	descrubCmd.Flags().BoolVar(&descrubAll, "all", false, "restore all placeholders")
	descrubCmd.Flags().StringArrayVar(&descrubTokens, "token", nil, "placeholder token to restore (e.g. <PERSON_2>); repeatable")
	descrubCmd.Flags().StringVarP(&descrubJustification, "justification", "j", "", "reason for the reversal (required)")
	_ = descrubCmd.MarkFlagRequired("justification")
}

func runDescrub(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "cmd.descrub")
	defer span.End()

	scrubID := args[0]
	if !descrubAll && len(descrubTokens) == 0 {
		return fmt.Errorf("nothing to restore: pass --all or at least one --token")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := audit.NewStore(cfg.AuditDBPath(), cfg.SigningKey, cfg.CryptoKey)
	if err != nil {
		return fmt.Errorf("opening audit store: %w", err)
	}
	defer store.Close()

	// Empty corp key: the local CLI reads across all corps as operator.
	rec, err := store.Get(ctx, scrubID, "")
	if err != nil {
		if errors.Is(err, audit.ErrRecordNotFound) {
			return fmt.Errorf("no scrub record with id %s", scrubID)
		}
		return err
	}
	if rec.Operation != audit.OpScrub {
		return fmt.Errorf("record %s is a %s operation, not a scrub", scrubID, rec.Operation)
	}

	req := scrub.DescrubRequest{
		AnonymizedText: rec.AnonymizedText,
		Entities:       rec.Entities,
		Tokens:         descrubTokens,
		All:            descrubAll,
	}
	if descrubAll {
		original, err := store.Original(ctx, scrubID, "")
		if err != nil {
			return fmt.Errorf("loading original text: %w", err)
		}
		req.OriginalText = original
	}

	text, err := scrub.Descrub(req)
	if err != nil {
		return err
	}

	auditRec := &audit.Record{
		CorpKey:       cliCorpKey,
		Role:          cliRole,
		Operation:     audit.OpDescrub,
		Tier:          rec.Tier,
		Language:      rec.Language,
		Justification: descrubJustification,
		ScrubID:       scrubID,
	}
	if err := store.Store(ctx, auditRec, ""); err != nil {
		return fmt.Errorf("recording descrub: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
