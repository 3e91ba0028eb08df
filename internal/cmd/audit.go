package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertopd/secureprompt/internal/audit"
	"github.com/albertopd/secureprompt/internal/config"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the local audit trail",
}

var (
	auditListOperation string
	auditListLimit     int
	auditExportFormat  string
	auditExportOut     string
	auditPurgeDays     int
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit records (newest first)",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openAuditStore()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.List(cmd.Context(), "", auditListOperation, time.Time{}, time.Time{}, auditListLimit)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <record_id>",
	Short: "Verify the HMAC signature of an audit record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openAuditStore()
		if err != nil {
			return err
		}
		defer store.Close()

		valid, err := store.Verify(cmd.Context(), args[0], "")
		if err != nil {
			if errors.Is(err, audit.ErrRecordNotFound) {
				return fmt.Errorf("no audit record with id %s", args[0])
			}
			return err
		}
		if !valid {
			fmt.Fprintf(cmd.OutOrStdout(), "✗ Record %s FAILED signature verification\n", args[0])
			return fmt.Errorf("record has been tampered with")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Record %s signature valid\n", args[0])
		return nil
	},
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the audit trail (json, csv, or html)",
	Long: `Exports audit metadata for compliance reporting (GDPR Art. 30 records of
processing). Content fields are never included in exports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openAuditStore()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.List(cmd.Context(), "", "", time.Time{}, time.Time{}, 0)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if auditExportOut != "" {
			f, err := os.Create(auditExportOut)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		switch auditExportFormat {
		case "json":
			return audit.WriteJSON(out, records)
		case "csv":
			return audit.WriteCSV(out, records)
		case "html":
			return audit.WriteHTML(out, records)
		default:
			return fmt.Errorf("format must be json, csv, or html (got %q)", auditExportFormat)
		}
	},
}

var auditPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete audit records older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := openAuditStoreWithConfig()
		if err != nil {
			return err
		}
		defer store.Close()

		days := auditPurgeDays
		if days <= 0 {
			days = cfg.RetentionDays
		}
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		n, err := store.Purge(cmd.Context(), cutoff)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %d records older than %s\n", n, cutoff.Format(time.RFC3339))
		return nil
	},
}

func openAuditStore() (*audit.Store, error) {
	_, store, err := openAuditStoreWithConfig()
	return store, err
}

func openAuditStoreWithConfig() (*config.Config, *audit.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	store, err := audit.NewStore(cfg.AuditDBPath(), cfg.SigningKey, cfg.CryptoKey)
	if err != nil {
		return nil, nil, fmt.Errorf("opening audit store: %w", err)
	}
	return cfg, store, nil
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd, auditVerifyCmd, auditExportCmd, auditPurgeCmd)

	auditListCmd.Flags().StringVar(&auditListOperation, "operation", "", "filter by operation (scrub, descrub)")
	auditListCmd.Flags().IntVar(&auditListLimit, "limit", 50, "maximum records to return")
	auditExportCmd.Flags().StringVar(&auditExportFormat, "format", "json", "export format (json, csv, html)")
	auditExportCmd.Flags().StringVarP(&auditExportOut, "out", "o", "", "write to file instead of stdout")
	auditPurgeCmd.Flags().IntVar(&auditPurgeDays, "older-than", 0, "override retention window in days (default: retention_days config)")
}
