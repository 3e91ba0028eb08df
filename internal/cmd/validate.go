package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/albertopd/secureprompt/internal/scrub"
)

var validateCmd = &cobra.Command{
	Use:   "validate <recognizers.yaml>",
	Short: "Validate a recognizer override file",
	Long: `Checks a recognizer YAML file against the schema, compiles every regex,
and verifies the merged table (embedded defaults plus the override) still
builds. Run this before pointing patterns_file at a new table.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, span := tracer.Start(cmd.Context(), "cmd.validate")
	defer span.End()

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	rf, err := scrub.ParseRecognizerFile(data)
	if err != nil {
		return err
	}

	defaults, err := scrub.DefaultSpecs()
	if err != nil {
		return err
	}
	registry, err := scrub.NewRegistry(scrub.MergeSpecs(defaults, rf.Recognizers))
	if err != nil {
		return fmt.Errorf("merged recognizer table does not compile: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Recognizer table valid: %s\n", path)
	fmt.Fprintf(cmd.OutOrStdout(), "  %d recognizers in file, %d in merged table\n", len(rf.Recognizers), registry.Len())
	return nil
}
