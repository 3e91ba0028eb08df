package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "secureprompt")
	assert.Contains(t, out, "go version")
}

func TestValidateCommandAcceptsGoodTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recognizers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`recognizers:
  - name: "Test badge number"
    supported_entity: "BADGE_NUMBER"
    type: pattern
    regex: '\bBDG-\d{6}\b'
    score: 0.7
    min_tier: "C3"
`), 0o600))

	out, err := runCommand(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Recognizer table valid")
}

func TestValidateCommandRejectsBadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recognizers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`recognizers:
  - name: "Broken"
    supported_entity: "BROKEN"
    type: pattern
    regex: '(['
    min_tier: "C2"
`), 0o600))

	_, err := runCommand(t, "validate", path)
	assert.Error(t, err)
}

func TestValidateCommandMissingFile(t *testing.T) {
	_, err := runCommand(t, "validate", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
