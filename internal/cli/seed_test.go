package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed_DefaultFile(t *testing.T) {
	cmd := NewSeedCommand(&RootOptions{Format: "text"})

	flag := cmd.Flags().Lookup("file")
	require.NotNil(t, flag)
	assert.Equal(t, DefaultSeedFile, flag.DefValue)
	assert.Equal(t, "f", flag.Shorthand)
}

func TestSeed_RejectsArgs(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"seed", "seeds/demo.yaml"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	assert.Error(t, root.Execute())
}

func TestSeed_MissingFile(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"seed", "--file", filepath.Join(t.TempDir(), "absent.yaml")})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open seed file")
}

func TestReadSeedFile(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "chart.yaml")
	require.NoError(t, os.WriteFile(valid, []byte("currencies:\n  - isoCode: EUR\n    name: Euro\n    isBase: true\n"), 0o600))
	doc, err := readSeedFile(valid)
	require.NoError(t, err)
	require.Len(t, doc.Currencies, 1)
	assert.Equal(t, "EUR", doc.Currencies[0].ISOCode)

	invalid := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("currencies:\n  - isoCode: EUR\n    rounding: 0.01\n"), 0o600))
	_, err = readSeedFile(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}
