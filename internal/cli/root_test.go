package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core/id"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()

	for _, path := range [][]string{
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "version"},
		{"post"},
		{"reverse"},
		{"reconcile", "account"},
		{"reconcile", "lines"},
		{"seed"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestRootCommand_RejectsUnknownFormat(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"--format", "xml", "post", id.New().String()})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestPost_RequiresArgs(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"post"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	assert.Error(t, root.Execute())
}

func TestPost_RejectsInvalidID(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"post", "not-an-id"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid id "not-an-id"`)
}

func TestReverse_RejectsInvalidDate(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"reverse", id.New().String(), "--date", "31/12/2024"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --date")
}

func TestMigrateDown_RejectsZeroSteps(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"migrate", "down", "--steps", "0"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--steps")
}

func TestParseIDs(t *testing.T) {
	a, b := id.New(), id.New()

	got, err := parseIDs([]string{a.String(), b.String()})
	require.NoError(t, err)
	assert.Equal(t, []id.ID{a, b}, got)

	_, err = parseIDs([]string{a.String(), "x"})
	assert.Error(t, err)
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer

	text := &RootOptions{Format: "text"}
	require.NoError(t, text.print(&buf, map[string]int{"n": 1}, "one"))
	assert.Equal(t, "one\n", buf.String())

	buf.Reset()
	js := &RootOptions{Format: "json"}
	require.NoError(t, js.print(&buf, map[string]int{"n": 1}, "one"))
	assert.JSONEq(t, `{"n":1}`, buf.String())
}
