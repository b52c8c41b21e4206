package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"serve", "check", "match", "batch"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "check-match", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestCheckCommand_Flags(t *testing.T) {
	flag := checkCmd.Flags().Lookup("output")
	require.NotNil(t, flag, "check command should have --output flag")
	assert.Equal(t, "json", flag.DefValue)
	assert.Equal(t, "o", flag.Shorthand)
}

func TestMatchCommand_Flags(t *testing.T) {
	require.NotNil(t, matchCmd.Flags().Lookup("names"), "match command should have --names flag")
	require.NotNil(t, matchCmd.Flags().Lookup("output"), "match command should have --output flag")
}

func TestBatchCommand_Flags(t *testing.T) {
	flag := batchCmd.Flags().Lookup("out")
	require.NotNil(t, flag, "batch command should have --out flag")
	assert.Equal(t, "review.xlsx", flag.DefValue)
}

func TestCommands_RequireArgs(t *testing.T) {
	assert.Error(t, checkCmd.Args(checkCmd, nil))
	assert.NoError(t, checkCmd.Args(checkCmd, []string{"a.jpg"}))
	assert.Error(t, matchCmd.Args(matchCmd, nil))
	assert.NoError(t, matchCmd.Args(matchCmd, []string{"Mr.", "John", "Smith"}))
	assert.Error(t, batchCmd.Args(batchCmd, []string{"a", "b"}))
}
