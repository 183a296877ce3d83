package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	since, until, configPath = "", "", ""
	githubToken, githubUser = "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err = rootCmd.Execute()
	return out.String(), err
}

func TestConfigCommandMasksToken(t *testing.T) {
	t.Setenv("DEVEXPORT_GITHUB_TOKEN", "ghp_supersecret9876")
	t.Setenv("DEVEXPORT_GITHUB_USER", "octo")

	out, err := runCLI(t, "config")
	require.NoError(t, err)

	assert.Contains(t, out, "****9876")
	assert.Contains(t, out, "user: octo")
	assert.Contains(t, out, "timeout: 30s")
	assert.NotContains(t, out, "supersecret")
}

func TestGitHubRequiresUser(t *testing.T) {
	t.Setenv("DEVEXPORT_GITHUB_TOKEN", "")
	t.Setenv("DEVEXPORT_GITHUB_USER", "")
	t.Setenv("GITHUB_TOKEN", "")

	_, err := runCLI(t, "github", "--token", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "User")
}

func TestRejectsReversedWindow(t *testing.T) {
	_, err := runCLI(t, "github", "--token", "abc", "--user", "octo", "--since", "2024-02-01", "--until", "2024-01-01")
	assert.ErrorContains(t, err, "after until")
}
