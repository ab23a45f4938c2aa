package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/MJE43/vision-guard-go/internal/jumpgame"
	"github.com/MJE43/vision-guard-go/internal/secrets"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, logLevel = "", ""
	jumpSeed, jumpTicks, jumpMoves = "", 200, ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "visionguard dev"), out)
}

func TestJumpIsReproducible(t *testing.T) {
	first, err := execute(t, "", "jump", "--seed", "replay-me", "--ticks", "120", "--moves", "ll..rr")
	require.NoError(t, err)
	second, err := execute(t, "", "jump", "--seed", "replay-me", "--ticks", "120", "--moves", "ll..rr")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var report jumpReport
	require.NoError(t, json.Unmarshal([]byte(first), &report))
	assert.LessOrEqual(t, report.Ticks, 120)
	assert.LessOrEqual(t, report.State.Player.Y, 100.0)
	assert.LessOrEqual(t, len(report.State.Platforms), jumpgame.MaxPlatforms)
	assert.NotContains(t, first, "replay-me")
}

func TestJumpRejectsZeroTicks(t *testing.T) {
	_, err := execute(t, "", "jump", "--ticks", "0")
	require.Error(t, err)
}

func TestKeyCommands(t *testing.T) {
	keyring.MockInit()

	out, err := execute(t, "  sk-test\n", "key", "set")
	require.NoError(t, err)
	assert.Contains(t, out, "API key stored")

	store := secrets.NewStore(secrets.DefaultService, "")
	got, err := store.APIKey(secrets.Gemini)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", got)

	out, err = execute(t, "", "key", "delete")
	require.NoError(t, err)
	assert.Contains(t, out, "API key removed")
	_, err = store.APIKey(secrets.Gemini)
	assert.ErrorIs(t, err, secrets.ErrNotFound)
}

func TestKeySetRejectsEmpty(t *testing.T) {
	keyring.MockInit()
	_, err := execute(t, "\n", "key", "set")
	require.Error(t, err)
}
