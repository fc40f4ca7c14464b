package logs

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestLoggerWritesTerminalLines(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, slog.LevelInfo, false)

	logger.Debug("hidden detail")
	logger.Info("cycle advanced", "slot", 3)
	logger.Error("publish failed", "error", errors.New("boom"))

	out := buf.String()
	assert.NotContains(t, out, "hidden detail")
	assert.Contains(t, out, "cycle advanced")
	assert.Contains(t, out, "slot=3")
	assert.Contains(t, out, "boom")
}

func TestToJournalKey(t *testing.T) {
	assert.Equal(t, "QUOTE_ID", toJournalKey("quote.id"))
	assert.Equal(t, "SLOT_INDEX", toJournalKey("slot_index"))
}

func TestIsTerminalFalseForBuffersAndFiles(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))

	f, err := os.CreateTemp(t.TempDir(), "log")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, isTerminal(f))
}
