package logservice

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiveworks/hive"
)

func newTestContext(t *testing.T, mod *hive.Module, param string) *hive.Context {
	t.Helper()
	n := hive.New(hive.DefaultConfig(), nil, nil)
	require.NoError(t, n.RegisterModule(mod))
	_, ctx, err := n.Launch("logger " + param)
	require.NoError(t, err)
	return ctx
}

func TestLogServiceWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hive.log")
	mod := Module(Config{Target: "file", Path: path, Format: "text", Level: "INFO"})
	ctx := newTestContext(t, mod, "")

	kept := ctx.Invoke(hive.PTypeText, 1, 7, []byte("hello world"))
	assert.False(t, kept)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello world")
	assert.Contains(t, string(data), "00000007")
}

func TestLogServiceParsesLaunchParam(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "hive.log")
	mod := Module(DefaultConfig())
	ctx := newTestContext(t, mod, "target=file path="+path)

	ctx.Invoke(hive.PTypeText, 0, 1, []byte("boot"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "boot")
}

func TestLogServiceIgnoresNonTextMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hive.log")
	mod := Module(Config{Target: "file", Path: path, Format: "text"})
	ctx := newTestContext(t, mod, "")

	kept := ctx.Invoke(hive.PTypeResponse, 1, 0, []byte("should not appear"))
	assert.False(t, kept)

	data, _ := os.ReadFile(path)
	assert.NotContains(t, string(data), "should not appear")
}

func TestNewOutputTargetRejectsMissingFilePath(t *testing.T) {
	_, err := NewOutputTarget(Config{Target: "file"})
	assert.ErrorIs(t, err, ErrMissingFilePath)
}

func TestNewOutputTargetRejectsUnknownType(t *testing.T) {
	_, err := NewOutputTarget(Config{Target: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrUnknownOutputTargetType)
}

func TestFormatEntryJSON(t *testing.T) {
	entry := LogEntry{ID: "abc", Timestamp: time.Unix(0, 0).UTC(), Source: 1, Session: 2, Message: "hi"}
	line, err := formatEntry("json", entry)
	require.NoError(t, err)
	assert.Contains(t, line, `"message":"hi"`)
}
