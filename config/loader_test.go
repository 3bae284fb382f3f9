package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testTarget struct {
	Threads   int    `toml:"threads" yaml:"threads" default:"8"`
	Bootstrap string `toml:"bootstrap" yaml:"bootstrap" env:"HIVE_BOOTSTRAP" required:"true"`
	Profile   bool   `toml:"profile" yaml:"profile"`
}

func TestLoaderAppliesDefaultsAndRecordsProvenance(t *testing.T) {
	l := NewLoader()
	target := &testTarget{Bootstrap: "snlua bootstrap"}

	err := l.Load(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, 8, target.Threads)

	p, err := l.GetProvenance(context.Background(), "Threads")
	require.NoError(t, err)
	assert.Equal(t, "default", p.Source)
}

func TestLoaderMissingRequiredFieldFails(t *testing.T) {
	l := NewLoader()
	target := &testTarget{}

	err := l.Load(context.Background(), target)
	assert.ErrorIs(t, err, ErrRequiredFieldNotSet)
}

func TestLoaderTOMLOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hive.toml")
	require.NoError(t, os.WriteFile(path, []byte("threads = 16\nbootstrap = \"snlua bootstrap\"\n"), 0o644))

	l := NewLoader()
	l.AddFileSource(path, KindTOML, 10)
	target := &testTarget{}

	require.NoError(t, l.Load(context.Background(), target))
	assert.Equal(t, 16, target.Threads)
	assert.Equal(t, "snlua bootstrap", target.Bootstrap)
}

func TestLoaderHigherPriorityWinsOverLowerPriority(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")
	require.NoError(t, os.WriteFile(base, []byte("threads = 4\nbootstrap = \"snlua bootstrap\"\n"), 0o644))
	require.NoError(t, os.WriteFile(override, []byte("threads = 32\n"), 0o644))

	l := NewLoader()
	l.AddFileSource(base, KindTOML, 0)
	l.AddFileSource(override, KindTOML, 10)
	target := &testTarget{}

	require.NoError(t, l.Load(context.Background(), target))
	assert.Equal(t, 32, target.Threads)
}

func TestLoaderEnvSourceOverlaysFile(t *testing.T) {
	t.Setenv("HIVE_BOOTSTRAP", "snlua override")

	l := NewLoader()
	l.AddEnvSource("HIVE", 100)
	target := &testTarget{}

	require.NoError(t, l.Load(context.Background(), target))
	assert.Equal(t, "snlua override", target.Bootstrap)

	p, err := l.GetProvenance(context.Background(), "Bootstrap")
	require.NoError(t, err)
	assert.Equal(t, "environment", p.Source)
	assert.Equal(t, "HIVE_BOOTSTRAP", p.SourceDetail)
}

func TestLoaderGetProvenanceUnknownField(t *testing.T) {
	l := NewLoader()
	_, err := l.GetProvenance(context.Background(), "NoSuchField")
	assert.ErrorIs(t, err, ErrNoProvenanceInfo)
}

func TestLoaderMissingFileSourceIsNotAnError(t *testing.T) {
	l := NewLoader()
	l.AddFileSource(filepath.Join(t.TempDir(), "missing.toml"), KindTOML, 5)
	target := &testTarget{Bootstrap: "snlua bootstrap"}

	require.NoError(t, l.Load(context.Background(), target))
}

func TestLoaderStartWatchReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hive.toml")
	require.NoError(t, os.WriteFile(path, []byte("threads = 4\nbootstrap = \"snlua bootstrap\"\n"), 0o644))

	l := NewLoader()
	l.AddFileSource(path, KindTOML, 10)
	target := &testTarget{}
	require.NoError(t, l.Load(context.Background(), target))

	changed := make(chan []*ConfigChange, 1)
	err := l.StartWatch(context.Background(), func(ctx context.Context, changes []*ConfigChange) error {
		changed <- changes
		return nil
	})
	require.NoError(t, err)
	defer l.StopWatch(context.Background())

	assert.True(t, l.IsWatching())

	require.NoError(t, os.WriteFile(path, []byte("threads = 64\nbootstrap = \"snlua bootstrap\"\n"), 0o644))

	select {
	case changes := <-changed:
		assert.NotEmpty(t, changes)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}
}

func TestLoaderStartWatchTwiceFails(t *testing.T) {
	l := NewLoader()
	target := &testTarget{Bootstrap: "snlua bootstrap"}
	require.NoError(t, l.Load(context.Background(), target))

	require.NoError(t, l.StartWatch(context.Background(), func(context.Context, []*ConfigChange) error { return nil }))
	defer l.StopWatch(context.Background())

	err := l.StartWatch(context.Background(), func(context.Context, []*ConfigChange) error { return nil })
	assert.ErrorIs(t, err, ErrAlreadyWatching)
}

func TestRedactSecretsMasksCredentialFields(t *testing.T) {
	p := &FieldProvenance{FieldPath: "Database.Password", Value: "hunter2"}
	redacted := RedactSecrets(p)
	assert.Equal(t, "[REDACTED]", redacted.Value)
	assert.Equal(t, "hunter2", p.Value, "original provenance must be unmodified")
}
