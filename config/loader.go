// Package config loads the node's env table from layered sources: TOML
// files, YAML files, and process environment variables, in ascending
// priority order so a later source overwrites a field an earlier one set.
// Field-level provenance is recorded for every value a source actually
// touches, and file sources can be watched with fsnotify for hot reload.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/golobby/cast"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Static errors for configuration package
var (
	ErrConfigCannotBeNil    = errors.New("config cannot be nil")
	ErrNoProvenanceInfo     = errors.New("no provenance information found for field")
	ErrRequiredFieldNotSet  = errors.New("required field is not set")
	ErrUnsupportedFieldType = errors.New("unsupported field type for default value")
	ErrConfigTypeNotFound   = errors.New("config type not found")
	ErrAlreadyWatching      = errors.New("config: already watching for changes")
	ErrNotWatching          = errors.New("config: not currently watching")
)

// sourceKind enumerates the file formats a source can be decoded as.
const (
	KindTOML = "toml"
	KindYAML = "yaml"
	KindEnv  = "env"
)

// Loader implements ConfigLoader and ConfigReloader: it layers TOML/YAML
// files and process environment variables onto a target struct, in
// ascending priority order, and can watch its file sources for changes.
type Loader struct {
	mu         sync.Mutex
	sources    []*ConfigSource
	validators []ConfigValidator
	provenance map[string]*FieldProvenance

	target interface{} // last struct passed to Load/Reload, for StartWatch's reload loop

	watcher   *fsnotify.Watcher
	watching  bool
	callbacks []ReloadCallback
	stop      chan struct{}
}

// NewLoader creates a new configuration loader with no sources registered.
func NewLoader() *Loader {
	return &Loader{
		sources:    make([]*ConfigSource, 0, 4),
		provenance: make(map[string]*FieldProvenance),
	}
}

// AddFileSource registers a TOML or YAML file, decoded in priority order
// (higher overwrites lower). kind must be KindTOML or KindYAML.
func (l *Loader) AddFileSource(path, kind string, priority int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sources = append(l.sources, &ConfigSource{
		Name:     filepath.Base(path),
		Type:     kind,
		Location: path,
		Priority: priority,
	})
}

// AddEnvSource registers the process environment as a source. A field's
// `env:"NAME"` tag is looked up verbatim; prefix is not applied to or
// stripped from it, and is only recorded as the source's Location for
// GetSources diagnostics.
func (l *Loader) AddEnvSource(prefix string, priority int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sources = append(l.sources, &ConfigSource{
		Name:     "environment",
		Type:     KindEnv,
		Location: prefix,
		Priority: priority,
	})
}

// Load loads configuration from every registered source, lowest priority
// first, then applies struct-tag defaults and validates required fields.
func (l *Loader) Load(ctx context.Context, config interface{}) error {
	if config == nil {
		return ErrConfigCannotBeNil
	}

	l.mu.Lock()
	l.target = config
	sorted := l.sortedSourcesLocked()
	l.mu.Unlock()

	for _, src := range sorted {
		if err := l.loadFromSource(config, src); err != nil {
			l.mu.Lock()
			src.Error = err.Error()
			src.Loaded = false
			l.mu.Unlock()
			continue
		}
		now := time.Now()
		l.mu.Lock()
		src.LastLoaded = &now
		src.Loaded = true
		src.Error = ""
		l.mu.Unlock()
	}

	if err := l.applyDefaults(config); err != nil {
		return fmt.Errorf("applying defaults: %w", err)
	}
	return l.Validate(ctx, config)
}

// Reload re-runs Load against the same target, clearing prior provenance
// first so stale entries from a removed source don't linger.
func (l *Loader) Reload(ctx context.Context, config interface{}) error {
	l.mu.Lock()
	l.provenance = make(map[string]*FieldProvenance)
	l.mu.Unlock()
	return l.Load(ctx, config)
}

// sortedSourcesLocked returns sources ordered ascending by priority (so
// the loop below applies them lowest-first, letting a later, higher
// priority source win). Must be called with mu held.
func (l *Loader) sortedSourcesLocked() []*ConfigSource {
	sorted := make([]*ConfigSource, len(l.sources))
	copy(sorted, l.sources)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	return sorted
}

func (l *Loader) loadFromSource(config interface{}, source *ConfigSource) error {
	switch source.Type {
	case KindTOML:
		return l.loadTOML(config, source)
	case KindYAML:
		return l.loadYAML(config, source)
	case KindEnv:
		return l.loadEnv(config, source)
	default:
		return fmt.Errorf("config: unknown source type %q", source.Type)
	}
}

func (l *Loader) loadTOML(config interface{}, source *ConfigSource) error {
	data, err := os.ReadFile(source.Location)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // an optional file source that isn't present yet
		}
		return err
	}
	if _, err := toml.Decode(string(data), config); err != nil {
		return fmt.Errorf("decoding toml %s: %w", source.Location, err)
	}
	l.recordFieldsFromTags(config, "", source.Name, source.Location)
	return nil
}

func (l *Loader) loadYAML(config interface{}, source *ConfigSource) error {
	data, err := os.ReadFile(source.Location)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("decoding yaml %s: %w", source.Location, err)
	}
	l.recordFieldsFromTags(config, "", source.Name, source.Location)
	return nil
}

// loadEnv overlays process environment variables matched by a field's
// `env:"NAME"` tag, converting the string value to the field's type via
// golobby/cast.
func (l *Loader) loadEnv(config interface{}, source *ConfigSource) error {
	return l.loadEnvRecursive(config, "", source)
}

func (l *Loader) loadEnvRecursive(v interface{}, fieldPath string, source *ConfigSource) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		ft := rt.Field(i)
		if !field.CanSet() {
			continue
		}
		path := joinPath(fieldPath, ft.Name)

		envName := ft.Tag.Get("env")
		if envName != "" {
			if raw, ok := os.LookupEnv(envName); ok {
				if err := setFieldFromAny(field, raw); err != nil {
					return fmt.Errorf("env %s: %w", envName, err)
				}
				l.setProvenance(path, source.Name, envName, raw)
			}
		}

		if field.Kind() == reflect.Struct {
			if err := l.loadEnvRecursive(field.Addr().Interface(), path, source); err != nil {
				return err
			}
		} else if field.Kind() == reflect.Ptr && !field.IsNil() && field.Type().Elem().Kind() == reflect.Struct {
			if err := l.loadEnvRecursive(field.Interface(), path, source); err != nil {
				return err
			}
		}
	}
	return nil
}

// recordFieldsFromTags walks config and records provenance for any field
// that is non-zero after a file decode, on the assumption a file source
// only ever sets fields present in the document. This is an approximation
// (a file that explicitly sets a field to its zero value won't be
// recorded) accepted for diagnostics purposes.
func (l *Loader) recordFieldsFromTags(v interface{}, fieldPath, sourceName, location string) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return
	}

	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		ft := rt.Field(i)
		if !field.CanSet() {
			continue
		}
		path := joinPath(fieldPath, ft.Name)

		if field.Kind() == reflect.Struct {
			l.recordFieldsFromTags(field.Addr().Interface(), path, sourceName, location)
			continue
		}
		if field.Kind() == reflect.Ptr && !field.IsNil() && field.Type().Elem().Kind() == reflect.Struct {
			l.recordFieldsFromTags(field.Interface(), path, sourceName, location)
			continue
		}
		if !field.IsZero() {
			l.setProvenance(path, sourceName, location, field.Interface())
		}
	}
}

func (l *Loader) setProvenance(path, source, detail string, value interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.provenance[path] = &FieldProvenance{
		FieldPath:    path,
		Source:       source,
		SourceDetail: detail,
		Value:        value,
		Timestamp:    time.Now(),
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// Validate runs every registered validator, then the built-in required
// field check.
// Validate runs every registered validator plus the built-in required-field
// check, collecting all of their failures (rather than stopping at the
// first) via multierr, the same error-combination idiom zap itself pulls
// in as a dependency.
func (l *Loader) Validate(ctx context.Context, config interface{}) error {
	l.mu.Lock()
	validators := append([]ConfigValidator(nil), l.validators...)
	l.mu.Unlock()

	var errs error
	for _, v := range validators {
		if err := v.ValidateStruct(ctx, config); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("validation failed: %w", err))
		}
	}
	errs = multierr.Append(errs, validateRequiredRecursive(config, ""))
	return errs
}

// GetProvenance returns provenance for fieldPath, or ErrNoProvenanceInfo.
func (l *Loader) GetProvenance(ctx context.Context, fieldPath string) (*FieldProvenance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.provenance[fieldPath]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoProvenanceInfo, fieldPath)
}

// GetSources returns every registered source's current state.
func (l *Loader) GetSources(ctx context.Context) ([]*ConfigSource, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*ConfigSource(nil), l.sources...), nil
}

// AddValidator registers an additional ConfigValidator, run by Validate.
func (l *Loader) AddValidator(validator ConfigValidator) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.validators = append(l.validators, validator)
}

// StartWatch watches every registered file source's containing directory
// for write events and re-runs Load against the last target passed to
// Load/Reload, invoking callback with the fields that changed value.
// Intended for the subset of keys Run cares about at runtime (logger
// path/level, cpath) rather than structural fields like Threads.
func (l *Loader) StartWatch(ctx context.Context, callback ReloadCallback) error {
	l.mu.Lock()
	if l.watching {
		l.mu.Unlock()
		return ErrAlreadyWatching
	}
	if l.target == nil {
		l.mu.Unlock()
		return ErrConfigCannotBeNil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.mu.Unlock()
		return err
	}
	dirs := map[string]bool{}
	for _, src := range l.sources {
		if src.Type == KindTOML || src.Type == KindYAML {
			dirs[filepath.Dir(src.Location)] = true
		}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			l.mu.Unlock()
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	l.watcher = watcher
	l.watching = true
	l.callbacks = append(l.callbacks, callback)
	l.stop = make(chan struct{})
	stop := l.stop
	target := l.target
	l.mu.Unlock()

	go l.watchLoop(ctx, watcher, stop, target)
	return nil
}

func (l *Loader) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, stop chan struct{}, target interface{}) {
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			before := l.snapshotProvenance()
			if err := l.Reload(ctx, target); err != nil {
				continue
			}
			changes := l.diffProvenance(before)
			if len(changes) == 0 {
				continue
			}
			l.mu.Lock()
			cbs := append([]ReloadCallback(nil), l.callbacks...)
			l.mu.Unlock()
			for _, cb := range cbs {
				_ = cb(ctx, changes)
			}
		case <-watcher.Errors:
			continue
		}
	}
}

func (l *Loader) snapshotProvenance() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap := make(map[string]interface{}, len(l.provenance))
	for k, v := range l.provenance {
		snap[k] = v.Value
	}
	return snap
}

func (l *Loader) diffProvenance(before map[string]interface{}) []*ConfigChange {
	l.mu.Lock()
	defer l.mu.Unlock()
	var changes []*ConfigChange
	for path, p := range l.provenance {
		old, existed := before[path]
		if !existed || fmt.Sprint(old) != fmt.Sprint(p.Value) {
			changes = append(changes, &ConfigChange{
				FieldPath: path,
				OldValue:  old,
				NewValue:  p.Value,
				Source:    p.Source,
				Timestamp: p.Timestamp,
			})
		}
	}
	return changes
}

// StopWatch halts the watch goroutine started by StartWatch.
func (l *Loader) StopWatch(ctx context.Context) error {
	l.mu.Lock()
	if !l.watching {
		l.mu.Unlock()
		return ErrNotWatching
	}
	close(l.stop)
	watcher := l.watcher
	l.watching = false
	l.watcher = nil
	l.mu.Unlock()
	return watcher.Close()
}

// IsWatching reports whether StartWatch is active.
func (l *Loader) IsWatching() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.watching
}

// Validator implements ConfigValidator via reflection over `required` and
// `default` struct tags, plus any rules registered with AddRule.
type Validator struct {
	mu    sync.Mutex
	rules map[string][]*ValidationRule
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{rules: make(map[string][]*ValidationRule)}
}

// ValidateStruct runs the built-in required-field check.
func (v *Validator) ValidateStruct(ctx context.Context, config interface{}) error {
	return validateRequiredRecursive(config, "")
}

// ValidateField checks value against any rules registered for fieldPath.
func (v *Validator) ValidateField(ctx context.Context, fieldPath string, value interface{}) error {
	v.mu.Lock()
	rules := v.rules[fieldPath]
	v.mu.Unlock()
	for _, r := range rules {
		if r.RuleType == "required" && (value == nil || reflect.ValueOf(value).IsZero()) {
			return fmt.Errorf("%w: %s", ErrRequiredFieldNotSet, fieldPath)
		}
	}
	return nil
}

// GetValidationRules returns the rules registered for configType.
func (v *Validator) GetValidationRules(ctx context.Context, configType string) ([]*ValidationRule, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	rules, ok := v.rules[configType]
	if !ok {
		return nil, ErrConfigTypeNotFound
	}
	return rules, nil
}

// AddRule adds a validation rule for a specific configuration type.
func (v *Validator) AddRule(configType string, rule *ValidationRule) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rules[configType] = append(v.rules[configType], rule)
}

// applyDefaults applies `default:"..."` struct tags to zero-valued fields.
func (l *Loader) applyDefaults(config interface{}) error {
	return l.applyDefaultsRecursive(config, "")
}

func (l *Loader) applyDefaultsRecursive(v interface{}, fieldPath string) error {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		ft := rt.Field(i)
		if !field.CanSet() {
			continue
		}
		path := joinPath(fieldPath, ft.Name)

		if def := ft.Tag.Get("default"); def != "" && field.IsZero() {
			if err := setFieldFromAny(field, def); err != nil {
				return err
			}
			l.setProvenance(path, "default", "struct-tag:"+ft.Name, def)
		}

		if field.Kind() == reflect.Struct {
			if err := l.applyDefaultsRecursive(field.Addr().Interface(), path); err != nil {
				return err
			}
		} else if field.Kind() == reflect.Ptr && !field.IsNil() && field.Type().Elem().Kind() == reflect.Struct {
			if err := l.applyDefaultsRecursive(field.Interface(), path); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateRequiredRecursive(v interface{}, fieldPath string) error {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		ft := rt.Field(i)
		path := joinPath(fieldPath, ft.Name)

		if ft.Tag.Get("required") == "true" && field.IsZero() {
			return fmt.Errorf("%w: %s", ErrRequiredFieldNotSet, path)
		}

		if field.Kind() == reflect.Struct {
			if err := validateRequiredRecursive(field.Addr().Interface(), path); err != nil {
				return err
			}
		} else if field.Kind() == reflect.Ptr && !field.IsNil() && field.Type().Elem().Kind() == reflect.Struct {
			if err := validateRequiredRecursive(field.Interface(), path); err != nil {
				return err
			}
		}
	}
	return nil
}

// setFieldFromAny converts raw (a string, from env vars and default tags)
// to field's type via golobby/cast.FromType, the same coercion idiom the
// rest of the stack uses for string-sourced config binding.
func setFieldFromAny(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.Invalid, reflect.Uintptr, reflect.Complex64, reflect.Complex128,
		reflect.Array, reflect.Chan, reflect.Func, reflect.Interface, reflect.Map,
		reflect.Slice, reflect.UnsafePointer:
		return fmt.Errorf("%w: %s", ErrUnsupportedFieldType, field.Kind().String())
	}
	converted, err := cast.FromType(raw, field.Type())
	if err != nil {
		return fmt.Errorf("cannot convert value %q to type %v: %w", raw, field.Type(), err)
	}
	field.Set(reflect.ValueOf(converted))
	return nil
}

// RedactSecrets returns a copy of provenance with Value replaced if its
// field path looks like a credential, so diagnostics endpoints never leak
// secrets loaded from env or files.
func RedactSecrets(provenance *FieldProvenance) *FieldProvenance {
	if provenance == nil {
		return nil
	}
	redacted := *provenance
	redacted.Metadata = make(map[string]string, len(provenance.Metadata)+1)
	for k, v := range provenance.Metadata {
		redacted.Metadata[k] = v
	}
	if isSecretField(provenance.FieldPath) {
		redacted.Value = "[REDACTED]"
		redacted.Metadata["redacted"] = "true"
	}
	return &redacted
}

func isSecretField(fieldPath string) bool {
	lower := strings.ToLower(fieldPath)
	for _, pattern := range []string{"password", "secret", "key", "token", "credential", "auth", "private", "cert", "ssl", "tls"} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
