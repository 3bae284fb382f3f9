package logservice

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var (
	ErrUnknownOutputTargetType = errors.New("logservice: unknown output target type")
	ErrMissingFilePath         = errors.New("logservice: file target requires a path")
	ErrFileNotOpen             = errors.New("logservice: file target is not open")
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// OutputTarget is a formatted-entry sink, grounded on the teacher's
// console/file output-target split for its event logger module.
type OutputTarget interface {
	Start() error
	Stop() error
	WriteEvent(entry LogEntry) error
	Flush() error
}

// NewOutputTarget builds the sink named by cfg.Target.
func NewOutputTarget(cfg Config) (OutputTarget, error) {
	switch strings.ToLower(cfg.Target) {
	case "", "console", "stdout":
		return &consoleTarget{cfg: cfg, writer: os.Stdout}, nil
	case "file":
		if cfg.Path == "" {
			return nil, ErrMissingFilePath
		}
		return &fileTarget{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOutputTargetType, cfg.Target)
	}
}

type consoleTarget struct {
	cfg    Config
	writer io.Writer
}

func (c *consoleTarget) Start() error { return nil }
func (c *consoleTarget) Stop() error  { return nil }
func (c *consoleTarget) Flush() error { return nil }

func (c *consoleTarget) WriteEvent(entry LogEntry) error {
	line, err := formatEntry(c.cfg.Format, entry)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.writer, line)
	return err
}

type fileTarget struct {
	cfg  Config
	file *os.File
}

func (f *fileTarget) Start() error {
	if err := os.MkdirAll(filepath.Dir(f.cfg.Path), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	file, err := os.OpenFile(f.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", f.cfg.Path, err)
	}
	f.file = file
	return nil
}

func (f *fileTarget) Stop() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

func (f *fileTarget) Flush() error {
	if f.file == nil {
		return ErrFileNotOpen
	}
	return f.file.Sync()
}

func (f *fileTarget) WriteEvent(entry LogEntry) error {
	if f.file == nil {
		return ErrFileNotOpen
	}
	line, err := formatEntry(f.cfg.Format, entry)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f.file, line)
	return err
}

// formatEntry renders entry per format ("json", "text", or "structured",
// defaulting to structured), mirroring skynet_error's fixed "%s %s" prefix
// style in the structured case.
func formatEntry(format string, entry LogEntry) (string, error) {
	switch strings.ToLower(format) {
	case "json":
		data, err := jsonAPI.Marshal(entry)
		if err != nil {
			return "", fmt.Errorf("marshaling log entry: %w", err)
		}
		return string(data), nil
	case "text":
		return fmt.Sprintf("%s :%08x %s", entry.Timestamp.Format("2006-01-02 15:04:05.000"), entry.Source, entry.Message), nil
	default:
		return fmt.Sprintf("[%s] id=%s session=%d :%08x %s",
			entry.Timestamp.Format("2006-01-02 15:04:05.000"), entry.ID, entry.Session, entry.Source, entry.Message), nil
	}
}
