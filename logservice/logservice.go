// Package logservice is the built-in "logger" service every node
// bootstraps first (skynet_start.c always launches the logger module
// before anything else can call skynet_error). Any service sends it
// PTYPE_TEXT messages; it formats each with a timestamp and the sending
// handle and writes it to a configured sink. LOGON/LOGOFF (§6) instead
// attach/detach a per-service sink directly on a Context, bypassing this
// service entirely — the two mechanisms are independent, as in the
// original.
package logservice

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hiveworks/hive"
)

// Config controls where and how formatted entries are written.
type Config struct {
	Target string // "console" or "file"
	Path   string // required when Target == "file"
	Format string // "json", "text", or "structured"
	Level  string // minimum level a LogEntry must carry to be written
}

// DefaultConfig writes structured entries to the console at INFO level.
func DefaultConfig() Config {
	return Config{Target: "console", Format: "structured", Level: "INFO"}
}

// LogEntry is one formatted record, carrying a fresh correlation id
// independent of the originating message's session, so log lines can be
// cross-referenced without replaying the session's request/response pair.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    uint32    `json:"source"`
	Session   int32     `json:"session"`
	Message   string    `json:"message"`
}

type instance struct {
	mu     sync.Mutex
	cfg    Config
	target OutputTarget
}

// Module builds the logger service's ABI record. base is overridden by any
// "key=value" pairs present in the LAUNCH parameter string (e.g. "logger
// target=file path=/var/log/hive.log").
func Module(base Config) *hive.Module {
	return &hive.Module{
		Name:   "logger",
		Create: func() hive.Instance { return &instance{cfg: base} },
		Init:   initService,
		Release: func(inst hive.Instance, ctx *hive.Context) {
			svc := inst.(*instance)
			svc.mu.Lock()
			defer svc.mu.Unlock()
			if svc.target != nil {
				_ = svc.target.Stop()
			}
		},
		Signal: func(inst hive.Instance, ctx *hive.Context, signal int) {
			svc := inst.(*instance)
			svc.mu.Lock()
			defer svc.mu.Unlock()
			if svc.target != nil {
				_ = svc.target.Flush()
			}
		},
	}
}

func initService(raw hive.Instance, ctx *hive.Context, param string) error {
	svc := raw.(*instance)
	svc.cfg = applyParam(svc.cfg, param)

	target, err := NewOutputTarget(svc.cfg)
	if err != nil {
		return err
	}
	if err := target.Start(); err != nil {
		return err
	}
	svc.target = target

	ctx.SetCallback(func(c *hive.Context, ud any, msgType uint8, session int32, source hive.Handle, data []byte) bool {
		if msgType != hive.PTypeText {
			return false
		}
		entry := LogEntry{
			ID:        uuid.NewString(),
			Timestamp: time.Now(),
			Source:    uint32(source),
			Session:   session,
			Message:   string(data),
		}
		svc.mu.Lock()
		_ = svc.target.WriteEvent(entry)
		svc.mu.Unlock()
		return false
	}, nil)

	return nil
}

// applyParam parses "key=value" pairs separated by whitespace, each
// overriding the matching Config field; unrecognized keys are ignored.
func applyParam(cfg Config, param string) Config {
	for _, field := range strings.Fields(param) {
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(k) {
		case "target":
			cfg.Target = v
		case "path":
			cfg.Path = v
		case "format":
			cfg.Format = v
		case "level":
			cfg.Level = strings.ToUpper(v)
		}
	}
	return cfg
}
