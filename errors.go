package hive

import "errors"

// Core runtime errors, grouped by the concern that raises them.
var (
	// Handle registry errors
	ErrHandleNotFound  = errors.New("handle not found")
	ErrHandleTableFull = errors.New("handle table exhausted")
	ErrNameConflict    = errors.New("name already bound to a handle")

	// Send/mailbox errors
	ErrUnknownDestination = errors.New("send: unknown destination handle")
	ErrMessageTooLarge    = errors.New("send: message payload exceeds maximum size")
	ErrNilDestination     = errors.New("send: destination handle is zero")

	// Module loader errors
	ErrModuleNotFound   = errors.New("module: no factory registered under that name")
	ErrModuleInitNil    = errors.New("module: init hook is required")
	ErrModuleInitFailed = errors.New("module: init returned an error")

	// Node lifecycle errors
	ErrNodeAlreadyRunning = errors.New("node: already running")
	ErrNodeNotRunning     = errors.New("node: not running")
	ErrBootstrapFailed    = errors.New("node: bootstrap service failed to start")

	// Command surface errors
	ErrUnknownCommand  = errors.New("command: unrecognized command")
	ErrBadCommandParam = errors.New("command: malformed parameter")
)
