// Package hive is the runtime root: it ties the registry, mailbox,
// dispatch, wheel, monitor, and harbor packages together into the Node
// type, and defines the data model (Handle, Message, Context) shared
// across them.
//
// The ordered startup sequence in Node.Run (env -> handle registry ->
// module loader -> timer -> worker goroutines -> bootstrap service ->
// monitor; no socket/IO goroutine is started) is grounded on skynet_start.c's
// start_all/thread_worker orchestration; the Node type itself replaces
// the teacher's application.go/application_core.go (those modeled a
// tenant-aware web application, a shape this actor runtime doesn't share,
// so the type was rewritten from scratch rather than adapted in place).
package hive

import (
	"sync"
	"time"

	"github.com/hiveworks/hive/harbor"
	"github.com/hiveworks/hive/mailbox"
	"github.com/hiveworks/hive/monitor"
	"github.com/hiveworks/hive/registry"
	"github.com/hiveworks/hive/wheel"
)

// Weight assignment table for worker slots, per §4.4.
func weightFor(workerIndex int) int {
	switch {
	case workerIndex < 4:
		return -1
	case workerIndex < 8:
		return 0
	case workerIndex < 16:
		return 1
	case workerIndex < 24:
		return 2
	default:
		return 3
	}
}

// Config is the fully-typed form of the env table's well-known keys (§6).
type Config struct {
	Threads       int
	Harbor        int
	Bootstrap     string
	DaemonPidfile string
	LoggerPath    string
	LogServiceMod string
	Profile       bool
	CPath         string
}

// DefaultConfig matches the defaults stated in §6.
func DefaultConfig() Config {
	return Config{
		Threads:       8,
		Harbor:        1,
		Bootstrap:     "snlua bootstrap",
		LogServiceMod: "logger",
		Profile:       true,
	}
}

// Node is the runtime: the live registry, ready-queue, timing wheel,
// monitor, harbor hook, module loader, and worker pool.
type Node struct {
	cfg       Config
	localNode uint8
	env       *Env
	logger    Logger

	registry *registry.Registry[*Context]
	ready    *mailbox.ReadyQueue
	modules  *ModuleRegistry
	wheel    *wheel.Wheel
	monitor  *monitor.Monitor
	harbor   *harbor.Hook
	events   *EventEmitter

	mu       sync.Mutex
	cond     *sync.Cond
	sleeping int
	quit     bool
	wg       sync.WaitGroup

	startTime time.Time

	monitorHandle Handle // MONITOR command target, notified when a service exits
}

// New builds a Node from cfg and seed env vars. It performs no I/O and
// starts no goroutines; call Run to bring the node up.
func New(cfg Config, seedEnv map[string]string, logger Logger) *Node {
	if logger == nil {
		logger = NoopLogger()
	}
	n := &Node{
		cfg:      cfg,
		env:      NewEnv(seedEnv),
		logger:   logger,
		registry: registry.New[*Context](uint8(cfg.Harbor), nil),
		ready:    mailbox.NewReadyQueue(),
		modules:  NewModuleRegistry(),
		wheel:    wheel.New(),
		events:   NewEventEmitter(),
	}
	n.localNode = uint8(cfg.Harbor)
	n.cond = sync.NewCond(&n.mu)
	n.registry = registry.New[*Context](n.localNode, n.onZeroRef)
	return n
}

// onZeroRef is invoked by the registry once a context's ref count reaches
// zero; it runs the module's release hook outside the registry lock.
func (n *Node) onZeroRef(ctx *Context) {
	if ctx.Module() != nil && ctx.Module().Release != nil {
		ctx.Module().Release(ctx.Instance(), ctx)
	}
	ctx.Mbox().Drain(func(raw mailbox.Message) {
		if msg, ok := raw.(Message); ok {
			n.pushError(msg.Source, msg.Session)
		}
	})
	if watcher := n.monitorHandle; watcher != 0 {
		_, _ = n.Send(ctx.Handle(), watcher, PTypeClient, 0, nil, 0)
	}
	n.events.Emit(EventServiceRetired, LifecyclePayload{
		Subject:   "service",
		Handle:    uint32(ctx.Handle()),
		Timestamp: time.Now(),
	})
}

// Env exposes the process-wide configuration table.
func (n *Node) Env() *Env { return n.env }

// Modules exposes the module loader registry, for callers wiring up
// factories before Run.
func (n *Node) Modules() *ModuleRegistry { return n.modules }

// Harbor exposes the cross-node forwarding hook, once Run has built it.
func (n *Node) Harbor() *harbor.Hook { return n.harbor }

// Events exposes the lifecycle event hub (module loaded, service
// launched/retired, endless loop detected), for operators who want
// structured CloudEvents notifications rather than log scraping.
func (n *Node) Events() *EventEmitter { return n.events }

// StartTime returns the wall-clock time Run was called, matching the
// STARTTIME command's "seconds since epoch at process start".
func (n *Node) StartTime() time.Time { return n.startTime }

// RegisterModule adds a module factory, for use by the LAUNCH command and
// by the bootstrap step.
func (n *Node) RegisterModule(m *Module) error {
	if err := n.modules.Register(m); err != nil {
		return err
	}
	n.events.Emit(EventModuleLoaded, LifecyclePayload{
		Subject:   "module",
		Name:      m.Name,
		Timestamp: time.Now(),
	})
	return nil
}

// Run brings the node up in the order specified by skynet_start.c: env is
// already populated by New; next is the handle registry (already built);
// module loader is primed by RegisterModule calls made before Run; then
// the timer, worker pool, bootstrap service, and finally the monitor.
// forward, if non-nil, wires the harbor hook's cross-node transport.
func (n *Node) Run(forward harbor.ForwardFunc) error {
	n.startTime = time.Now()

	h, err := harbor.New(n.localNode, n.cfg.Harbor != 0, forward)
	if err != nil {
		return err
	}
	n.harbor = h

	n.wheel.Run(n.fireTimer)

	workerCount := n.cfg.Threads
	if workerCount <= 0 {
		workerCount = 1
	}
	n.startWorkers(workerCount)

	if n.cfg.Bootstrap != "" {
		if _, _, err := n.Launch(n.cfg.Bootstrap); err != nil {
			return ErrBootstrapFailed
		}
	}

	n.monitor = monitor.New(workerCount, n.onEndless)
	n.monitor.Run()

	return nil
}

func (n *Node) onEndless(source, dest monitor.Handle) {
	ctx, err := n.registry.Grab(Handle(dest))
	if err != nil {
		return
	}
	defer ctx.Release()
	ctx.SetEndless(true)
	n.logger.Warn("endless loop detected", "source", uint32(source), "dest", uint32(dest))
	n.events.Emit(EventEndlessDetected, LifecyclePayload{
		Subject:   "service",
		Handle:    uint32(dest),
		Timestamp: time.Now(),
		Metadata:  map[string]interface{}{"source": uint32(source)},
	})
}

// fireTimer is the wheel's FireFunc: it builds a PTYPE_RESPONSE message
// and pushes it to the target handle's mailbox via the normal send path.
func (n *Node) fireTimer(ev *wheel.Event) {
	_, _ = n.Send(0, Handle(ev.Target), PTypeResponse, ev.Session, nil, 0)
}

// addTimer schedules a PTYPE_RESPONSE to target/session ticks from now.
func (n *Node) addTimer(target Handle, session int32, ticks int64) {
	n.wheel.Add(&wheel.Event{Target: uint32(target), Session: session}, ticks)
}

// Shutdown stops every worker, the wheel, and the monitor, and waits for
// them to exit. It does not itself retire services; call
// node.Registry().RetireAll() first if a clean shutdown is wanted.
func (n *Node) Shutdown() {
	n.mu.Lock()
	n.quit = true
	n.cond.Broadcast()
	n.mu.Unlock()

	n.wg.Wait()
	n.wheel.Stop()
	if n.monitor != nil {
		n.monitor.Stop()
	}
}

// Registry exposes the handle table, mainly for RetireAll during shutdown
// and for diagnostics.
func (n *Node) Registry() *registry.Registry[*Context] { return n.registry }

// Logger exposes the node-wide log sink, for components (such as the diag
// server) that report alongside it rather than through a Context.
func (n *Node) Logger() Logger { return n.logger }

// ServiceStat is a point-in-time snapshot of one live service, for
// diagnostics endpoints and periodic reporting.
type ServiceStat struct {
	Handle   uint32 `json:"handle"`
	RefCount int32  `json:"ref_count"`
	MailboxN int    `json:"mailbox_length"`
	Endless  bool   `json:"endless"`
	CPUTicks int64  `json:"cpu_ticks"`
}

// Stats returns a snapshot of every live service.
func (n *Node) Stats() []ServiceStat {
	live := n.registry.Snapshot()
	out := make([]ServiceStat, 0, len(live))
	for _, ctx := range live {
		out = append(out, ServiceStat{
			Handle:   uint32(ctx.Handle()),
			RefCount: ctx.RefCount(),
			MailboxN: ctx.Mbox().Length(),
			Endless:  ctx.Endless(),
			CPUTicks: ctx.CPUTicks(),
		})
	}
	return out
}
