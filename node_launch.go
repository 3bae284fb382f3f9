package hive

import (
	"strings"
	"time"

	"github.com/hiveworks/hive/mailbox"
)

// Launch builds a fresh service from spec ("<module> <args>"), following
// skynet_context_new's exact sequence: load module, create instance,
// register a handle (mailbox pre-published with in_global set), call
// init, then on success drop one ref and publish the mailbox into the
// ready-queue; on failure drop one ref then retire the handle (dropping
// the second), draining the mailbox through the error-reporting path.
func (n *Node) Launch(spec string) (Handle, *Context, error) {
	name, param := splitSpec(spec)

	mod, err := n.modules.Lookup(name)
	if err != nil {
		return 0, nil, err
	}

	var inst Instance
	if mod.Create != nil {
		inst = mod.Create()
	} else {
		inst = placeholderInstance{}
	}

	mb := mailbox.New(mailbox.Owner(0))
	ctx := newContext(mod, inst, mb, n.logger)
	ctx.SetProfile(n.cfg.Profile)

	h, err := n.registry.Register(ctx)
	if err != nil {
		return 0, nil, err
	}
	ctx.setHandle(h)
	mb.SetOwner(mailbox.Owner(h))

	if err := mod.Init(inst, ctx, param); err != nil {
		ctx.markInit()
		ctx.Release()           // ref 2 -> 1
		_ = n.registry.Retire(h) // ref 1 -> 0, release hook + mailbox drain run here
		return 0, nil, ErrModuleInitFailed
	}

	ctx.markInit()
	ctx.Release() // ref 2 -> 1, the one ref the registry slot keeps alive

	n.ready.PushBack(mb)
	n.wake()
	n.logger.Info("launch", "module", name, "param", param, "handle", uint32(h))
	n.events.Emit(EventServiceLaunched, LifecyclePayload{
		Subject:   "service",
		Handle:    uint32(h),
		Name:      name,
		Timestamp: time.Now(),
		Metadata:  map[string]interface{}{"param": param},
	})

	return h, ctx, nil
}

func splitSpec(spec string) (name, param string) {
	spec = strings.TrimSpace(spec)
	i := strings.IndexByte(spec, ' ')
	if i < 0 {
		return spec, ""
	}
	return spec[:i], strings.TrimSpace(spec[i+1:])
}
