package registry

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrHandleNotFound  = errors.New("registry: handle not found")
	ErrHandleTableFull = errors.New("registry: handle table exhausted")
	ErrNameConflict    = errors.New("registry: name already bound to a handle")
)

// maxSlots bounds the slot array per §4.1: handles are 24 bits local, so
// the table never needs to grow past 2^24 entries; 2^30 is the design's
// stated hard ceiling, kept as a defensive assert.
const maxSlots = 1 << 30

// Entry is anything the registry holds a handle-addressed slot for. An
// entry knows its own handle once Register has assigned one (the caller
// is expected to store the returned Handle on it before any concurrent
// Grab/Retire can observe it). Ref counting is owned by the entry itself;
// the registry calls Retain/Release at the moments specified in §3/§4.1
// and never inspects the count directly. comparable is embedded so the
// registry can compare a slot against its zero value to test liveness
// (Register/Retire/Grab/Snapshot all do this); every concrete Entry the
// runtime uses (*Context) is a pointer, so this costs nothing.
type Entry interface {
	comparable
	Handle() Handle
	Retain() int32
	Release() int32
}

// Registry is the handle table: a power-of-two slot array indexed by
// handle & (size-1), with linear-probe allocation and a parallel sorted
// name table. Safe for concurrent use.
type Registry[T Entry] struct {
	mu sync.RWMutex

	node  uint8
	slots []T

	handleIndex uint32 // monotonically advancing allocation cursor

	names []nameBinding

	onZeroRef func(T)
}

type nameBinding struct {
	name   string
	handle Handle
}

// New builds a registry for the given local node id, with an initial slot
// table of size 4 (doubling thereafter) and a name table of capacity 2.
// onZeroRef is invoked (outside any registry lock) whenever an entry's ref
// count reaches zero, mirroring "the module's release hook is invoked".
func New[T Entry](node uint8, onZeroRef func(T)) *Registry[T] {
	return &Registry[T]{
		node:      node,
		slots:     make([]T, 4),
		names:     make([]nameBinding, 0, 2),
		onZeroRef: onZeroRef,
	}
}

// Register allocates a fresh handle for ctx and installs it in the slot
// table, starting the linear probe from the current handle_index. On a
// full table it doubles the slot array and rehashes every live entry
// before retrying.
func (r *Registry[T]) Register(ctx T) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		size := uint32(len(r.slots))
		for i := uint32(0); i < size; i++ {
			seq := (r.handleIndex + i) & HandleMask
			if seq == 0 {
				continue // handle 0 is reserved
			}
			idx := seq & (size - 1)
			var zero T
			if r.slots[idx] == zero {
				r.slots[idx] = ctx
				r.handleIndex = (seq + 1) & HandleMask
				if r.handleIndex == 0 {
					r.handleIndex = 1
				}
				return WithNode(r.node, seq), nil
			}
		}
		if err := r.grow(); err != nil {
			return 0, err
		}
	}
	return 0, ErrHandleTableFull
}

// grow doubles the slot array (asserting the new size stays within
// maxSlots) and rehashes every live slot into its new position. Must be
// called with mu held.
func (r *Registry[T]) grow() error {
	newSize := len(r.slots) * 2
	if newSize > maxSlots {
		return ErrHandleTableFull
	}
	newSlots := make([]T, newSize)
	mask := uint32(newSize) - 1
	for _, ctx := range r.slots {
		var zero T
		if ctx == zero {
			continue
		}
		newSlots[ctx.Handle().Sequence()&mask] = ctx
	}
	r.slots = newSlots
	return nil
}

// Retire looks up handle; if the slot still holds that exact handle's
// entry, it clears the slot, removes every name bound to it, releases the
// write lock, and only then drops one ref on the entry — release hooks may
// call back into the registry, so the lock must not be held.
func (r *Registry[T]) Retire(handle Handle) error {
	r.mu.Lock()

	size := uint32(len(r.slots))
	idx := handle.Sequence() & (size - 1)
	var zero T
	ctx := r.slots[idx]
	if ctx == zero || ctx.Handle() != handle {
		r.mu.Unlock()
		return ErrHandleNotFound
	}

	r.slots[idx] = zero
	r.removeNamesForLocked(handle)
	r.mu.Unlock()

	if ctx.Release() == 0 && r.onZeroRef != nil {
		r.onZeroRef(ctx)
	}
	return nil
}

// removeNamesForLocked compacts handle's bindings out of the sorted name
// table in place, preserving order. Must be called with mu held.
func (r *Registry[T]) removeNamesForLocked(handle Handle) {
	kept := r.names[:0]
	for _, b := range r.names {
		if b.handle != handle {
			kept = append(kept, b)
		}
	}
	r.names = kept
}

// Grab returns the entry bound to handle with one additional ref held, or
// ErrHandleNotFound.
func (r *Registry[T]) Grab(handle Handle) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	size := uint32(len(r.slots))
	idx := handle.Sequence() & (size - 1)
	ctx := r.slots[idx]
	if ctx == zero || ctx.Handle() != handle {
		return zero, ErrHandleNotFound
	}
	ctx.Retain()
	return ctx, nil
}

// RetireAll retires every live slot, looping until a full pass observes no
// live entries (new registrations racing with shutdown are swept up on the
// next pass).
func (r *Registry[T]) RetireAll() {
	for {
		handle, ok := r.firstLiveHandle()
		if !ok {
			return
		}
		_ = r.Retire(handle)
	}
}

// Snapshot returns every currently live entry, for diagnostics. The
// returned slice is a point-in-time copy; entries may retire concurrently.
func (r *Registry[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var zero T
	out := make([]T, 0, len(r.slots))
	for _, ctx := range r.slots {
		if ctx != zero {
			out = append(out, ctx)
		}
	}
	return out
}

func (r *Registry[T]) firstLiveHandle() (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var zero T
	for _, ctx := range r.slots {
		if ctx != zero {
			return ctx.Handle(), true
		}
	}
	return 0, false
}

// FindName looks up the handle bound to name via binary search.
func (r *Registry[T]) FindName(name string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := sort.Search(len(r.names), func(i int) bool { return r.names[i].name >= name })
	if i < len(r.names) && r.names[i].name == name {
		return r.names[i].handle, true
	}
	return 0, false
}

// BindName binds name to handle, refusing duplicates. Returns the stored
// name (a private copy) and ok=true on success; ok=false if name is
// already bound to any handle.
func (r *Registry[T]) BindName(handle Handle, name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := sort.Search(len(r.names), func(i int) bool { return r.names[i].name >= name })
	if i < len(r.names) && r.names[i].name == name {
		return "", false
	}

	stored := string([]byte(name)) // private copy, matching the design's "store a private copy"
	r.names = append(r.names, nameBinding{})
	copy(r.names[i+1:], r.names[i:])
	r.names[i] = nameBinding{name: stored, handle: handle}
	return stored, true
}
