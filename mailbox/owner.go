package mailbox

// SetOwner fixes up the owner recorded on a mailbox created before its
// context's handle was known (New must run before Register returns a
// handle). Callers must not call this after the mailbox is visible to
// other goroutines.
func (m *Mailbox) SetOwner(owner Owner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owner = owner
}
