package hive

// Send delivers data from source to dest as a message of msgType. dest==0
// with non-nil data is an error. If flags has AllocSession set, session is
// ignored and a fresh session id is allocated from source's context
// instead. A dest whose node-id bits differ from this node is redirected
// to the pinned cross-node harbor hook.
func (n *Node) Send(source, dest Handle, msgType uint8, session int32, data []byte, flags int) (int32, error) {
	if dest == 0 && data != nil {
		return 0, ErrNilDestination
	}
	if len(data) > MaxPayloadSize {
		return 0, ErrMessageTooLarge
	}
	if flags&DontCopy == 0 && data != nil {
		cp := make([]byte, len(data))
		copy(cp, data)
		data = cp
	}

	if flags&AllocSession != 0 {
		if ctx, err := n.registry.Grab(source); err == nil {
			session = ctx.NextSession()
			ctx.Release()
		}
	}

	if dest.IsRemote(n.localNode) {
		err := n.harbor.Forward(dest.NodeID(), uint32(dest), session, msgType, data)
		return session, err
	}

	ctx, err := n.registry.Grab(dest)
	if err != nil {
		n.pushError(source, session)
		return 0, ErrUnknownDestination
	}
	defer ctx.Release()

	msg := Message{Source: source, Session: session, Data: data, Type: msgType}
	if ctx.Mbox().Push(msg) {
		n.ready.PushBack(ctx.Mbox())
		n.wake()
	}
	return session, nil
}

// SendByName resolves addr (":hex" local handle, ".name" local binding, or
// any other prefix routed to the remote forwarder) and sends through it.
func (n *Node) SendByName(source Handle, addr string, msgType uint8, session int32, data []byte, flags int) (int32, error) {
	dest, err := n.resolveAddr(addr)
	if err != nil {
		return 0, err
	}
	return n.Send(source, dest, msgType, session, data, flags)
}

func (n *Node) resolveAddr(addr string) (Handle, error) {
	if len(addr) == 0 {
		return 0, ErrBadCommandParam
	}
	switch addr[0] {
	case ':':
		v, err := parseHexHandle(addr[1:])
		if err != nil {
			return 0, ErrBadCommandParam
		}
		return v, nil
	case '.':
		h, ok := n.registry.FindName(addr)
		if !ok {
			return 0, ErrHandleNotFound
		}
		return h, nil
	default:
		// Remote forwarder addressing is opaque to the core; the harbor
		// hook owns interpreting non-local address schemes.
		return 0, ErrBadCommandParam
	}
}

func parseHexHandle(s string) (Handle, error) {
	var v uint32
	if len(s) == 0 {
		return 0, ErrBadCommandParam
	}
	for _, c := range s {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint32(c - '0')
		case c >= 'a' && c <= 'f':
			v |= uint32(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= uint32(c-'A') + 10
		default:
			return 0, ErrBadCommandParam
		}
	}
	return Handle(v), nil
}

// pushError synthesizes a PTYPE_ERROR message to dest, mirroring the
// design's "push synthesizes a PTYPE_ERROR to the source" rule for
// unknown destinations and drained/retired mailboxes.
func (n *Node) pushError(dest Handle, session int32) {
	if dest == 0 {
		return
	}
	ctx, err := n.registry.Grab(dest)
	if err != nil {
		return
	}
	defer ctx.Release()

	msg := Message{Source: 0, Session: session, Type: PTypeError}
	if ctx.Mbox().Push(msg) {
		n.ready.PushBack(ctx.Mbox())
		n.wake()
	}
}
