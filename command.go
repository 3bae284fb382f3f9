package hive

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Command implements the textual control surface of §6, dispatched from
// a running service's own context. It mirrors skynet_server.c's command
// table: a small static set of named operations, modeled here as a
// switch rather than a function-pointer table since Go has no portable
// equivalent and a switch is the idiomatic stand-in for a small closed
// set of cases.
func (n *Node) Command(ctx *Context, cmd, param string) (string, error) {
	switch strings.ToUpper(cmd) {
	case "TIMEOUT":
		return n.cmdTimeout(ctx, param)
	case "REG":
		return n.cmdReg(ctx, param)
	case "QUERY":
		return n.cmdQuery(param)
	case "NAME":
		return n.cmdName(param)
	case "EXIT":
		return n.cmdExit(ctx)
	case "KILL":
		return n.cmdKill(param)
	case "LAUNCH":
		return n.cmdLaunch(param)
	case "GETENV":
		return n.cmdGetenv(param)
	case "SETENV":
		return n.cmdSetenv(param)
	case "STARTTIME":
		return strconv.FormatInt(n.startTime.Unix(), 10), nil
	case "ABORT":
		n.registry.RetireAll()
		return "", nil
	case "MONITOR":
		return n.cmdMonitor(param)
	case "STAT":
		return n.cmdStat(ctx, param)
	case "LOGON":
		return n.cmdLogon(param)
	case "LOGOFF":
		return n.cmdLogoff(param)
	case "SIGNAL":
		return n.cmdSignal(param)
	default:
		return "", ErrUnknownCommand
	}
}

func (n *Node) cmdTimeout(ctx *Context, param string) (string, error) {
	ticks, err := strconv.ParseInt(strings.TrimSpace(param), 10, 64)
	if err != nil {
		return "", ErrBadCommandParam
	}
	session := ctx.NextSession()
	if ticks <= 0 {
		_, sendErr := n.Send(0, ctx.Handle(), PTypeResponse, session, nil, 0)
		if sendErr != nil {
			return "", sendErr
		}
		return strconv.FormatInt(int64(session), 10), nil
	}
	n.addTimer(ctx.Handle(), session, ticks)
	return strconv.FormatInt(int64(session), 10), nil
}

func (n *Node) cmdReg(ctx *Context, param string) (string, error) {
	name := strings.TrimSpace(param)
	if name == "" {
		return "", ErrBadCommandParam
	}
	stored, ok := n.registry.BindName(ctx.Handle(), name)
	if !ok {
		return "", ErrNameConflict
	}
	return stored, nil
}

func (n *Node) cmdQuery(param string) (string, error) {
	name := strings.TrimSpace(param)
	h, ok := n.registry.FindName(name)
	if !ok {
		return "", ErrHandleNotFound
	}
	return hexHandle(h), nil
}

func (n *Node) cmdName(param string) (string, error) {
	fields := strings.Fields(param)
	if len(fields) != 2 || !strings.HasPrefix(fields[1], ":") {
		return "", ErrBadCommandParam
	}
	h, err := parseHexHandle(fields[1][1:])
	if err != nil {
		return "", err
	}
	stored, ok := n.registry.BindName(h, fields[0])
	if !ok {
		return "", ErrNameConflict
	}
	return stored, nil
}

func (n *Node) cmdExit(ctx *Context) (string, error) {
	return "", n.registry.Retire(ctx.Handle())
}

func (n *Node) cmdKill(param string) (string, error) {
	h, err := n.resolveHandleOrName(param)
	if err != nil {
		return "", err
	}
	return "", n.registry.Retire(h)
}

func (n *Node) cmdLaunch(param string) (string, error) {
	h, _, err := n.Launch(param)
	if err != nil {
		return "", err
	}
	return hexHandle(h), nil
}

func (n *Node) cmdGetenv(param string) (string, error) {
	v, ok := n.env.Get(strings.TrimSpace(param))
	if !ok {
		return "", nil
	}
	return v, nil
}

func (n *Node) cmdSetenv(param string) (string, error) {
	fields := strings.SplitN(strings.TrimSpace(param), " ", 2)
	if len(fields) != 2 {
		return "", ErrBadCommandParam
	}
	n.env.Set(fields[0], fields[1])
	return "", nil
}

func (n *Node) cmdMonitor(param string) (string, error) {
	name := strings.TrimSpace(param)
	if name == "" {
		n.monitorHandle = 0
		return "", nil
	}
	h, err := n.resolveHandleOrName(name)
	if err != nil {
		return "", err
	}
	n.monitorHandle = h
	return "", nil
}

func (n *Node) cmdStat(ctx *Context, param string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(param)) {
	case "mqlen":
		return strconv.Itoa(ctx.Mbox().Length()), nil
	case "endless":
		return strconv.FormatBool(ctx.Endless()), nil
	case "cpu":
		return strconv.FormatInt(ctx.CPUTicks(), 10), nil
	case "time":
		return strconv.FormatInt(int64(time.Since(n.startTime)/time.Millisecond), 10), nil
	case "message":
		return strconv.Itoa(ctx.Mbox().Length()), nil
	default:
		return "", ErrBadCommandParam
	}
}

func (n *Node) cmdLogon(param string) (string, error) {
	h, err := parseHexHandle(strings.TrimSpace(param))
	if err != nil {
		return "", err
	}
	ctx, err := n.registry.Grab(h)
	if err != nil {
		return "", err
	}
	defer ctx.Release()
	ctx.SetLogger(n.logger)
	return "", nil
}

func (n *Node) cmdLogoff(param string) (string, error) {
	h, err := parseHexHandle(strings.TrimSpace(param))
	if err != nil {
		return "", err
	}
	ctx, err := n.registry.Grab(h)
	if err != nil {
		return "", err
	}
	defer ctx.Release()
	ctx.SetLogger(nil)
	return "", nil
}

func (n *Node) cmdSignal(param string) (string, error) {
	fields := strings.Fields(param)
	if len(fields) == 0 {
		return "", ErrBadCommandParam
	}
	h, err := parseHexHandle(fields[0])
	if err != nil {
		return "", err
	}
	sig := 0
	if len(fields) > 1 {
		v, perr := strconv.Atoi(fields[1])
		if perr != nil {
			return "", ErrBadCommandParam
		}
		sig = v
	}
	ctx, err := n.registry.Grab(h)
	if err != nil {
		return "", err
	}
	defer ctx.Release()
	if ctx.Module() != nil && ctx.Module().Signal != nil {
		ctx.Module().Signal(ctx.Instance(), ctx, sig)
	}
	return "", nil
}

func (n *Node) resolveHandleOrName(param string) (Handle, error) {
	param = strings.TrimSpace(param)
	if strings.HasPrefix(param, ".") {
		h, ok := n.registry.FindName(param)
		if !ok {
			return 0, ErrHandleNotFound
		}
		return h, nil
	}
	return parseHexHandle(strings.TrimPrefix(param, ":"))
}

func hexHandle(h Handle) string {
	return fmt.Sprintf(":%x", uint32(h))
}
