package builtins

import "github.com/Kijewski/go-extrasafe/pkg/seccomp"

// Socket constants from the Linux ABI (identical on amd64, 386, arm,
// arm64). The low nibble of the socket type argument carries the type;
// SOCK_NONBLOCK and SOCK_CLOEXEC live in higher bits and stay permitted.
const (
	afUnix  = 1
	afInet  = 2
	afInet6 = 10

	sockStream   = 1
	sockDgram    = 2
	sockTypeMask = 0xf
)

// runningSocketSyscalls let a program use sockets it already has: transfer
// data, poll, query and tune socket options, and shut down.
var runningSocketSyscalls = []string{
	"read", "write", "readv", "writev",
	"recvfrom", "sendto", "recvmsg", "sendmsg",
	"getsockname", "getpeername", "getsockopt", "setsockopt",
	"poll", "ppoll", "shutdown",
}

// inetSocket matches socket(2) for IPv4 or IPv6 with the given type.
func inetSocket(sockType uint64) seccomp.SyscallRule {
	return seccomp.Or{
		seccomp.PerArg{seccomp.EqualTo(afInet), seccomp.MaskedEqual(sockTypeMask, sockType)},
		seccomp.PerArg{seccomp.EqualTo(afInet6), seccomp.MaskedEqual(sockTypeMask, sockType)},
	}
}

// unixSocket matches socket(2) for AF_UNIX stream or datagram sockets.
func unixSocket() seccomp.SyscallRule {
	return seccomp.Or{
		seccomp.PerArg{seccomp.EqualTo(afUnix), seccomp.MaskedEqual(sockTypeMask, sockStream)},
		seccomp.PerArg{seccomp.EqualTo(afUnix), seccomp.MaskedEqual(sockTypeMask, sockDgram)},
	}
}

// Networking allows socket use. A new Networking allows nothing; the
// Allow methods mirror the capability split between using sockets that
// already exist ("running") and creating new ones ("start").
//
// Networking requires BasicCapabilities.
type Networking struct {
	rules ruleMap
}

// NewNetworking returns a Networking profile that allows nothing.
func NewNetworking() *Networking {
	return &Networking{rules: make(ruleMap)}
}

// AllowRunningTCPClients allows using already-connected TCP sockets.
func (n *Networking) AllowRunningTCPClients() *Networking {
	n.rules.allow(runningSocketSyscalls...)
	return n
}

// AllowRunningTCPServers allows serving on already-listening TCP sockets,
// including accepting new connections.
func (n *Networking) AllowRunningTCPServers() *Networking {
	n.rules.allow(runningSocketSyscalls...)
	n.rules.allow("accept", "accept4")
	return n
}

// AllowRunningUDPSockets allows using already-bound UDP sockets.
func (n *Networking) AllowRunningUDPSockets() *Networking {
	n.rules.allow(runningSocketSyscalls...)
	return n
}

// AllowRunningUnixClients allows using already-connected Unix sockets.
func (n *Networking) AllowRunningUnixClients() *Networking {
	n.rules.allow(runningSocketSyscalls...)
	return n
}

// AllowRunningUnixServers allows serving on already-listening Unix sockets.
func (n *Networking) AllowRunningUnixServers() *Networking {
	n.rules.allow(runningSocketSyscalls...)
	n.rules.allow("accept", "accept4")
	return n
}

// AllowStartTCPClients additionally allows creating and connecting TCP
// sockets: socket(AF_INET|AF_INET6, SOCK_STREAM) and connect.
func (n *Networking) AllowStartTCPClients() *Networking {
	n.rules.add("socket", inetSocket(sockStream))
	n.rules.allow("connect")
	return n
}

// AllowStartTCPServers additionally allows creating, binding and listening
// on TCP sockets.
func (n *Networking) AllowStartTCPServers() *Networking {
	n.rules.add("socket", inetSocket(sockStream))
	n.rules.allow("bind", "listen")
	return n
}

// AllowStartUDPServers additionally allows creating and binding UDP
// sockets.
func (n *Networking) AllowStartUDPServers() *Networking {
	n.rules.add("socket", inetSocket(sockDgram))
	n.rules.allow("bind")
	return n
}

// AllowStartUnixServer additionally allows creating, binding and listening
// on Unix domain sockets.
func (n *Networking) AllowStartUnixServer() *Networking {
	n.rules.add("socket", unixSocket())
	n.rules.allow("bind", "listen")
	return n
}

// Name implements extrasafe.RuleSet.
func (n *Networking) Name() string { return "Networking" }

// RequiredRuleSets implements extrasafe.RuleSet.
func (n *Networking) RequiredRuleSets() []string { return []string{"BasicCapabilities"} }

// Rules implements extrasafe.RuleSet.
func (n *Networking) Rules() map[string]seccomp.SyscallRule {
	return n.rules.clone()
}
