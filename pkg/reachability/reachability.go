// Package reachability answers one question for the mount engine: is the
// network usable right now? It offers a per-host TCP prober used before each
// mount attempt and a monitor that tracks the aggregate online state,
// notifying on offline-to-online transitions so sticky share states can be
// reset and a reconcile fired.
package reachability

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/marmos91/mountkeep/internal/logger"
)

// Prober checks whether a single host is reachable.
type Prober interface {
	Reachable(ctx context.Context, host string) bool
}

// defaultProbePorts are tried in order until one accepts a connection:
// SMB direct, NFS, portmapper, NetBIOS session.
var defaultProbePorts = []string{"445", "2049", "111", "139"}

// TCPProber probes hosts by dialing well-known file-service ports.
type TCPProber struct {
	ports   []string
	timeout time.Duration
	dial    func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewTCPProber creates a prober with the given per-dial timeout.
func NewTCPProber(timeout time.Duration) *TCPProber {
	d := &net.Dialer{}
	return &TCPProber{
		ports:   defaultProbePorts,
		timeout: timeout,
		dial:    d.DialContext,
	}
}

// Reachable implements Prober. A host is reachable when any probe port
// accepts a TCP connection within the timeout.
func (p *TCPProber) Reachable(ctx context.Context, host string) bool {
	for _, port := range p.ports {
		dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
		conn, err := p.dial(dialCtx, "tcp", net.JoinHostPort(host, port))
		cancel()
		if err == nil {
			conn.Close()
			return true
		}
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}

// State is the monitor's aggregate view of the network.
type State struct {
	Online bool

	// Kind labels the connection the state was observed on, e.g.
	// "ethernet", "wifi", or "probe" when derived from host probing.
	Kind string
}

// TransitionFunc is invoked when the aggregate state flips. Called outside
// the monitor's lock.
type TransitionFunc func(ctx context.Context, state State)

// Monitor tracks whether any registered host is reachable, polling on an
// interval. External signals (e.g. from an OS network watcher) can be
// pushed via SetState and coexist with polling.
type Monitor struct {
	prober   Prober
	interval time.Duration

	// hosts supplies the current probe targets, typically the distinct
	// hosts of all registered shares.
	hosts func() []string

	mu           sync.Mutex
	state        State
	known        bool
	onTransition TransitionFunc
}

// NewMonitor creates a monitor. hosts is consulted on every poll; a nil or
// empty host list leaves the previous state untouched.
func NewMonitor(prober Prober, interval time.Duration, hosts func() []string) *Monitor {
	return &Monitor{prober: prober, interval: interval, hosts: hosts}
}

// OnTransition registers the state-flip callback.
func (m *Monitor) OnTransition(fn TransitionFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransition = fn
}

// State returns the last observed state. Before the first observation the
// network is assumed online so startup mounts are not suppressed.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.known {
		return State{Online: true, Kind: "assumed"}
	}
	return m.state
}

// SetState pushes an externally observed state into the monitor, firing the
// transition callback when the online flag flips.
func (m *Monitor) SetState(ctx context.Context, state State) {
	m.mu.Lock()
	flipped := !m.known || m.state.Online != state.Online
	m.state = state
	m.known = true
	fn := m.onTransition
	m.mu.Unlock()

	if flipped {
		logger.Info("network state changed",
			"online", state.Online,
			"kind", state.Kind)
		if fn != nil {
			fn(ctx, state)
		}
	}
}

// Run polls until ctx is cancelled. Meant to be started as a goroutine.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	if m.hosts == nil {
		return
	}
	targets := m.hosts()
	if len(targets) == 0 {
		return
	}

	online := false
	for _, host := range targets {
		if m.prober.Reachable(ctx, host) {
			online = true
			break
		}
	}
	if ctx.Err() != nil {
		return
	}
	m.SetState(ctx, State{Online: online, Kind: "probe"})
}
