// Package supervisor owns the mapping from backend name to BackendProcess
// handle and enforces start validation, crash classification, restart
// limits, and health ticks, per spec §4.2.
//
// Grounded on internal/service/upstream_manager.go from the teacher repo
// (connection map, per-connection mutex, health-monitor goroutine), adapted
// from the teacher's unbounded exponential-backoff reconnect policy to the
// spec's bounded "restart_count > 3 => permanent removal" policy and its
// "immediate crash is never retried" classification.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mcphub/mcphubd/internal/domain/backend"
	"github.com/mcphub/mcphubd/internal/jsonrpc"
	"github.com/mcphub/mcphubd/internal/process"
)

const (
	// DefaultRequestTimeout is the Router.route deadline per spec §4.2/§5.
	DefaultRequestTimeout = 30 * time.Second
	// DefaultHealthTickInterval is how often the supervisor polls backend
	// liveness, per spec §4.2.
	DefaultHealthTickInterval = 30 * time.Second
	// immediateCrashThreshold classifies an exit this soon after start as a
	// configuration error rather than a transient crash, per spec §4.2.
	immediateCrashThreshold = 5 * time.Second
	// maxRestarts is the restart_count ceiling; exceeding it is
	// restart_exhausted, per spec §3/§4.2/§8.
	maxRestarts = 3
	// stopGrace is how long stop_all waits for SIGTERM before SIGKILL.
	stopGrace = 3 * time.Second
)

// Metrics receives supervisor lifecycle events. Implementations must be
// safe for concurrent use. A nil Metrics is valid; every call site here
// guards against it.
type Metrics interface {
	BackendStarted(name string)
	BackendImmediateCrash(name string)
	BackendRestarted(name string)
	BackendRestartExhausted(name string)
	BackendCrashed(name string)
	RouteDuration(name, outcome string, d time.Duration)
}

// connection is the supervisor's private bookkeeping for one managed
// backend. All mutation of proc/restartCount/removed happens under mu,
// which is also the per-backend serialization lock spec §4.2/§5 requires
// around "write request line, read one response line."
type connection struct {
	desc         *backend.Descriptor
	mu           sync.Mutex
	proc         *process.Process
	restartCount int
	removed      bool
}

// Supervisor owns every managed backend, per spec §4.2.
type Supervisor struct {
	logger         *slog.Logger
	metrics        Metrics
	requestTimeout time.Duration
	healthInterval time.Duration

	mu       sync.RWMutex
	backends map[string]*connection

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Option configures a Supervisor at construction time.
type Option func(*Supervisor)

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.requestTimeout = d }
}

// WithHealthInterval overrides DefaultHealthTickInterval.
func WithHealthInterval(d time.Duration) Option {
	return func(s *Supervisor) { s.healthInterval = d }
}

// WithMetrics attaches a Metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// New creates a Supervisor with no backends started yet.
func New(logger *slog.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		logger:         logger,
		requestTimeout: DefaultRequestTimeout,
		healthInterval: DefaultHealthTickInterval,
		backends:       make(map[string]*connection),
		stopCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartAll starts every descriptor. A descriptor whose start fails is
// logged and dropped; it does not prevent the others from starting,
// per spec §4.2.
func (s *Supervisor) StartAll(ctx context.Context, descriptors []*backend.Descriptor) {
	var wg sync.WaitGroup
	for _, d := range descriptors {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.startOne(ctx, d); err != nil {
				s.logger.Error("failed to start backend", "backend", d.Name, "error", err)
			}
		}()
	}
	wg.Wait()
}

// startOne starts a single descriptor's process and registers it.
func (s *Supervisor) startOne(ctx context.Context, d *backend.Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	proc, err := process.Start(ctx, d, s.logger)
	if err != nil {
		if _, ok := err.(*process.ImmediateCrashError); ok {
			s.metricsOrNoop().BackendImmediateCrash(d.Name)
		}
		return err
	}

	conn := &connection{desc: d, proc: proc}
	s.mu.Lock()
	s.backends[d.Name] = conn
	s.mu.Unlock()

	s.metricsOrNoop().BackendStarted(d.Name)
	s.logger.Info("backend started", "backend", d.Name, "command", d.Command)
	return nil
}

// lookup returns the connection for name, if managed.
func (s *Supervisor) lookup(name string) (*connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.backends[name]
	return conn, ok
}

// Route writes frame to the named backend's stdin and returns the single
// reply line read from its stdout, per spec §4.2 "route". All frame I/O to
// one backend is serialized through conn.mu to preserve JSON-RPC
// request/response ordering, per spec §5.
func (s *Supervisor) Route(ctx context.Context, name string, frame []byte) ([]byte, *jsonrpc.RouterError) {
	conn, ok := s.lookup(name)
	if !ok {
		return nil, jsonrpc.NewRouterError(jsonrpc.KindServerNotFound, name, "")
	}

	start := time.Now()
	conn.mu.Lock()
	defer conn.mu.Unlock()

	if conn.removed {
		s.metricsOrNoop().RouteDuration(name, "server_not_found", time.Since(start))
		return nil, jsonrpc.NewRouterError(jsonrpc.KindServerNotFound, name, "")
	}

	type result struct {
		reply []byte
		err   error
	}
	resultCh := make(chan result, 1)
	proc := conn.proc
	go func() {
		if err := proc.WriteFrame(frame); err != nil {
			resultCh <- result{nil, err}
			return
		}
		reply, err := proc.ReadFrame()
		resultCh <- result{reply, err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			s.removeConnLocked(name, conn)
			s.metricsOrNoop().BackendCrashed(name)
			s.metricsOrNoop().RouteDuration(name, "server_crash", time.Since(start))
			return nil, jsonrpc.NewRouterError(jsonrpc.KindServerCrash, name, res.err.Error())
		}
		s.metricsOrNoop().RouteDuration(name, "ok", time.Since(start))
		return res.reply, nil

	case <-time.After(s.requestTimeout):
		// Tightened per spec §9's own suggestion: a timed-out reply could
		// otherwise be misattributed to the next request on the same pipe.
		// Force removal (which kills the process, unblocking the orphaned
		// read above) so the stale reply can never surface.
		s.removeConnLocked(name, conn)
		s.metricsOrNoop().RouteDuration(name, "timeout", time.Since(start))
		return nil, jsonrpc.NewRouterError(jsonrpc.KindTimeout, name, "")

	case <-ctx.Done():
		s.removeConnLocked(name, conn)
		s.metricsOrNoop().RouteDuration(name, "timeout", time.Since(start))
		return nil, jsonrpc.NewRouterError(jsonrpc.KindTimeout, name, ctx.Err().Error())
	}
}

// Notify writes frame to the named backend's stdin without waiting for a
// reply. It shares conn.mu with Route so a notification's write cannot
// interleave with an in-flight request's write+read on the same pipe.
//
// The spec's route() contract (§4.2) always reads one reply line, but a
// JSON-RPC notification never produces one (§6 "notifications receive no
// reply"); calling Route for a notification would therefore block every
// notification for the full request timeout and wrongly classify the
// backend as server_crash. Dispatch (internal/router) routes notification
// frames through Notify instead.
func (s *Supervisor) Notify(ctx context.Context, name string, frame []byte) *jsonrpc.RouterError {
	conn, ok := s.lookup(name)
	if !ok {
		return jsonrpc.NewRouterError(jsonrpc.KindServerNotFound, name, "")
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.removed {
		return jsonrpc.NewRouterError(jsonrpc.KindServerNotFound, name, "")
	}

	if err := conn.proc.WriteFrame(frame); err != nil {
		s.removeConnLocked(name, conn)
		s.metricsOrNoop().BackendCrashed(name)
		return jsonrpc.NewRouterError(jsonrpc.KindServerCrash, name, err.Error())
	}
	return nil
}

// removeConnLocked kills the backend process and deletes it from the
// managed map. Caller must already hold conn.mu.
func (s *Supervisor) removeConnLocked(name string, conn *connection) {
	if conn.removed {
		return
	}
	conn.removed = true
	if err := conn.proc.Kill(); err != nil {
		s.logger.Warn("failed to kill backend", "backend", name, "error", err)
	}
	s.mu.Lock()
	if s.backends[name] == conn {
		delete(s.backends, name)
	}
	s.mu.Unlock()
}

// metricsOrNoop returns s.metrics or a no-op sink, so call sites never need
// a nil check.
func (s *Supervisor) metricsOrNoop() Metrics {
	if s.metrics == nil {
		return noopMetrics{}
	}
	return s.metrics
}

// ConnectedBackends returns the names of all currently managed backends.
func (s *Supervisor) ConnectedBackends() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.backends))
	for name := range s.backends {
		names = append(names, name)
	}
	return names
}

// AnyConnected reports whether at least one backend is currently managed,
// used by the HTTP health endpoint.
func (s *Supervisor) AnyConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.backends) > 0
}

// StopAll sends a graceful stop signal to every managed backend, waits up
// to stopGrace for exit, then force-kills stragglers, per spec §4.2.
func (s *Supervisor) StopAll() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()

	s.mu.Lock()
	conns := make(map[string]*connection, len(s.backends))
	for name, conn := range s.backends {
		conns[name] = conn
	}
	s.backends = make(map[string]*connection)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for name, conn := range conns {
		name, conn := name, conn
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.stopOne(name, conn)
		}()
	}
	wg.Wait()
}

func (s *Supervisor) stopOne(name string, conn *connection) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.removed {
		return
	}
	conn.removed = true

	if err := conn.proc.Terminate(); err != nil {
		s.logger.Warn("failed to send graceful stop", "backend", name, "error", err)
	}

	select {
	case <-conn.proc.Done():
	case <-time.After(stopGrace):
		if err := conn.proc.Kill(); err != nil {
			s.logger.Warn("failed to force-kill backend", "backend", name, "error", err)
		}
	}
}

// StartHealthLoop runs the periodic health tick in the background until ctx
// is canceled or StopAll is called. It must be called at most once.
func (s *Supervisor) StartHealthLoop(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.healthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.healthTick(ctx)
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			}
		}
	}()
}

// healthTick classifies every managed backend's liveness, per spec §4.2:
// an exit within immediateCrashThreshold of start is a permanent,
// never-retried removal; a later exit is a transient crash that respawns
// up to maxRestarts times before becoming permanent (restart_exhausted); a
// backend still running has its restart_count reset to 0.
func (s *Supervisor) healthTick(ctx context.Context) {
	s.mu.RLock()
	snapshot := make(map[string]*connection, len(s.backends))
	for name, conn := range s.backends {
		snapshot[name] = conn
	}
	s.mu.RUnlock()

	for name, conn := range snapshot {
		s.checkOne(ctx, name, conn)
	}
}

func (s *Supervisor) checkOne(ctx context.Context, name string, conn *connection) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.removed {
		return
	}

	exited, exitErr := conn.proc.TryExitStatus()
	if !exited {
		conn.restartCount = 0
		return
	}

	uptime := time.Since(conn.proc.StartTime)
	if uptime < immediateCrashThreshold {
		s.logger.Error("backend crashed immediately, removing permanently",
			"backend", name, "error", exitErr)
		conn.removed = true
		s.deleteFromMap(name, conn)
		s.metricsOrNoop().BackendImmediateCrash(name)
		return
	}

	conn.restartCount++
	if conn.restartCount > maxRestarts {
		s.logger.Error("backend exhausted restart budget, removing permanently",
			"backend", name, "restart_count", conn.restartCount)
		conn.removed = true
		s.deleteFromMap(name, conn)
		s.metricsOrNoop().BackendRestartExhausted(name)
		return
	}

	s.logger.Warn("backend crashed, respawning",
		"backend", name, "restart_count", conn.restartCount, "error", exitErr)
	newProc, err := process.Start(ctx, conn.desc, s.logger)
	if err != nil {
		if _, ok := err.(*process.ImmediateCrashError); ok {
			s.logger.Error("backend crashed immediately on respawn, removing permanently",
				"backend", name, "error", err)
			conn.removed = true
			s.deleteFromMap(name, conn)
			s.metricsOrNoop().BackendImmediateCrash(name)
			return
		}
		s.logger.Error("respawn failed, will retry on next health tick",
			"backend", name, "error", err)
		return
	}
	conn.proc = newProc
	s.metricsOrNoop().BackendRestarted(name)
}

// deleteFromMap removes conn from the managed map if it is still the
// current entry for name. Caller must hold conn.mu.
func (s *Supervisor) deleteFromMap(name string, conn *connection) {
	s.mu.Lock()
	if s.backends[name] == conn {
		delete(s.backends, name)
	}
	s.mu.Unlock()
}

// noopMetrics discards every event; used when no Metrics sink is attached.
type noopMetrics struct{}

func (noopMetrics) BackendStarted(string)                       {}
func (noopMetrics) BackendImmediateCrash(string)                {}
func (noopMetrics) BackendRestarted(string)                     {}
func (noopMetrics) BackendRestartExhausted(string)              {}
func (noopMetrics) BackendCrashed(string)                       {}
func (noopMetrics) RouteDuration(string, string, time.Duration) {}
