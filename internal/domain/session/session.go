// Package session models one Streamable HTTP client session: its id,
// activity timestamp, event-id counter, and bounded replay buffer, per
// spec §3 and §4.5.
//
// Grounded on internal/domain/session/session.go from the teacher repo
// (expiry check, Refresh-on-access pattern) and session/store.go (mutex-
// guarded in-memory map), retargeted from authenticated-identity sessions
// to anonymous HTTP transport sessions keyed by Mcp-Session-Id.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultIdleTimeout is how long a session may sit without activity before
// the reaper drops it, per spec §4.5/§5.
const DefaultIdleTimeout = time.Hour

// EventKind is the kind tag carried by a BufferedEvent, per spec §3.
type EventKind string

const (
	KindSession      EventKind = "session"
	KindData         EventKind = "data"
	KindError        EventKind = "error"
	KindNotification EventKind = "notification"
	KindRequest      EventKind = "request"
)

// maxReplayBuffer is the bound on buffered events per session, per spec §5.
const maxReplayBuffer = 100

// eventChannelCapacity is the suggested bound on a session's pending event
// channel, per spec §5.
const eventChannelCapacity = 64

// BufferedEvent is one emitted SSE event, replayable by ID, per spec §3.
type BufferedEvent struct {
	ID      uint64
	Kind    EventKind
	Payload string
}

// Session is one live (or recently live) Streamable HTTP session.
type Session struct {
	ID string

	mu           sync.Mutex
	lastActivity time.Time
	nextEventID  uint64
	buffer       []BufferedEvent
	eventTx      chan BufferedEvent
	serverName   string
}

// New creates a Session with a fresh random ID.
func New() *Session {
	return &Session{
		ID:           uuid.NewString(),
		lastActivity: time.Now(),
	}
}

// Touch records activity, resetting the idle timer.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// IdleSince reports how long the session has been without activity.
func (s *Session) IdleSince() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

// BindServer records the backend this session's first message revealed,
// per spec §3's HttpSession field "optional server_name binding once the
// session's first message reveals it." Only the first call takes effect;
// later calls (e.g. a second POST naming a different backend) are no-ops,
// matching "once" in the spec text.
func (s *Session) BindServer(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.serverName == "" {
		s.serverName = name
	}
}

// ServerName returns the backend bound by BindServer, or "" if the
// session has not yet seen a message naming one.
func (s *Session) ServerName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverName
}

// Attach installs a new event sender, replacing and closing any previous
// one, per spec §4.5 ("attach its sender as the session's event_tx,
// replacing any previous"). It returns the channel for the caller to range
// over.
func (s *Session) Attach() <-chan BufferedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eventTx != nil {
		close(s.eventTx)
	}
	ch := make(chan BufferedEvent, eventChannelCapacity)
	s.eventTx = ch
	return ch
}

// Detach clears the event sender if it is still ch, so a stale sender from
// a replaced connection cannot be closed twice.
func (s *Session) Detach(ch <-chan BufferedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eventTx != nil && (<-chan BufferedEvent)(s.eventTx) == ch {
		close(s.eventTx)
		s.eventTx = nil
	}
}

// Emit assigns the next event ID, appends to the replay buffer (trimming
// to the most recent maxReplayBuffer), and — if a receiver is currently
// attached — pushes the event onto it with drop-oldest backpressure, per
// spec §4.5/§5. onTrim and onDrop, when non-nil, are called for metrics.
func (s *Session) Emit(kind EventKind, payload string, onTrim, onDrop func()) BufferedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEventID++
	ev := BufferedEvent{ID: s.nextEventID, Kind: kind, Payload: payload}

	s.buffer = append(s.buffer, ev)
	if len(s.buffer) > maxReplayBuffer {
		s.buffer = s.buffer[len(s.buffer)-maxReplayBuffer:]
		if onTrim != nil {
			onTrim()
		}
	}

	if s.eventTx != nil {
		select {
		case s.eventTx <- ev:
		default:
			// Bounded channel full: drop the oldest pending event to make
			// room, per spec §5's drop-oldest backpressure policy.
			select {
			case <-s.eventTx:
				if onDrop != nil {
					onDrop()
				}
			default:
			}
			select {
			case s.eventTx <- ev:
			default:
			}
		}
	}
	return ev
}

// ReplaySince returns every buffered event with ID strictly greater than
// lastEventID, in order, per spec §4.5's Last-Event-ID replay.
func (s *Session) ReplaySince(lastEventID uint64) []BufferedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []BufferedEvent
	for _, ev := range s.buffer {
		if ev.ID > lastEventID {
			out = append(out, ev)
		}
	}
	return out
}

// Close closes the live event sender, if any.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eventTx != nil {
		close(s.eventTx)
		s.eventTx = nil
	}
}
