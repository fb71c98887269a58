// ABOUTME: Manager owning the capture source and the active session
// ABOUTME: Swaps sessions atomically on reconfiguration and surfaces device errors
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
	"github.com/Resonate-Protocol/resonate-captions/pkg/audio/capture"
)

// MaxReconfigurations bounds how often one Run rebuilds its session
const MaxReconfigurations = 4

// Snapshot is the manager's view for status displays
type Snapshot struct {
	Active   bool
	Session  Stats
	Sessions int    // sessions started by Run
	Orphaned uint64 // frames delivered while no session was active
}

// Manager runs sessions over one capture source
type Manager struct {
	source      capture.Source
	params      capture.OpenParams
	cfg         Config
	newConsumer ConsumerFactory
	onSession   func(*Session)

	active   atomic.Pointer[Session]
	orphaned atomic.Uint64
	errCh    chan error

	mu       sync.Mutex
	last     Stats
	sessions int
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithSessionHook is called whenever a new session becomes active
func WithSessionHook(fn func(*Session)) ManagerOption {
	return func(m *Manager) {
		m.onSession = fn
	}
}

// NewManager creates a manager for source
func NewManager(source capture.Source, params capture.OpenParams, cfg Config, newConsumer ConsumerFactory, opts ...ManagerOption) *Manager {
	m := &Manager{
		source:      source,
		params:      params,
		cfg:         cfg,
		newConsumer: newConsumer,
		errCh:       make(chan error, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run opens the source and streams until ctx is cancelled or the source
// ends. A DeviceError is returned as-is; a finite source running out is
// a clean exit.
func (m *Manager) Run(ctx context.Context) error {
	m.source.OnFrames(m.handleFrames)
	m.source.OnError(m.handleError)

	device, err := m.source.Open(ctx, m.params)
	if err != nil {
		return fmt.Errorf("open capture source: %w", err)
	}
	defer m.source.Close()

	log.Printf("Capture device: %s", device)

	forceStreaming := false
	for attempt := 0; ; attempt++ {
		if attempt > MaxReconfigurations {
			return fmt.Errorf("giving up after %d reconfigurations of %s", MaxReconfigurations, device.Name)
		}

		s, err := m.startSession(ctx, device, forceStreaming)
		if err != nil {
			return err
		}

		reason, done, err := m.wait(ctx, s)
		if done {
			return err
		}

		log.Printf("Reconfiguring capture: %s", reason.Detail)
		if reason.SampleRate != 0 {
			device.SampleRate = reason.SampleRate
		}
		forceStreaming = forceStreaming || reason.Streaming
	}
}

// startSession builds a session for device, publishes it and starts the source
func (m *Manager) startSession(ctx context.Context, device capture.DeviceInfo, forceStreaming bool) (*Session, error) {
	s, err := New(device, m.cfg, m.newConsumer, forceStreaming)
	if err != nil {
		return nil, err
	}

	s.Start(ctx)
	m.active.Store(s)

	m.mu.Lock()
	m.sessions++
	m.mu.Unlock()

	if m.onSession != nil {
		m.onSession(s)
	}

	if err := m.source.Start(s.Config().BlockSizeIn); err != nil {
		m.active.Store(nil)
		s.Close()
		return nil, fmt.Errorf("start capture: %w", err)
	}
	return s, nil
}

// wait blocks until the session must end. done reports whether Run should
// return err instead of building a new session.
func (m *Manager) wait(ctx context.Context, s *Session) (reason Reason, done bool, err error) {
	select {
	case <-ctx.Done():
		return Reason{}, true, m.stop(s)

	case err := <-m.errCh:
		return Reason{}, true, m.finish(s, err)

	case reason := <-s.Reconfigure():
		// A source that ended while the request was in flight has nothing left to reconfigure
		select {
		case err := <-m.errCh:
			return Reason{}, true, m.finish(s, err)
		default:
		}
		if err := m.stop(s); err != nil {
			log.Printf("Closing session %s: %v", s.ID(), err)
		}
		return reason, false, nil
	}
}

// finish retires s after an asynchronous source error. End of stream is a clean exit.
func (m *Manager) finish(s *Session, err error) error {
	closeErr := m.stop(s)
	if errors.Is(err, capture.ErrEndOfStream) {
		log.Printf("Capture source ended")
		return closeErr
	}
	var devErr *capture.DeviceError
	if !errors.As(err, &devErr) {
		err = &capture.DeviceError{Device: s.Device().Name, Op: "capture", Err: err}
	}
	return err
}

// stop retires s: callbacks stop reaching it, the source halts, then
// everything buffered is flushed to the consumer
func (m *Manager) stop(s *Session) error {
	m.active.Store(nil)

	if err := m.source.Stop(); err != nil {
		log.Printf("Stopping capture: %v", err)
	}

	err := s.Close()

	m.mu.Lock()
	m.last = s.Stats()
	m.mu.Unlock()

	return err
}

// handleFrames runs on the capture thread
func (m *Manager) handleFrames(batch audio.FrameBatch) {
	s := m.active.Load()
	if s == nil {
		m.orphaned.Add(uint64(batch.Frames))
		return
	}
	s.HandleFrames(batch)
}

// handleError keeps the first asynchronous source error
func (m *Manager) handleError(err error) {
	select {
	case m.errCh <- err:
	default:
	}
}

// Active returns the running session, or nil between sessions
func (m *Manager) Active() *Session {
	return m.active.Load()
}

// Snapshot returns counters for the active or most recent session
func (m *Manager) Snapshot() Snapshot {
	snap := Snapshot{Orphaned: m.orphaned.Load()}

	m.mu.Lock()
	snap.Sessions = m.sessions
	snap.Session = m.last
	m.mu.Unlock()

	if s := m.active.Load(); s != nil {
		snap.Active = true
		snap.Session = s.Stats()
	}
	return snap
}
