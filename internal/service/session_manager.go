package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-code-review/internal/models"
	"github.com/noah-isme/gema-code-review/internal/observability"
	"github.com/noah-isme/gema-code-review/internal/repository"
)

const mirrorTimeout = 2 * time.Second

// ErrSessionNotFound indicates the session expired or never existed.
var ErrSessionNotFound = errors.New("session not found")

// SessionService hands out the controller owning a session's state.
type SessionService interface {
	Create(ctx context.Context) (*SubmissionController, error)
	Get(ctx context.Context, sessionID string) (*SubmissionController, error)
	TTL() time.Duration
}

// SessionConfig describes session lifetime and per-controller knobs.
type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	Controller    ControllerConfig
}

type liveSession struct {
	controller *SubmissionController
	lastSeen   time.Time
	version    uint64
}

// SessionManager keeps one controller per session, mirrors snapshots to the session
// repository and publishes terminal transitions.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*liveSession
	reviewer Reviewer
	repo     repository.SessionRepository
	events   EventPublisher
	cfg      SessionConfig
	logger   zerolog.Logger
	now      func() time.Time
}

// NewSessionManager constructs a session manager. repo and events may be nil.
func NewSessionManager(reviewer Reviewer, repo repository.SessionRepository, events EventPublisher, cfg SessionConfig, logger zerolog.Logger) *SessionManager {
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	return &SessionManager{
		sessions: make(map[string]*liveSession),
		reviewer: reviewer,
		repo:     repo,
		events:   events,
		cfg:      cfg,
		logger:   logger.With().Str("component", "session_manager").Logger(),
		now:      time.Now,
	}
}

// TTL returns the idle lifetime of a session.
func (m *SessionManager) TTL() time.Duration {
	return m.cfg.TTL
}

// Create starts a new session with default input.
func (m *SessionManager) Create(ctx context.Context) (*SubmissionController, error) {
	sessionID := uuid.NewString()
	controller := NewSubmissionController(sessionID, m.reviewer, m.controllerConfig(sessionID), m.logger)

	m.track(sessionID, controller)
	m.mirror(ctx, controller.Snapshot())

	m.logger.Info().Str("session_id", sessionID).Msg("session created")
	return controller, nil
}

// Get returns the live controller for sessionID, rehydrating it from the repository when
// this process does not hold it.
func (m *SessionManager) Get(ctx context.Context, sessionID string) (*SubmissionController, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	m.mu.Lock()
	if live, ok := m.sessions[sessionID]; ok {
		live.lastSeen = m.now()
		m.mu.Unlock()
		return live.controller, nil
	}
	m.mu.Unlock()

	if m.repo == nil {
		return nil, ErrSessionNotFound
	}

	snapshot, found, err := m.repo.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrSessionNotFound
	}
	snapshot.SessionID = sessionID

	restored := restoreController(snapshot, m.reviewer, m.controllerConfig(sessionID), m.logger)

	m.mu.Lock()
	if live, ok := m.sessions[sessionID]; ok {
		live.lastSeen = m.now()
		m.mu.Unlock()
		return live.controller, nil
	}
	m.sessions[sessionID] = &liveSession{controller: restored, lastSeen: m.now(), version: snapshot.Version}
	observability.ActiveSessions().Inc()
	m.mu.Unlock()

	m.logger.Info().Str("session_id", sessionID).Msg("session restored from mirror")
	return restored, nil
}

// Active returns the number of live sessions.
func (m *SessionManager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than the TTL. Sessions with an attempt in flight
// are kept until it completes.
func (m *SessionManager) Sweep(ctx context.Context) int {
	cutoff := m.now().Add(-m.cfg.TTL)

	m.mu.Lock()
	evicted := make([]string, 0)
	for id, live := range m.sessions {
		if live.lastSeen.After(cutoff) {
			continue
		}
		if live.controller.Snapshot().Submission.Phase.InFlight() {
			continue
		}
		delete(m.sessions, id)
		observability.ActiveSessions().Dec()
		evicted = append(evicted, id)
	}
	m.mu.Unlock()

	for _, id := range evicted {
		if m.repo != nil {
			if err := m.repo.Delete(ctx, id); err != nil {
				m.logger.Warn().Err(err).Str("session_id", id).Msg("failed to delete session mirror")
			}
		}
	}

	if len(evicted) > 0 {
		m.logger.Info().Int("evicted", len(evicted)).Msg("expired sessions evicted")
	}
	return len(evicted)
}

// Start runs the eviction loop until ctx is cancelled.
func (m *SessionManager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep(ctx)
			}
		}
	}()
}

func (m *SessionManager) track(sessionID string, controller *SubmissionController) {
	m.mu.Lock()
	m.sessions[sessionID] = &liveSession{controller: controller, lastSeen: m.now()}
	m.mu.Unlock()
	observability.ActiveSessions().Inc()
}

func (m *SessionManager) controllerConfig(sessionID string) ControllerConfig {
	cfg := m.cfg.Controller
	cfg.OnTransition = func(snapshot models.SessionSnapshot) {
		if !m.advance(sessionID, snapshot.Version) {
			m.logger.Debug().Str("session_id", sessionID).Uint64("version", snapshot.Version).Msg("skipping stale snapshot")
			return
		}
		m.mirror(context.Background(), snapshot)
		if snapshot.Submission.Phase.Terminal() {
			m.publish(snapshot)
		}
	}
	return cfg
}

// advance records activity for a live session and reports whether version is newer than
// the last snapshot it accepted. Evicted sessions accept nothing.
func (m *SessionManager) advance(sessionID string, version uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	live, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	live.lastSeen = m.now()
	if version <= live.version {
		return false
	}
	live.version = version
	return true
}

func (m *SessionManager) mirror(ctx context.Context, snapshot models.SessionSnapshot) {
	if m.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()

	if err := m.repo.Save(ctx, snapshot); err != nil {
		m.logger.Warn().Err(err).Str("session_id", snapshot.SessionID).Msg("failed to mirror session snapshot")
	}
}

func (m *SessionManager) publish(snapshot models.SessionSnapshot) {
	if m.events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	event := NewReviewEvent(snapshot)
	if err := m.events.Publish(ctx, event); err != nil {
		m.logger.Warn().Err(err).Str("session_id", snapshot.SessionID).Msg("failed to publish review event")
		return
	}
	observability.ReviewEventsPublished().WithLabelValues(string(event.Phase)).Inc()
}
