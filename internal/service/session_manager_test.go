package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-code-review/internal/models"
	"github.com/noah-isme/gema-code-review/internal/repository"
)

type publisherStub struct {
	mu     sync.Mutex
	events []ReviewEvent
	err    error
}

func (p *publisherStub) Publish(_ context.Context, event ReviewEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *publisherStub) published() []ReviewEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ReviewEvent(nil), p.events...)
}

func newRedisRepository(t *testing.T) (repository.SessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return repository.NewSessionRepository(client, "test", time.Hour), mr
}

func TestSessionManagerCreateAndGet(t *testing.T) {
	manager := NewSessionManager(&reviewerStub{}, nil, nil, SessionConfig{}, zerolog.Nop())

	controller, err := manager.Create(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, controller.SessionID())

	found, err := manager.Get(context.Background(), controller.SessionID())
	require.NoError(t, err)
	require.Same(t, controller, found)
	require.Equal(t, 1, manager.Active())

	_, err = manager.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionManagerMirrorsAndRestores(t *testing.T) {
	repo, _ := newRedisRepository(t)
	reviewer := &reviewerStub{result: scenarioResult()}

	first := NewSessionManager(reviewer, repo, nil, SessionConfig{}, zerolog.Nop())
	controller, err := first.Create(context.Background())
	require.NoError(t, err)

	controller.SetCode("print(1)")
	controller.SetLanguage(models.LanguageJSX)
	_, err = controller.Submit(context.Background())
	require.NoError(t, err)

	second := NewSessionManager(reviewer, repo, nil, SessionConfig{}, zerolog.Nop())
	restored, err := second.Get(context.Background(), controller.SessionID())
	require.NoError(t, err)

	snapshot := restored.Snapshot()
	require.Equal(t, "print(1)", snapshot.Input.Code)
	require.Equal(t, models.LanguageJSX, snapshot.Input.Language)
	require.Equal(t, models.PhaseSucceeded, snapshot.Submission.Phase)
	require.Equal(t, "style", snapshot.Submission.Result.Breakdown[0].Category)
}

func TestSessionManagerPublishesTerminalTransitions(t *testing.T) {
	publisher := &publisherStub{}
	manager := NewSessionManager(&reviewerStub{result: scenarioResult()}, nil, publisher, SessionConfig{}, zerolog.Nop())

	controller, err := manager.Create(context.Background())
	require.NoError(t, err)

	_, err = controller.Submit(context.Background())
	require.NoError(t, err)

	controller.SetCode("print(1)")
	_, err = controller.Submit(context.Background())
	require.NoError(t, err)

	events := publisher.published()
	require.Len(t, events, 2)
	require.Equal(t, models.PhaseFailed, events[0].Phase)
	require.Equal(t, models.ErrorKindEmptyInput, events[0].ErrorKind)
	require.Nil(t, events[0].OverallScore)
	require.Equal(t, models.PhaseSucceeded, events[1].Phase)
	require.NotNil(t, events[1].OverallScore)
	require.Equal(t, float64(85), *events[1].OverallScore)
	require.Equal(t, 2, events[1].Attempt)
}

func TestSessionManagerPublishFailureDoesNotAffectState(t *testing.T) {
	publisher := &publisherStub{err: errors.New("broker down")}
	manager := NewSessionManager(&reviewerStub{result: scenarioResult()}, nil, publisher, SessionConfig{}, zerolog.Nop())

	controller, err := manager.Create(context.Background())
	require.NoError(t, err)
	controller.SetCode("print(1)")

	snapshot, err := controller.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.PhaseSucceeded, snapshot.Submission.Phase)
}

func TestSessionManagerSweepEvictsIdleSessions(t *testing.T) {
	repo, mr := newRedisRepository(t)
	manager := NewSessionManager(&reviewerStub{}, repo, nil, SessionConfig{TTL: time.Minute}, zerolog.Nop())

	current := time.Now()
	manager.now = func() time.Time { return current }

	controller, err := manager.Create(context.Background())
	require.NoError(t, err)
	require.True(t, mr.Exists("test:session:"+controller.SessionID()))

	current = current.Add(30 * time.Second)
	require.Zero(t, manager.Sweep(context.Background()))

	current = current.Add(2 * time.Minute)
	require.Equal(t, 1, manager.Sweep(context.Background()))
	require.Zero(t, manager.Active())
	require.False(t, mr.Exists("test:session:"+controller.SessionID()))

	_, err = manager.Get(context.Background(), controller.SessionID())
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionManagerSweepKeepsInFlightSessions(t *testing.T) {
	reviewer := &reviewerStub{block: make(chan struct{}), started: make(chan struct{}, 1)}
	defer close(reviewer.block)

	manager := NewSessionManager(reviewer, nil, nil, SessionConfig{TTL: time.Minute}, zerolog.Nop())
	current := time.Now()
	manager.now = func() time.Time { return current }

	controller, err := manager.Create(context.Background())
	require.NoError(t, err)
	controller.SetCode("print(1)")
	_, err = controller.SubmitAsync(context.Background())
	require.NoError(t, err)
	<-reviewer.started

	current = current.Add(time.Hour)
	require.Zero(t, manager.Sweep(context.Background()))
	require.Equal(t, 1, manager.Active())
}

func TestReviewEventSubject(t *testing.T) {
	require.Equal(t, "gema.codereview.reviews", ReviewEventSubject("gema:codereview"))
}

func TestNewNATSEventPublisherRequiresConnection(t *testing.T) {
	_, err := NewNATSEventPublisher(nil, "gema:codereview")
	require.Error(t, err)
}

func TestSessionManagerMirrorIgnoresStaleSnapshots(t *testing.T) {
	repo, _ := newRedisRepository(t)
	manager := NewSessionManager(&reviewerStub{result: scenarioResult()}, repo, nil, SessionConfig{}, zerolog.Nop())

	controller, err := manager.Create(context.Background())
	require.NoError(t, err)

	controller.SetCode("print(1)")
	stale := controller.Snapshot()
	final, err := controller.Submit(context.Background())
	require.NoError(t, err)

	stale.Submission.Phase = models.PhaseSubmitting
	manager.controllerConfig(controller.SessionID()).OnTransition(stale)

	mirrored, found, err := repo.Load(context.Background(), controller.SessionID())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, models.PhaseSucceeded, mirrored.Submission.Phase)
	require.Equal(t, final.Version, mirrored.Version)

	restored, err := NewSessionManager(&reviewerStub{}, repo, nil, SessionConfig{}, zerolog.Nop()).Get(context.Background(), controller.SessionID())
	require.NoError(t, err)
	require.Equal(t, models.PhaseSucceeded, restored.Snapshot().Submission.Phase)
	require.NotNil(t, restored.Snapshot().Submission.Result)
}
