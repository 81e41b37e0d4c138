package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-code-review/internal/models"
	"github.com/noah-isme/gema-code-review/internal/observability"
	"github.com/noah-isme/gema-code-review/internal/validation"
	"github.com/noah-isme/gema-code-review/pkg/reviewapi"
)

// GenericFailureMessage is shown when the service gave no usable detail.
const GenericFailureMessage = "Failed to analyze code. Please try again."

// ErrSubmissionInFlight indicates submit was triggered while an attempt is running.
var ErrSubmissionInFlight = errors.New("submission already in progress")

// Reviewer dispatches analysis requests to the review service.
type Reviewer interface {
	AnalyzeCode(ctx context.Context, req reviewapi.CodeReviewRequest) (reviewapi.AnalysisResult, error)
	UploadCode(ctx context.Context, file reviewapi.UploadFile) (reviewapi.AnalysisResult, error)
}

// ControllerConfig describes submission knobs.
type ControllerConfig struct {
	// RequestTimeout bounds the submitting phase. Zero leaves it unbounded.
	RequestTimeout time.Duration
	// MaxFileBytes bounds staged files. Zero disables the size check.
	MaxFileBytes int64
	// OnTransition is called with a snapshot after every state change, outside the lock.
	OnTransition func(models.SessionSnapshot)
}

// SubmissionController owns one session's input and submission state.
type SubmissionController struct {
	// transitionMu serialises state changes with their delivery so observers see
	// snapshots in version order. It is taken before mu.
	transitionMu sync.Mutex
	mu           sync.Mutex
	version      uint64
	sessionID    string
	input        models.InputState
	state        models.SubmissionState
	reviewer     Reviewer
	cfg          ControllerConfig
	logger       zerolog.Logger
	tracer       trace.Tracer
	subscribers  map[chan models.SessionSnapshot]struct{}
	now          func() time.Time
}

// NewSubmissionController constructs a controller with session defaults.
func NewSubmissionController(sessionID string, reviewer Reviewer, cfg ControllerConfig, logger zerolog.Logger) *SubmissionController {
	return &SubmissionController{
		sessionID:   sessionID,
		input:       models.NewInputState(),
		state:       models.NewSubmissionState(),
		reviewer:    reviewer,
		cfg:         cfg,
		logger:      logger.With().Str("component", "submission_controller").Str("session_id", sessionID).Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-code-review/internal/service/submission"),
		subscribers: make(map[chan models.SessionSnapshot]struct{}),
		now:         time.Now,
	}
}

// restoreController rebuilds a controller from a mirrored snapshot. An attempt that was
// still running when the snapshot was taken cannot be resumed and comes back idle.
func restoreController(snapshot models.SessionSnapshot, reviewer Reviewer, cfg ControllerConfig, logger zerolog.Logger) *SubmissionController {
	controller := NewSubmissionController(snapshot.SessionID, reviewer, cfg, logger)
	controller.input = snapshot.Input.Clone()
	if !controller.input.Language.Valid() {
		controller.input.Language = models.LanguagePython
	}
	if controller.input.Mode == "" {
		controller.input.Mode = controller.input.ResolvedMode()
	}

	controller.version = snapshot.Version
	controller.state = snapshot.Submission
	if controller.state.Phase == "" || controller.state.Phase.InFlight() {
		controller.state = models.SubmissionState{Phase: models.PhaseIdle, Attempt: snapshot.Submission.Attempt}
	}

	return controller
}

// SessionID returns the owning session identifier.
func (c *SubmissionController) SessionID() string {
	return c.sessionID
}

// Snapshot returns a copy of the current state.
func (c *SubmissionController) Snapshot() models.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SetCode replaces the pasted code.
func (c *SubmissionController) SetCode(text string) models.SessionSnapshot {
	return c.mutateInput(func(input *models.InputState) {
		input.SetCode(text)
	})
}

// SetLanguage replaces the language tag.
func (c *SubmissionController) SetLanguage(tag models.Language) models.SessionSnapshot {
	return c.mutateInput(func(input *models.InputState) {
		input.SetLanguage(tag)
	})
}

// ClearFile removes any staged file and returns to text mode.
func (c *SubmissionController) ClearFile() models.SessionSnapshot {
	return c.mutateInput(func(input *models.InputState) {
		input.ClearFile()
	})
}

// SelectFile validates and stages a file. A rejected file is never staged; unless an
// attempt is running, the rejection also moves the session to the failed phase so the
// error banner shows it.
func (c *SubmissionController) SelectFile(ctx context.Context, name string, content []byte) (models.SessionSnapshot, error) {
	_, span := c.tracer.Start(ctx, "submission.select_file", trace.WithAttributes(
		attribute.String("file.name", name),
		attribute.Int("file.bytes", len(content)),
	))
	defer span.End()

	var contentType string
	err := validation.ValidateFileExtension(name)
	if err == nil {
		contentType, err = validation.ValidateFileContent(content, c.cfg.MaxFileBytes)
	}

	if err != nil {
		kind := validation.KindOf(err)
		observability.FileRejections().WithLabelValues(string(kind)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "file rejected")

		c.transitionMu.Lock()
		defer c.transitionMu.Unlock()

		c.mu.Lock()
		if c.state.Phase.InFlight() {
			snapshot := c.snapshotLocked()
			c.mu.Unlock()
			return snapshot, err
		}
		c.failLocked(kind, validation.Message(err))
		snapshot := c.transitionLocked()
		c.mu.Unlock()

		c.emit(snapshot)
		return snapshot, err
	}

	snapshot := c.mutateInput(func(input *models.InputState) {
		input.SetFile(models.FileHandle{
			Name:        name,
			Content:     content,
			ContentType: contentType,
		})
	})
	span.SetStatus(codes.Ok, "staged")
	return snapshot, nil
}

// Submit runs one attempt to completion. Failures are recorded in the submission state,
// not returned; the only error is ErrSubmissionInFlight.
func (c *SubmissionController) Submit(ctx context.Context) (models.SessionSnapshot, error) {
	input, snapshot, proceed, err := c.begin()
	if err != nil || !proceed {
		return snapshot, err
	}

	return c.dispatch(ctx, input), nil
}

// SubmitAsync validates synchronously and, when the input is acceptable, dispatches in
// the background. The returned snapshot is in the submitting or failed phase.
func (c *SubmissionController) SubmitAsync(ctx context.Context) (models.SessionSnapshot, error) {
	input, snapshot, proceed, err := c.begin()
	if err != nil || !proceed {
		return snapshot, err
	}

	go c.dispatch(context.WithoutCancel(ctx), input)
	return snapshot, nil
}

// Subscribe returns a channel holding the latest snapshot after each transition.
// Intermediate snapshots are replaced when the reader falls behind.
func (c *SubmissionController) Subscribe() (<-chan models.SessionSnapshot, func()) {
	channel := make(chan models.SessionSnapshot, 1)

	c.mu.Lock()
	c.subscribers[channel] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, channel)
			c.mu.Unlock()
		})
	}

	return channel, cleanup
}

// begin moves idle or finished sessions through validation. proceed is true when the
// session reached the submitting phase.
func (c *SubmissionController) begin() (models.InputState, models.SessionSnapshot, bool, error) {
	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	c.mu.Lock()
	if c.state.Phase.InFlight() {
		snapshot := c.snapshotLocked()
		c.mu.Unlock()
		return models.InputState{}, snapshot, false, ErrSubmissionInFlight
	}

	input := c.input.Clone()
	c.state = models.SubmissionState{
		Phase:     models.PhaseValidating,
		Mode:      input.ResolvedMode(),
		Attempt:   c.state.Attempt + 1,
		UpdatedAt: c.now(),
	}
	validating := c.transitionLocked()

	if err := validation.ValidateSubmission(input); err != nil {
		kind := validation.KindOf(err)
		c.failLocked(kind, validation.Message(err))
		observability.Submissions().WithLabelValues(string(input.ResolvedMode()), string(kind)).Inc()
		failed := c.transitionLocked()
		c.mu.Unlock()

		c.emit(validating)
		c.emit(failed)
		return input, failed, false, nil
	}

	c.state.Phase = models.PhaseSubmitting
	c.state.UpdatedAt = c.now()
	submitting := c.transitionLocked()
	c.mu.Unlock()

	c.emit(validating)
	c.emit(submitting)
	return input, submitting, true, nil
}

func (c *SubmissionController) dispatch(ctx context.Context, input models.InputState) models.SessionSnapshot {
	mode := input.ResolvedMode()

	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, "submission.dispatch", trace.WithAttributes(
		attribute.String("submission.mode", string(mode)),
		attribute.String("session.id", c.sessionID),
	))
	defer span.End()

	start := time.Now()
	var (
		result reviewapi.AnalysisResult
		err    error
	)
	if mode == models.InputModeFile {
		result, err = c.reviewer.UploadCode(ctx, reviewapi.UploadFile{
			Name:        input.File.Name,
			Content:     input.File.Content,
			ContentType: input.File.ContentType,
		})
	} else {
		result, err = c.reviewer.AnalyzeCode(ctx, reviewapi.CodeReviewRequest{
			Code:     input.Code,
			Language: string(input.Language),
		})
	}
	observability.SubmissionLatency().WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())

	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	c.mu.Lock()
	if err != nil {
		kind, message := describeFailure(err)
		c.failLocked(kind, message)
		observability.Submissions().WithLabelValues(string(mode), string(kind)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		c.logger.Warn().Err(err).Str("mode", string(mode)).Str("error_kind", string(kind)).Msg("submission failed")
	} else {
		c.state.Phase = models.PhaseSucceeded
		c.state.ErrorMessage = ""
		c.state.ErrorKind = ""
		c.state.Result = &result
		c.state.UpdatedAt = c.now()
		observability.Submissions().WithLabelValues(string(mode), "succeeded").Inc()
		span.SetStatus(codes.Ok, "succeeded")
	}
	snapshot := c.transitionLocked()
	c.mu.Unlock()

	c.emit(snapshot)
	return snapshot
}

func (c *SubmissionController) mutateInput(apply func(*models.InputState)) models.SessionSnapshot {
	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	c.mu.Lock()
	apply(&c.input)
	snapshot := c.transitionLocked()
	c.mu.Unlock()

	c.emit(snapshot)
	return snapshot
}

func (c *SubmissionController) failLocked(kind models.ErrorKind, message string) {
	if message == "" {
		message = GenericFailureMessage
	}
	c.state.Phase = models.PhaseFailed
	c.state.ErrorKind = kind
	c.state.ErrorMessage = message
	c.state.Result = nil
	c.state.UpdatedAt = c.now()
}

func (c *SubmissionController) snapshotLocked() models.SessionSnapshot {
	state := c.state
	if c.state.Result != nil {
		result := *c.state.Result
		state.Result = &result
	}

	return models.SessionSnapshot{
		SessionID:  c.sessionID,
		Version:    c.version,
		Input:      c.input.Clone(),
		Submission: state,
	}
}

// transitionLocked stamps the next version and returns the resulting snapshot.
func (c *SubmissionController) transitionLocked() models.SessionSnapshot {
	c.version++
	return c.snapshotLocked()
}

// emit delivers a snapshot to observers. Callers hold transitionMu. Each subscriber slot
// keeps only the newest snapshot, so a slow reader skips intermediate states but always
// ends on the latest one.
func (c *SubmissionController) emit(snapshot models.SessionSnapshot) {
	c.mu.Lock()
	for channel := range c.subscribers {
		select {
		case channel <- snapshot:
			continue
		default:
		}
		select {
		case <-channel:
		default:
		}
		channel <- snapshot
	}
	c.mu.Unlock()

	if c.cfg.OnTransition != nil {
		c.cfg.OnTransition(snapshot)
	}
}

// describeFailure maps a dispatch error onto the error taxonomy and banner text.
func describeFailure(err error) (models.ErrorKind, string) {
	var svcErr *reviewapi.ServiceError
	switch {
	case errors.As(err, &svcErr):
		if svcErr.Detail != "" {
			return models.ErrorKindServiceError, svcErr.Detail
		}
		return models.ErrorKindServiceError, GenericFailureMessage
	case errors.Is(err, reviewapi.ErrMalformedResponse):
		return models.ErrorKindServiceError, GenericFailureMessage
	default:
		return models.ErrorKindTransportError, GenericFailureMessage
	}
}
