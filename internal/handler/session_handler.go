package handler

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-code-review/internal/dto"
	"github.com/noah-isme/gema-code-review/internal/middleware"
	"github.com/noah-isme/gema-code-review/internal/models"
	"github.com/noah-isme/gema-code-review/internal/service"
	"github.com/noah-isme/gema-code-review/internal/utils"
	"github.com/noah-isme/gema-code-review/internal/validation"
)

const websocketWriteTimeout = 5 * time.Second

// SessionHandler exposes the review console session to the presentation shell.
type SessionHandler struct {
	sessions  service.SessionService
	validator *validator.Validate
	secret    string
	logger    zerolog.Logger
	now       func() time.Time
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(sessions service.SessionService, validator *validator.Validate, secret string, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:  sessions,
		validator: validator,
		secret:    secret,
		logger:    logger.With().Str("component", "session_handler").Logger(),
		now:       time.Now,
	}
}

// Create starts a session and returns its signed token.
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	controller, err := h.sessions.Create(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}

	token, expiresAt, err := middleware.IssueSessionToken(h.secret, controller.SessionID(), h.sessions.TTL(), h.now())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to sign session token")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to start session")
	}

	response := dto.SessionCreatedResponse{
		SessionID: controller.SessionID(),
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		View:      dto.NewShellView(controller.Snapshot()),
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session started", response)
}

// Register binds the routes of the current session. submitLimiter may be nil.
func (h *SessionHandler) Register(router fiber.Router, submitLimiter fiber.Handler) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_ctx", detachedContext(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.feed))

	router.Get("/", h.view)
	router.Put("/code", h.updateCode)
	router.Put("/language", h.updateLanguage)
	router.Post("/file", h.selectFile)
	router.Delete("/file", h.clearFile)

	if submitLimiter != nil {
		router.Post("/submit", submitLimiter, h.submit)
	} else {
		router.Post("/submit", h.submit)
	}
}

func (h *SessionHandler) view(c *fiber.Ctx) error {
	controller, err := h.controller(c)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "session retrieved", dto.NewShellView(controller.Snapshot()))
}

func (h *SessionHandler) updateCode(c *fiber.Ctx) error {
	var payload dto.CodeUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.handleError(c, err)
	}

	controller, err := h.controller(c)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "code updated", dto.NewShellView(controller.SetCode(payload.Code)))
}

func (h *SessionHandler) updateLanguage(c *fiber.Ctx) error {
	var payload dto.LanguageUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.handleError(c, err)
	}

	controller, err := h.controller(c)
	if err != nil {
		return h.handleError(c, err)
	}

	snapshot := controller.SetLanguage(models.Language(payload.Language))
	return utils.SendSuccess(c, "language updated", dto.NewShellView(snapshot))
}

func (h *SessionHandler) selectFile(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	file, err := header.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read file")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read file")
	}

	controller, err := h.controller(c)
	if err != nil {
		return h.handleError(c, err)
	}

	snapshot, err := controller.SelectFile(c.UserContext(), header.Filename, content)
	if err != nil {
		requestLogger(h.logger, c).Info().Str("file_name", header.Filename).Err(err).Msg("file rejected")
		return utils.Fail(c, fiber.StatusUnprocessableEntity, validation.Message(err), dto.NewShellView(snapshot))
	}

	return utils.SendSuccess(c, "file selected", dto.NewShellView(snapshot))
}

func (h *SessionHandler) clearFile(c *fiber.Ctx) error {
	controller, err := h.controller(c)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "file cleared", dto.NewShellView(controller.ClearFile()))
}

// submit dispatches in the background and answers 202 unless wait=true is given, in
// which case the response carries the finished attempt.
func (h *SessionHandler) submit(c *fiber.Ctx) error {
	controller, err := h.controller(c)
	if err != nil {
		return h.handleError(c, err)
	}

	var snapshot models.SessionSnapshot
	if parseQueryBool(c, "wait") {
		snapshot, err = controller.Submit(c.UserContext())
	} else {
		snapshot, err = controller.SubmitAsync(detachedContext(c))
	}
	if err != nil {
		return h.handleError(c, err)
	}

	view := dto.NewShellView(snapshot)
	if snapshot.Submission.Phase.InFlight() {
		return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "submission accepted", view)
	}

	return utils.SendSuccess(c, "submission finished", view)
}

func (h *SessionHandler) feed(conn *websocket.Conn) {
	sessionID, _ := conn.Locals("session_id").(string)
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	controller, err := h.sessions.Get(baseCtx, sessionID)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session not found"))
		_ = conn.Close()
		return
	}

	updates, unsubscribe := controller.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger := h.logger.With().Str("session_id", sessionID).Logger()
	logger.Info().Msg("session feed connected")
	defer logger.Info().Msg("session feed disconnected")

	current := controller.Snapshot()
	if err := h.writeView(conn, current); err != nil {
		return
	}
	written := current.Version

	for {
		select {
		case <-closed:
			return
		case snapshot := <-updates:
			if snapshot.Version <= written {
				continue
			}
			written = snapshot.Version
			if err := h.writeView(conn, snapshot); err != nil {
				logger.Debug().Err(err).Msg("session feed write failed")
				return
			}
		}
	}
}

func (h *SessionHandler) writeView(conn *websocket.Conn, snapshot models.SessionSnapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(websocketWriteTimeout))
	return conn.WriteJSON(dto.NewShellView(snapshot))
}

// detachedContext carries the correlation id on a context that outlives the fasthttp
// request, which is recycled once the handler returns.
func detachedContext(c *fiber.Ctx) context.Context {
	return middleware.ContextWithCorrelation(context.Background(), middleware.GetCorrelationID(c))
}

func (h *SessionHandler) controller(c *fiber.Ctx) (*service.SubmissionController, error) {
	return h.sessions.Get(c.UserContext(), middleware.SessionIDFromContext(c))
}

func (h *SessionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErr *validation.ValidationError
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", validationDetails(err))
	case errors.As(err, &validationErr):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, validationErr.Message)
	case errors.Is(err, service.ErrSessionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "session not found")
	case errors.Is(err, service.ErrSubmissionInFlight):
		return utils.SendError(c, fiber.StatusConflict, "a submission is already in progress")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("session request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
