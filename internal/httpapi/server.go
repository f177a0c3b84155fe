// Package httpapi is the operator control surface: sequence and expression
// commands, speech playback, state and log history, plus the renderer
// WebSocket.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/animation"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/audio"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/bridge"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/logging"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/scheduler"
)

const commandTimeout = 5 * time.Second

// Avatar is what the handlers drive; *bridge.AvatarBridge implements it.
type Avatar interface {
	GetState(ctx context.Context) (bridge.State, error)
	Sequences(ctx context.Context) ([]string, error)
	PlaySequence(ctx context.Context, name string) error
	StopCurrent(ctx context.Context) error
	SuspendIdle(ctx context.Context) error
	ResumeIdle(ctx context.Context) error
	SetExpression(ctx context.Context, name string) error
	Speak(ctx context.Context, path string) error
	StopSpeaking(ctx context.Context) error
}

// Logs serves log history; *bridge.LogBridge implements it.
type Logs interface {
	GetLogHistory(limit int) []logging.LogEntry
}

type Handlers struct {
	Avatar Avatar
	Logs   Logs
	Socket http.Handler // renderer WebSocket, may be nil
}

// New creates a configured Echo server instance.
func New(h Handlers, allowedOrigins []string, logger zerolog.Logger) *echo.Echo {
	logger = logger.With().Str("component", "httpapi").Logger()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := logger.Debug()
			if v.Error != nil {
				ev = logger.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Msg("request")
			return nil
		},
	}))
	if len(allowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: allowedOrigins}))
	}

	h.Register(e)
	return e
}

func (h Handlers) Register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if h.Socket != nil {
		e.GET("/ws", echo.WrapHandler(h.Socket))
	}

	api := e.Group("/api")
	api.GET("/state", h.state)
	api.GET("/sequences", h.sequences)
	api.POST("/sequences/:name", h.playSequence)
	api.POST("/stop", h.command(Avatar.StopCurrent))
	api.POST("/idle/suspend", h.command(Avatar.SuspendIdle))
	api.POST("/idle/resume", h.command(Avatar.ResumeIdle))
	api.POST("/expression/:name", h.setExpression)
	api.DELETE("/expression", h.resetExpression)
	api.POST("/speak", h.speak)
	api.DELETE("/speak", h.command(Avatar.StopSpeaking))
	if h.Logs != nil {
		api.GET("/logs", h.logs)
	}
}

func (h Handlers) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), commandTimeout)
}

func (h Handlers) state(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	st, err := h.Avatar.GetState(ctx)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h Handlers) sequences(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	names, err := h.Avatar.Sequences(ctx)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"sequences": names})
}

func (h Handlers) playSequence(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.Avatar.PlaySequence(ctx, c.Param("name")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h Handlers) command(fn func(Avatar, context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := h.ctx(c)
		defer cancel()
		if err := fn(h.Avatar, ctx); err != nil {
			return toHTTPError(err)
		}
		return c.NoContent(http.StatusAccepted)
	}
}

func (h Handlers) setExpression(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.Avatar.SetExpression(ctx, c.Param("name")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h Handlers) resetExpression(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.Avatar.SetExpression(ctx, ""); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

type speakRequest struct {
	Path string `json:"path"`
}

func (h Handlers) speak(c echo.Context) error {
	var req speakRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path is required")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.Avatar.Speak(ctx, req.Path); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h Handlers) logs(c echo.Context) error {
	limit := 100
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	return c.JSON(http.StatusOK, h.Logs.GetLogHistory(limit))
}

func toHTTPError(err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, animation.ErrUnknownSequence),
		errors.Is(err, bridge.ErrUnknownExpression),
		errors.Is(err, os.ErrNotExist):
		code = http.StatusNotFound
	case errors.Is(err, animation.ErrSequenceActive):
		code = http.StatusConflict
	case errors.Is(err, audio.ErrUnsupportedFormat),
		errors.Is(err, audio.ErrInvalidFormat):
		code = http.StatusBadRequest
	case errors.Is(err, scheduler.ErrLoopClosed),
		errors.Is(err, context.DeadlineExceeded):
		code = http.StatusServiceUnavailable
	}
	return echo.NewHTTPError(code, err.Error()).SetInternal(err)
}
