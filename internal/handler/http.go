package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"arena-server/internal/models"
	"arena-server/internal/service"
	"arena-server/internal/worker"
)

// GameHandler serves the HTTP API for game sessions.
type GameHandler struct {
	service service.GameService
	runner  *worker.Runner
	// runCtx outlives individual requests; background runs are tied to it so
	// they stop on server shutdown, not when the triggering response ends.
	runCtx context.Context
	logger *zap.Logger
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(s service.GameService, runner *worker.Runner, runCtx context.Context, logger *zap.Logger) *GameHandler {
	return &GameHandler{
		service: s,
		runner:  runner,
		runCtx:  runCtx,
		logger:  logger.Named("GameHandler"),
	}
}

// RegisterRoutes registers the game API routes.
func (h *GameHandler) RegisterRoutes(e *echo.Echo) {
	gamesGroup := e.Group("/games")
	{
		gamesGroup.POST("", h.createGame)
		gamesGroup.GET("", h.listGames)
		gamesGroup.GET("/:id", h.getGame)
		gamesGroup.POST("/:id/step", h.stepGame)
		gamesGroup.POST("/:id/run", h.runGame)
		gamesGroup.POST("/:id/rollback", h.rollbackGame)
		gamesGroup.GET("/:id/turns", h.listTurns)
		gamesGroup.GET("/:id/turns/latest", h.latestTurn)
	}
}

func handleServiceError(c echo.Context, err error) error {
	var statusCode int
	var apiErr APIError

	switch {
	case errors.Is(err, models.ErrGameNotFound), errors.Is(err, models.ErrTurnNotFound), errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, models.ErrGameOver), errors.Is(err, models.ErrGameNotActive):
		statusCode = http.StatusConflict
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, service.ErrInvalidRoster),
		errors.Is(err, models.ErrDuplicateUID),
		errors.Is(err, models.ErrNoPlayers):
		statusCode = http.StatusBadRequest
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, models.ErrArbiterUnavailable):
		statusCode = http.StatusBadGateway
		apiErr = APIError{Message: err.Error()}
	default:
		statusCode = http.StatusInternalServerError
		apiErr = APIError{Message: "Internal server error"}
	}
	return c.JSON(statusCode, apiErr)
}

func parseGameID(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("id"))
}

func (h *GameHandler) createGame(c echo.Context) error {
	var req CreateGameRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
	}

	session, err := h.service.CreateGame(c.Request().Context(), service.CreateGameParams{
		Name:           req.Name,
		ModelMode:      req.GameConfig.ModelMode,
		WorldSize:      req.GameConfig.WorldSize,
		CurrencyTarget: req.GameConfig.CurrencyTarget,
		MaxTurns:       req.GameConfig.MaxTurns,
		Players:        req.Players,
	})
	if err != nil {
		if !errors.Is(err, service.ErrInvalidRoster) && !errors.Is(err, models.ErrDuplicateUID) {
			h.logger.Error("Error creating game", zap.Error(err))
		}
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, session)
}

func (h *GameHandler) getGame(c echo.Context) error {
	id, err := parseGameID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid game ID format"})
	}

	session, err := h.service.GetGame(c.Request().Context(), id)
	if err != nil {
		if !errors.Is(err, models.ErrGameNotFound) {
			h.logger.Error("Error getting game", zap.String("gameID", id.String()), zap.Error(err))
		}
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

func (h *GameHandler) listGames(c echo.Context) error {
	limit := 20
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid 'limit' parameter"})
		}
		if parsed > 100 {
			parsed = 100
		}
		limit = parsed
	}
	offset := 0
	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil || parsed < 0 {
			return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid 'offset' parameter"})
		}
		offset = parsed
	}

	sessions, err := h.service.ListGames(c.Request().Context(), limit, offset)
	if err != nil {
		h.logger.Error("Error listing games", zap.Error(err))
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, ListGamesResponse{
		Data:    sessions,
		HasMore: len(sessions) == limit,
	})
}

func (h *GameHandler) stepGame(c echo.Context) error {
	id, err := parseGameID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid game ID format"})
	}
	if h.runner.IsRunning(id) {
		return c.JSON(http.StatusConflict, APIError{Message: "Game is being run in the background"})
	}

	turn, err := h.service.StepGame(c.Request().Context(), id)
	if err != nil {
		if !errors.Is(err, models.ErrGameNotFound) &&
			!errors.Is(err, models.ErrGameOver) &&
			!errors.Is(err, models.ErrGameNotActive) {
			h.logger.Error("Error stepping game", zap.String("gameID", id.String()), zap.Error(err))
		}
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, turn)
}

// runGame starts a background run to completion. The request context ends
// with the response, so the run is tied to the server context instead.
func (h *GameHandler) runGame(c echo.Context) error {
	id, err := parseGameID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid game ID format"})
	}

	// Reject early for games that cannot run; the background loop would only
	// discover this after the response has gone out.
	session, err := h.service.GetGame(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}
	if session.Status.IsTerminal() {
		return c.JSON(http.StatusConflict, APIError{Message: "Game is already finished"})
	}

	started := h.runner.Start(h.runCtx, id)
	resp := RunResponse{GameID: id.String(), Started: started}
	if !started {
		resp.Message = "Run already in progress"
		return c.JSON(http.StatusConflict, resp)
	}
	h.logger.Info("Background run accepted", zap.String("gameID", id.String()))
	return c.JSON(http.StatusAccepted, resp)
}

func (h *GameHandler) rollbackGame(c echo.Context) error {
	id, err := parseGameID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid game ID format"})
	}
	if h.runner.IsRunning(id) {
		return c.JSON(http.StatusConflict, APIError{Message: "Game is being run in the background"})
	}

	var req RollbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
	}
	if req.TurnNumber < 0 {
		return c.JSON(http.StatusBadRequest, APIError{Message: "'turn_number' must not be negative"})
	}

	deleted, err := h.service.RollbackGame(c.Request().Context(), id, req.TurnNumber)
	if err != nil {
		if !errors.Is(err, models.ErrGameNotFound) {
			h.logger.Error("Error rolling back game", zap.String("gameID", id.String()), zap.Error(err))
		}
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, RollbackResponse{TurnNumber: req.TurnNumber, DeletedTurns: deleted})
}

func (h *GameHandler) listTurns(c echo.Context) error {
	id, err := parseGameID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid game ID format"})
	}

	turns, err := h.service.GetTurns(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("Error listing turns", zap.String("gameID", id.String()), zap.Error(err))
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, turns)
}

func (h *GameHandler) latestTurn(c echo.Context) error {
	id, err := parseGameID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid game ID format"})
	}

	turn, err := h.service.GetLatestTurn(c.Request().Context(), id)
	if err != nil {
		if !errors.Is(err, models.ErrTurnNotFound) && !errors.Is(err, models.ErrNotFound) {
			h.logger.Error("Error getting latest turn", zap.String("gameID", id.String()), zap.Error(err))
		}
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, turn)
}
