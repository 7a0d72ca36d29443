package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"arena-server/internal/agents"
	"arena-server/internal/arbiter"
	"arena-server/internal/config"
	"arena-server/internal/database"
	"arena-server/internal/game"
	"arena-server/internal/messaging"
	"arena-server/internal/models"
)

// ErrInvalidRoster is returned when a creation request carries no players,
// too many players, or a player without a name.
var ErrInvalidRoster = errors.New("invalid player roster")

const maxRosterSize = 10

// CreateGameParams is the service-level input for a new game. Zero values
// fall back to the server defaults.
type CreateGameParams struct {
	Name           string
	ModelMode      string
	WorldSize      int
	CurrencyTarget int
	MaxTurns       int
	Players        []models.PlayerConfig
}

// GameService is the application layer between the HTTP handlers and the
// game core: it owns session persistence, the registry of live game
// instances, the snapshot cache, and turn update publication.
type GameService interface {
	CreateGame(ctx context.Context, params CreateGameParams) (*models.GameSession, error)
	GetGame(ctx context.Context, id uuid.UUID) (*models.GameSession, error)
	ListGames(ctx context.Context, limit, offset int) ([]models.GameSession, error)
	StepGame(ctx context.Context, id uuid.UUID) (*models.Turn, error)
	GetTurns(ctx context.Context, id uuid.UUID) ([]models.Turn, error)
	GetLatestTurn(ctx context.Context, id uuid.UUID) (*models.Turn, error)
	RollbackGame(ctx context.Context, id uuid.UUID, toTurn int) (int64, error)
}

type gameService struct {
	games     database.GameRepository
	turns     database.TurnRepository
	cache     database.SnapshotCache
	publisher messaging.ClientUpdatePublisher
	aiClient  arbiter.AIClient
	cfg       *config.Config
	logger    *zap.Logger

	mu        sync.Mutex
	instances map[uuid.UUID]*game.Game
}

// NewGameService creates the game application service.
func NewGameService(
	games database.GameRepository,
	turns database.TurnRepository,
	cache database.SnapshotCache,
	publisher messaging.ClientUpdatePublisher,
	aiClient arbiter.AIClient,
	cfg *config.Config,
	logger *zap.Logger,
) GameService {
	return &gameService{
		games:     games,
		turns:     turns,
		cache:     cache,
		publisher: publisher,
		aiClient:  aiClient,
		cfg:       cfg,
		logger:    logger.Named("GameService"),
		instances: make(map[uuid.UUID]*game.Game),
	}
}

func (s *gameService) CreateGame(ctx context.Context, params CreateGameParams) (*models.GameSession, error) {
	if len(params.Players) == 0 || len(params.Players) > maxRosterSize {
		return nil, fmt.Errorf("%w: expected 1 to %d players, got %d", ErrInvalidRoster, maxRosterSize, len(params.Players))
	}
	seen := make(map[string]struct{}, len(params.Players))
	roster := make([]models.PlayerConfig, len(params.Players))
	for i, pc := range params.Players {
		if pc.Name == "" {
			return nil, fmt.Errorf("%w: player %d has no name", ErrInvalidRoster, i)
		}
		if _, dup := seen[pc.Name]; dup {
			return nil, fmt.Errorf("%w: %s", models.ErrDuplicateUID, pc.Name)
		}
		seen[pc.Name] = struct{}{}
		if pc.StartingHealth <= 0 {
			pc.StartingHealth = s.cfg.StartingHealth
		}
		if pc.StartingCurrency < 0 {
			pc.StartingCurrency = s.cfg.StartingWealth
		}
		roster[i] = pc
	}

	session := &models.GameSession{
		ID:             uuid.New(),
		Name:           params.Name,
		Status:         models.StatusPending,
		ModelMode:      orDefaultStr(params.ModelMode, s.cfg.AIModel),
		WorldSize:      orDefaultInt(params.WorldSize, s.cfg.WorldSize),
		CurrencyTarget: orDefaultInt(params.CurrencyTarget, s.cfg.CurrencyTarget),
		MaxTurns:       orDefaultInt(params.MaxTurns, s.cfg.MaxTurns),
		Players:        roster,
	}
	if err := s.games.CreateGame(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("Game session created",
		zap.String("gameID", session.ID.String()),
		zap.Int("players", len(session.Players)),
		zap.Int("worldSize", session.WorldSize))
	return session, nil
}

func (s *gameService) GetGame(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	return s.games.GetGameByID(ctx, id)
}

func (s *gameService) ListGames(ctx context.Context, limit, offset int) ([]models.GameSession, error) {
	return s.games.ListGames(ctx, limit, offset)
}

// StepGame advances the game by one turn. The live instance is restored from
// the latest persisted snapshot on first use. Cache and publish failures are
// logged but do not fail the step; the turn is already durable by then.
func (s *gameService) StepGame(ctx context.Context, id uuid.UUID) (*models.Turn, error) {
	instance, err := s.instance(ctx, id)
	if err != nil {
		return nil, err
	}

	turn, err := instance.Step(ctx)
	if err != nil {
		if errors.Is(err, models.ErrGameOver) {
			return nil, err
		}
		s.dropInstance(id)
		details := err.Error()
		if uerr := s.games.UpdateOutcome(ctx, id, models.StatusErrored, nil, nil, &details); uerr != nil {
			s.logger.Error("Failed to persist errored status",
				zap.String("gameID", id.String()), zap.Error(uerr))
		}
		return nil, err
	}

	if cerr := s.cache.SetLatestTurn(ctx, turn, s.cfg.SnapshotCacheTTL); cerr != nil {
		s.logger.Warn("Failed to cache latest turn",
			zap.String("gameID", id.String()), zap.Int("turn", turn.TurnNumber), zap.Error(cerr))
	}
	if perr := s.publisher.PublishTurnUpdate(ctx, buildTurnUpdate(instance.Status(), turn)); perr != nil {
		s.logger.Warn("Failed to publish turn update",
			zap.String("gameID", id.String()), zap.Int("turn", turn.TurnNumber), zap.Error(perr))
	}

	if instance.IsOver() {
		reason := instance.GameOverReason()
		if uerr := s.games.UpdateOutcome(ctx, id, models.StatusCompleted, instance.WinnerUID(), &reason, nil); uerr != nil {
			s.logger.Error("Failed to persist completed status",
				zap.String("gameID", id.String()), zap.Error(uerr))
		}
		s.dropInstance(id)
	} else if turn.TurnNumber == 1 {
		if uerr := s.games.UpdateOutcome(ctx, id, models.StatusActive, nil, nil, nil); uerr != nil {
			s.logger.Warn("Failed to persist active status",
				zap.String("gameID", id.String()), zap.Error(uerr))
		}
	}
	return turn, nil
}

func (s *gameService) GetTurns(ctx context.Context, id uuid.UUID) ([]models.Turn, error) {
	return s.turns.GetTurnsByGame(ctx, id)
}

// GetLatestTurn serves the newest snapshot, preferring the cache and
// refilling it on a database hit.
func (s *gameService) GetLatestTurn(ctx context.Context, id uuid.UUID) (*models.Turn, error) {
	turn, err := s.cache.GetLatestTurn(ctx, id)
	if err == nil {
		return turn, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Warn("Snapshot cache lookup failed, falling back to database",
			zap.String("gameID", id.String()), zap.Error(err))
	}

	turn, err = s.turns.GetLatestTurn(ctx, id)
	if err != nil {
		return nil, err
	}
	if cerr := s.cache.SetLatestTurn(ctx, turn, s.cfg.SnapshotCacheTTL); cerr != nil {
		s.logger.Warn("Failed to refill snapshot cache",
			zap.String("gameID", id.String()), zap.Error(cerr))
	}
	return turn, nil
}

// RollbackGame deletes every turn after toTurn and reopens the session so
// play resumes from the surviving snapshot. Returns how many turns were
// discarded.
func (s *gameService) RollbackGame(ctx context.Context, id uuid.UUID, toTurn int) (int64, error) {
	if toTurn < 0 {
		return 0, fmt.Errorf("%w: turn number must not be negative", models.ErrTurnNotFound)
	}
	if _, err := s.games.GetGameByID(ctx, id); err != nil {
		return 0, err
	}

	deleted, err := s.turns.DeleteTurnsAfter(ctx, id, toTurn)
	if err != nil {
		return 0, err
	}
	if cerr := s.cache.InvalidateLatestTurn(ctx, id); cerr != nil {
		s.logger.Warn("Failed to invalidate snapshot cache after rollback",
			zap.String("gameID", id.String()), zap.Error(cerr))
	}
	s.dropInstance(id)

	status := models.StatusActive
	if toTurn == 0 {
		status = models.StatusPending
	}
	if uerr := s.games.UpdateOutcome(ctx, id, status, nil, nil, nil); uerr != nil {
		return deleted, uerr
	}
	s.logger.Info("Game rolled back",
		zap.String("gameID", id.String()), zap.Int("toTurn", toTurn), zap.Int64("deletedTurns", deleted))
	return deleted, nil
}

// instance returns the live game for id, restoring it from persistence when
// the registry has none.
func (s *gameService) instance(ctx context.Context, id uuid.UUID) (*game.Game, error) {
	s.mu.Lock()
	if g, ok := s.instances[id]; ok {
		s.mu.Unlock()
		return g, nil
	}
	s.mu.Unlock()

	g, err := s.loadInstance(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.instances[id]; ok {
		return existing, nil
	}
	s.instances[id] = g
	return g, nil
}

func (s *gameService) loadInstance(ctx context.Context, id uuid.UUID) (*game.Game, error) {
	session, err := s.games.GetGameByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case models.StatusCompleted:
		return nil, models.ErrGameOver
	case models.StatusErrored:
		return nil, models.ErrGameNotActive
	}

	cfg := game.Config{
		WorldSize:         session.WorldSize,
		PlayerVision:      s.cfg.PlayerVision,
		NumResponses:      s.cfg.NumResponses,
		NegotiationRounds: s.cfg.NumNegotiationRounds,
		MaxTurns:          session.MaxTurns,
		CurrencyTarget:    session.CurrencyTarget,
	}
	deps := s.buildDeps(session)

	latest, err := s.latestTurn(ctx, id)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		s.logger.Info("Starting fresh game instance", zap.String("gameID", id.String()))
		return game.New(id, cfg, session.Players, deps)
	}
	s.logger.Info("Restoring game instance",
		zap.String("gameID", id.String()), zap.Int("turn", latest.TurnNumber))
	return game.Restore(id, cfg, latest.State, latest.TurnNumber, deps)
}

// latestTurn returns the newest persisted turn, or nil when the game has not
// been stepped yet.
func (s *gameService) latestTurn(ctx context.Context, id uuid.UUID) (*models.Turn, error) {
	turn, err := s.cache.GetLatestTurn(ctx, id)
	if err == nil {
		return turn, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Warn("Snapshot cache lookup failed during restore",
			zap.String("gameID", id.String()), zap.Error(err))
	}
	turn, err = s.turns.GetLatestTurn(ctx, id)
	if errors.Is(err, models.ErrTurnNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return turn, nil
}

func (s *gameService) buildDeps(session *models.GameSession) game.Deps {
	sources := make(map[string]game.ActionSource, len(session.Players))
	for _, pc := range session.Players {
		sources[pc.Name] = agents.NewAIAgent(pc, s.aiClient, s.logger)
	}
	return game.Deps{
		Sources: sources,
		Arbiter: arbiter.NewDungeonMaster(s.aiClient, s.cfg, s.logger),
		Store:   s.turns,
		Logger:  s.logger,
	}
}

func (s *gameService) dropInstance(id uuid.UUID) {
	s.mu.Lock()
	delete(s.instances, id)
	s.mu.Unlock()
}

func buildTurnUpdate(status models.GameStatus, turn *models.Turn) models.TurnUpdate {
	players := make(map[string]models.PlayerVitals, len(turn.State.Players))
	for uid, ps := range turn.State.Players {
		players[uid] = models.PlayerVitals{
			Position: ps.Position,
			Money:    ps.Money,
			Health:   ps.Health,
			Dead:     ps.Dead,
		}
	}
	return models.TurnUpdate{
		GameID:     turn.GameID,
		TurnNumber: turn.TurnNumber,
		Status:     status,
		Narrative:  turn.State.Narrative,
		Players:    players,
		WinnerUID:  turn.State.WinnerUID,
	}
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
