package game

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"arena-server/internal/models"
)

// Config is the rule set for one game instance.
type Config struct {
	WorldSize         int
	PlayerVision      int
	NumResponses      int
	NegotiationRounds int
	MaxTurns          int
	CurrencyTarget    int
}

// Deps are the collaborators a game instance needs.
type Deps struct {
	// Sources maps player uid to its action source.
	Sources map[string]ActionSource
	Arbiter Arbiter
	Store   TurnStore
	Logger  *zap.Logger
}

// Game drives one session through its turns. Failures split into two tiers:
// defective verdict DATA degrades per-entry inside the applier, while a
// failing COLLABORATOR (player source, arbiter, tile generation, storage)
// aborts the step and moves the session to errored.
//
// Game is not safe for concurrent use; Step holds an internal mutex so at
// most one step (and therefore one verdict application) runs at a time.
type Game struct {
	id        uuid.UUID
	cfg       Config
	players   map[string]*Player
	world     *WorldGrid
	arbiter   Arbiter
	applier   *VerdictApplier
	evaluator *ConditionEvaluator
	store     TurnStore
	logger    *zap.Logger

	mu             sync.Mutex
	turn           int
	status         models.GameStatus
	gameOver       bool
	gameOverReason string
	winnerUID      *string
	lastVerdictRaw string
	lastNarrative  string
}

// New builds a fresh game from a player roster. Player names double as uids
// and must be unique.
func New(id uuid.UUID, cfg Config, roster []models.PlayerConfig, deps Deps) (*Game, error) {
	if len(roster) == 0 {
		return nil, models.ErrNoPlayers
	}
	g := newGame(id, cfg, deps)
	for _, pc := range roster {
		if _, exists := g.players[pc.Name]; exists {
			return nil, fmt.Errorf("%w: %s", models.ErrDuplicateUID, pc.Name)
		}
		source, ok := deps.Sources[pc.Name]
		if !ok {
			return nil, fmt.Errorf("no action source for player %s", pc.Name)
		}
		g.players[pc.Name] = NewPlayer(pc, cfg.WorldSize, source, deps.Logger)
	}
	return g, nil
}

// Restore rebuilds a game from the snapshot persisted after turnNumber.
func Restore(id uuid.UUID, cfg Config, snap models.StateSnapshot, turnNumber int, deps Deps) (*Game, error) {
	if len(snap.Players) == 0 {
		return nil, models.ErrNoPlayers
	}
	g := newGame(id, cfg, deps)
	g.turn = turnNumber
	g.status = models.StatusActive
	g.lastNarrative = snap.Narrative
	if snap.GameOver {
		g.gameOver = true
		g.gameOverReason = snap.GameOverReason
		g.status = models.StatusCompleted
		if snap.WinnerUID != "" {
			uid := snap.WinnerUID
			g.winnerUID = &uid
		}
	}
	for uid, ps := range snap.Players {
		source, ok := deps.Sources[uid]
		if !ok {
			return nil, fmt.Errorf("no action source for player %s", uid)
		}
		g.players[uid] = RestorePlayer(ps, cfg.WorldSize, source, deps.Logger)
	}
	g.world.RestoreTiles(snap.Tiles)
	return g, nil
}

func newGame(id uuid.UUID, cfg Config, deps Deps) *Game {
	logger := deps.Logger.Named("game").With(zap.String("game_id", id.String()))
	return &Game{
		id:        id,
		cfg:       cfg,
		players:   make(map[string]*Player),
		world:     NewWorldGrid(cfg.WorldSize, deps.Arbiter, deps.Logger),
		arbiter:   deps.Arbiter,
		applier:   NewVerdictApplier(deps.Logger),
		evaluator: NewConditionEvaluator(DefaultConditions(cfg.CurrencyTarget, cfg.MaxTurns)...),
		store:     deps.Store,
		logger:    logger,
		status:    models.StatusPending,
	}
}

func (g *Game) ID() uuid.UUID             { return g.id }
func (g *Game) Turn() int                 { return g.turn }
func (g *Game) Status() models.GameStatus { return g.status }
func (g *Game) IsOver() bool              { return g.gameOver }
func (g *Game) GameOverReason() string    { return g.gameOverReason }

// WinnerUID returns the winning uid, or nil for a draw or an unfinished game.
func (g *Game) WinnerUID() *string { return g.winnerUID }

// PlayerSnapshots returns the current state of every player.
func (g *Game) PlayerSnapshots() map[string]models.PlayerSnapshot {
	snaps := make(map[string]models.PlayerSnapshot, len(g.players))
	for uid, p := range g.players {
		snaps[uid] = p.Snapshot()
	}
	return snaps
}

// Step runs one full turn: negotiation rounds, then the configured number of
// action/verdict rounds (each verdict is applied before the next round's
// context is captured), then condition evaluation and snapshot persistence.
// Any collaborator error aborts the step and marks the session errored.
func (g *Game) Step(ctx context.Context) (*models.Turn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.gameOver {
		return nil, models.ErrGameOver
	}
	uids := g.sortedUIDs()

	negotiation, err := g.runNegotiation(ctx, uids)
	if err != nil {
		return nil, g.fail(err)
	}

	var verdict *models.Verdict
	for round := 0; round < max(g.cfg.NumResponses, 1); round++ {
		responses, err := g.collectActions(ctx, uids, negotiation)
		if err != nil {
			return nil, g.fail(err)
		}
		raw, err := g.arbiter.RespondToActions(ctx, g.buildTurnContext(responses))
		if err != nil {
			return nil, g.fail(fmt.Errorf("arbiter ruling: %w", err))
		}
		verdict, err = g.applier.Apply(raw, g.players, g.world)
		if err != nil {
			return nil, g.fail(fmt.Errorf("apply verdict: %w", err))
		}
		g.lastVerdictRaw = string(raw)
		if verdict != nil {
			g.lastNarrative = verdict.Narrative
		}
	}

	g.turn++
	if result := g.evaluator.Evaluate(g); result != nil {
		g.gameOver = true
		g.gameOverReason = result.Name
		g.status = models.StatusCompleted
		if result.Winner != nil {
			uid := result.Winner.TopWinnerUID
			g.winnerUID = &uid
		}
		g.logger.Info("Game over",
			zap.Int("turn", g.turn),
			zap.String("reason", result.Name),
			zap.Stringp("winner", g.winnerUID))
	} else if g.status == models.StatusPending {
		g.status = models.StatusActive
	}

	turn := &models.Turn{
		GameID:     g.id,
		TurnNumber: g.turn,
		State:      g.snapshot(verdict),
	}
	id, err := g.store.SaveTurn(ctx, turn)
	if err != nil {
		return nil, g.fail(fmt.Errorf("persist turn %d: %w", g.turn, err))
	}
	turn.ID = id
	g.logger.Debug("Turn persisted", zap.Int("turn", g.turn), zap.Int64("turn_id", id))
	return turn, nil
}

func (g *Game) fail(err error) error {
	g.status = models.StatusErrored
	return err
}

func (g *Game) sortedUIDs() []string {
	uids := make([]string, 0, len(g.players))
	for uid := range g.players {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}

// runNegotiation runs the configured pre-action rounds. Each round's
// transcript is collected in sorted-uid order and becomes part of every later
// context this turn.
func (g *Game) runNegotiation(ctx context.Context, uids []string) ([][]string, error) {
	if g.cfg.NegotiationRounds <= 0 {
		return nil, nil
	}
	var history [][]string
	for round := 0; round < g.cfg.NegotiationRounds; round++ {
		messages, err := g.fanOut(ctx, uids, history, (*Player).RequestNegotiation)
		if err != nil {
			return nil, err
		}
		transcript := make([]string, len(uids))
		for i, uid := range uids {
			transcript[i] = fmt.Sprintf("%s: %s", uid, messages[i])
		}
		history = append(history, transcript)
	}
	return history, nil
}

// collectActions gathers one action per player for a round.
func (g *Game) collectActions(ctx context.Context, uids []string, negotiation [][]string) (map[string]string, error) {
	responses, err := g.fanOut(ctx, uids, negotiation, (*Player).RequestAction)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(uids))
	for i, uid := range uids {
		out[uid] = responses[i]
	}
	return out, nil
}

// fanOut queries every player concurrently. Contexts are built sequentially
// first, because building one may lazily generate tiles and the world grid is
// not locked; only the remote calls overlap. Results come back indexed by the
// sorted uid order, and the first error (in that order) wins.
func (g *Game) fanOut(
	ctx context.Context,
	uids []string,
	negotiation [][]string,
	query func(*Player, context.Context, models.PlayerContext) (string, error),
) ([]string, error) {
	contexts := make([]models.PlayerContext, len(uids))
	for i, uid := range uids {
		pc, err := g.buildPlayerContext(ctx, uid, negotiation)
		if err != nil {
			return nil, err
		}
		contexts[i] = pc
	}

	results := make([]string, len(uids))
	errs := make([]error, len(uids))
	var wg sync.WaitGroup
	for i := range uids {
		player := g.players[uids[i]]
		wg.Add(1)
		go func(i int, player *Player, pc models.PlayerContext) {
			defer wg.Done()
			results[i], errs[i] = query(player, ctx, pc)
		}(i, player, contexts[i])
	}
	wg.Wait()

	for i, uid := range uids {
		if errs[i] != nil {
			return nil, fmt.Errorf("query player %s: %w", uid, errs[i])
		}
	}
	return results, nil
}

func (g *Game) buildPlayerContext(ctx context.Context, uid string, negotiation [][]string) (models.PlayerContext, error) {
	player := g.players[uid]
	viewable, err := g.world.ViewableTiles(ctx, player.Position(), g.cfg.PlayerVision)
	if err != nil {
		return models.PlayerContext{}, err
	}
	tiles := make([]models.TilePayload, len(viewable))
	for i, tile := range viewable {
		tiles[i] = tile.CleanPayload()
	}
	return models.PlayerContext{
		UID:                uid,
		Self:               player.Snapshot(),
		Players:            g.PlayerSnapshots(),
		Tiles:              tiles,
		NegotiationHistory: negotiation,
		PreviousNarrative:  g.lastNarrative,
	}, nil
}

func (g *Game) buildTurnContext(responses map[string]string) models.TurnContext {
	return models.TurnContext{
		Players:     g.PlayerSnapshots(),
		Responses:   responses,
		PastVerdict: g.lastVerdictRaw,
		Tiles:       g.world.Tiles(),
	}
}

func (g *Game) snapshot(verdict *models.Verdict) models.StateSnapshot {
	snap := models.StateSnapshot{
		Players:        g.PlayerSnapshots(),
		Tiles:          g.world.Tiles(),
		GameOver:       g.gameOver,
		GameOverReason: g.gameOverReason,
	}
	responses := make(map[string]string, len(g.players))
	for uid, p := range g.players {
		responses[uid] = p.LastResponse()
	}
	snap.PlayerResponses = responses
	if g.winnerUID != nil {
		snap.WinnerUID = *g.winnerUID
	}
	if verdict != nil {
		for _, entry := range verdict.CharacterDeltas {
			if entry.Status == models.DeltaApplicable {
				snap.CharacterDeltas = append(snap.CharacterDeltas, entry.Delta)
			}
		}
		snap.WorldDelta = verdict.World
		snap.Narrative = verdict.Narrative
	}
	return snap
}
