package game

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"arena-server/internal/models"
)

// DeadPlayerResponse is the fixed answer a dead player gives to any query.
// No external call is made for it.
const DeadPlayerResponse = "This player is dead and cannot act."

// Player holds one player's mutable state plus its action source. All
// mutators are deltas with clamping; none of them can revive a dead player.
type Player struct {
	uid         string
	class       string
	agentPrompt string
	position    models.Position
	money       int
	health      int
	inventory   []string
	dead        bool
	worldSize   int
	responses   []string
	source      ActionSource
	logger      *zap.Logger
}

func NewPlayer(cfg models.PlayerConfig, worldSize int, source ActionSource, logger *zap.Logger) *Player {
	return &Player{
		uid:         cfg.Name,
		class:       cfg.CharacterClass,
		agentPrompt: cfg.AgentPrompt,
		money:       max(cfg.StartingCurrency, 0),
		health:      max(cfg.StartingHealth, 1),
		worldSize:   worldSize,
		source:      source,
		logger:      logger.Named("player").With(zap.String("uid", cfg.Name)),
	}
}

// RestorePlayer rebuilds a player from a persisted snapshot.
func RestorePlayer(snap models.PlayerSnapshot, worldSize int, source ActionSource, logger *zap.Logger) *Player {
	return &Player{
		uid:         snap.UID,
		class:       snap.CharacterClass,
		agentPrompt: snap.AgentPrompt,
		position:    snap.Position,
		money:       snap.Money,
		health:      snap.Health,
		inventory:   append([]string(nil), snap.Inventory...),
		dead:        snap.Dead,
		worldSize:   worldSize,
		responses:   appendLast(nil, snap.LastResponse),
		source:      source,
		logger:      logger.Named("player").With(zap.String("uid", snap.UID)),
	}
}

func (p *Player) UID() string               { return p.uid }
func (p *Player) Position() models.Position { return p.position }
func (p *Player) Money() int                { return p.money }
func (p *Player) Health() int               { return p.health }
func (p *Player) IsDead() bool              { return p.dead }

func (p *Player) Inventory() []string {
	return append([]string(nil), p.inventory...)
}

// ApplyMove shifts the player by delta. A move that would leave the grid is
// rejected whole, silently: no sliding along the edge, no error.
func (p *Player) ApplyMove(delta models.Position) {
	if p.dead || (delta == models.Position{}) {
		return
	}
	target := p.position.Add(delta)
	if abs(target.X) > p.worldSize || abs(target.Y) > p.worldSize {
		p.logger.Debug("Rejected out-of-bounds move",
			zap.String("from", p.position.String()), zap.String("delta", delta.String()))
		return
	}
	p.position = target
}

// ApplyMoney adjusts money by delta, clamped at zero.
func (p *Player) ApplyMoney(delta int) {
	if p.dead {
		return
	}
	p.money += delta
	if p.money < 0 {
		p.money = 0
	}
}

// ApplyHealth adjusts health by delta, clamped at zero. Reaching zero kills
// the player: money drops to zero and the dead flag becomes permanent.
func (p *Player) ApplyHealth(delta int) {
	if p.dead {
		return
	}
	p.health += delta
	if p.health <= 0 {
		p.health = 0
		p.die()
	}
}

func (p *Player) die() {
	p.dead = true
	p.money = 0
	p.logger.Info("Player died")
}

// AddItems appends items to the inventory.
func (p *Player) AddItems(items []string) {
	if p.dead {
		return
	}
	p.inventory = append(p.inventory, items...)
}

// RemoveItems removes a single instance of each named item. Items the player
// does not hold are logged and skipped.
func (p *Player) RemoveItems(items []string) {
	if p.dead {
		return
	}
	for _, item := range items {
		removed := false
		for i, held := range p.inventory {
			if held == item {
				p.inventory = append(p.inventory[:i], p.inventory[i+1:]...)
				removed = true
				break
			}
		}
		if !removed {
			p.logger.Warn("Cannot remove item player does not hold", zap.String("item", item))
		}
	}
}

// RequestAction asks the action source for this player's move. Dead players
// answer with the fixed sentinel and no external call is made. Successful
// responses are appended to the player's response history.
func (p *Player) RequestAction(ctx context.Context, pc models.PlayerContext) (string, error) {
	if p.dead {
		return DeadPlayerResponse, nil
	}
	response, err := p.source.RequestAction(ctx, pc)
	if err != nil {
		return "", fmt.Errorf("player %s action request: %w", p.uid, err)
	}
	p.responses = append(p.responses, response)
	return response, nil
}

// RequestNegotiation asks for a negotiation message. Like actions, dead
// players short-circuit to the sentinel.
func (p *Player) RequestNegotiation(ctx context.Context, pc models.PlayerContext) (string, error) {
	if p.dead {
		return DeadPlayerResponse, nil
	}
	message, err := p.source.RequestNegotiation(ctx, pc)
	if err != nil {
		return "", fmt.Errorf("player %s negotiation request: %w", p.uid, err)
	}
	return message, nil
}

// LastResponse returns the most recent action response, or "".
func (p *Player) LastResponse() string {
	if len(p.responses) == 0 {
		return ""
	}
	return p.responses[len(p.responses)-1]
}

func (p *Player) Snapshot() models.PlayerSnapshot {
	return models.PlayerSnapshot{
		UID:            p.uid,
		Position:       p.position,
		Money:          p.money,
		Health:         p.health,
		Inventory:      p.Inventory(),
		Dead:           p.dead,
		CharacterClass: p.class,
		AgentPrompt:    p.agentPrompt,
		LastResponse:   p.LastResponse(),
	}
}

func appendLast(history []string, last string) []string {
	if last == "" {
		return history
	}
	return append(history, last)
}
