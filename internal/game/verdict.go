package game

import (
	"go.uber.org/zap"

	"arena-server/internal/models"
)

// VerdictApplier turns raw arbiter output into state mutations. It sits in
// the data-tolerant tier: a defective entry is logged and skipped, and the
// rest of the verdict still lands. The only fatal outcome is input whose
// top-level shape cannot be coerced into an object at all.
type VerdictApplier struct {
	logger *zap.Logger
}

func NewVerdictApplier(logger *zap.Logger) *VerdictApplier {
	return &VerdictApplier{logger: logger.Named("verdict")}
}

// Apply parses raw and mutates players and world accordingly. It returns the
// parsed verdict so the caller can persist its decomposed components.
//
// A nil or JSON-null input is a no-op. A verdict without a character delta
// list is also a no-op, world changes included: a ruling that cannot name its
// subjects is not trusted with the world either.
func (a *VerdictApplier) Apply(raw []byte, players map[string]*Player, world *WorldGrid) (*models.Verdict, error) {
	verdict, err := models.ParseVerdict(raw)
	if err != nil {
		return nil, err
	}
	if verdict == nil {
		a.logger.Debug("Empty verdict, nothing to apply")
		return nil, nil
	}
	if !verdict.HasCharacterDeltas {
		a.logger.Warn("Verdict carried no character delta list, skipping application")
		return verdict, nil
	}

	var unknownUIDs []string
	skippedNoSubject := 0
	skippedMalformed := 0
	for _, entry := range verdict.CharacterDeltas {
		switch entry.Status {
		case models.DeltaMalformed:
			skippedMalformed++
			continue
		case models.DeltaNoSubject:
			skippedNoSubject++
			continue
		}
		player, ok := players[entry.Delta.UID]
		if !ok {
			unknownUIDs = append(unknownUIDs, entry.Delta.UID)
			continue
		}
		a.applyCharacterDelta(player, entry.Delta)
	}
	if skippedMalformed > 0 {
		a.logger.Warn("Skipped malformed character delta entries", zap.Int("count", skippedMalformed))
	}
	if skippedNoSubject > 0 {
		a.logger.Debug("Skipped character deltas without a subject", zap.Int("count", skippedNoSubject))
	}
	if len(unknownUIDs) > 0 {
		a.logger.Warn("Verdict targeted unknown player uids", zap.Strings("uids", unknownUIDs))
	}

	a.applyWorldDelta(verdict, world)
	return verdict, nil
}

// applyCharacterDelta applies one entry in fixed order: position first, then
// money, then health. Health goes last so a killing blow zeroes the money the
// same entry just granted.
func (a *VerdictApplier) applyCharacterDelta(player *Player, delta models.CharacterDelta) {
	player.ApplyMove(delta.PositionChange)
	player.ApplyMoney(delta.MoneyChange)
	player.ApplyHealth(delta.HealthChange)
	if len(delta.InventoryAdd) > 0 {
		player.AddItems(delta.InventoryAdd)
	}
	if len(delta.InventoryRemove) > 0 {
		player.RemoveItems(delta.InventoryRemove)
	}
}

func (a *VerdictApplier) applyWorldDelta(verdict *models.Verdict, world *WorldGrid) {
	if verdict.MalformedTiles > 0 {
		a.logger.Warn("Dropped malformed world delta tiles", zap.Int("count", verdict.MalformedTiles))
	}
	if verdict.World == nil {
		return
	}
	untracked := 0
	for _, tile := range verdict.World.Tiles {
		if !world.ApplyDescriptionUpdate(tile) {
			untracked++
		}
	}
	if untracked > 0 {
		a.logger.Debug("Ignored world delta tiles for untracked coordinates", zap.Int("count", untracked))
	}
}
