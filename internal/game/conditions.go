package game

import (
	"sort"

	"arena-server/internal/models"
)

// Condition names, persisted as the game-over reason.
const (
	ConditionCurrencyGoal   = "currency_goal"
	ConditionAllPlayersDead = "all_players_dead"
	ConditionMaxTurns       = "max_turns"
)

// Condition is one terminal check. Lower priority values are checked first.
type Condition interface {
	Name() string
	Priority() int
	Check(g *Game) (bool, *models.WinnerInfo)
}

// ConditionEvaluator scans its conditions in ascending priority order after
// every turn; the first match ends the game.
type ConditionEvaluator struct {
	conditions []Condition
}

// ConditionResult reports which condition ended the game.
type ConditionResult struct {
	Name   string
	Winner *models.WinnerInfo
}

func NewConditionEvaluator(conditions ...Condition) *ConditionEvaluator {
	sorted := append([]Condition(nil), conditions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &ConditionEvaluator{conditions: sorted}
}

// DefaultConditions is the standard rule set: a currency win beats a
// mutual-death draw, which beats turn exhaustion.
func DefaultConditions(currencyTarget, maxTurns int) []Condition {
	return []Condition{
		CurrencyGoalCondition{Target: currencyTarget},
		AllPlayersDeadCondition{},
		MaxTurnsCondition{Max: maxTurns},
	}
}

func (e *ConditionEvaluator) Evaluate(g *Game) *ConditionResult {
	for _, cond := range e.conditions {
		if matched, winner := cond.Check(g); matched {
			return &ConditionResult{Name: cond.Name(), Winner: winner}
		}
	}
	return nil
}

// CurrencyGoalCondition ends the game when any player reaches the target.
type CurrencyGoalCondition struct {
	Target int
}

func (CurrencyGoalCondition) Name() string  { return ConditionCurrencyGoal }
func (CurrencyGoalCondition) Priority() int { return 1 }

func (c CurrencyGoalCondition) Check(g *Game) (bool, *models.WinnerInfo) {
	var winners []string
	for uid, p := range g.players {
		if p.Money() >= c.Target {
			winners = append(winners, uid)
		}
	}
	if len(winners) == 0 {
		return false, nil
	}
	return true, g.winnerInfo(winners)
}

// AllPlayersDeadCondition ends the game in a draw when nobody is left alive.
type AllPlayersDeadCondition struct{}

func (AllPlayersDeadCondition) Name() string  { return ConditionAllPlayersDead }
func (AllPlayersDeadCondition) Priority() int { return 5 }

func (AllPlayersDeadCondition) Check(g *Game) (bool, *models.WinnerInfo) {
	for _, p := range g.players {
		if !p.IsDead() {
			return false, nil
		}
	}
	return true, nil
}

// MaxTurnsCondition ends the game after the configured number of turns; the
// richest player takes the win.
type MaxTurnsCondition struct {
	Max int
}

func (MaxTurnsCondition) Name() string  { return ConditionMaxTurns }
func (MaxTurnsCondition) Priority() int { return 10 }

func (c MaxTurnsCondition) Check(g *Game) (bool, *models.WinnerInfo) {
	if g.turn < c.Max {
		return false, nil
	}
	return true, g.winnerInfo(g.sortedUIDs())
}

// winnerInfo ranks the given uids: most money first, ties broken by the
// lexically smallest uid so repeated runs crown the same winner.
func (g *Game) winnerInfo(uids []string) *models.WinnerInfo {
	if len(uids) == 0 {
		return nil
	}
	ranked := append([]string(nil), uids...)
	sort.Slice(ranked, func(i, j int) bool {
		mi, mj := g.players[ranked[i]].Money(), g.players[ranked[j]].Money()
		if mi != mj {
			return mi > mj
		}
		return ranked[i] < ranked[j]
	})
	sortedUIDs := append([]string(nil), uids...)
	sort.Strings(sortedUIDs)
	return &models.WinnerInfo{
		WinnerUIDs:     sortedUIDs,
		TopWinnerUID:   ranked[0],
		TopWinnerMoney: g.players[ranked[0]].Money(),
	}
}
