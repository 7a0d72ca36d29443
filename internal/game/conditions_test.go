package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"arena-server/internal/models"
)

func newConditionTestGame(t *testing.T, maxTurns, target int, names ...string) *Game {
	t.Helper()
	roster := make([]models.PlayerConfig, len(names))
	sources := make(map[string]ActionSource, len(names))
	for i, name := range names {
		roster[i] = models.PlayerConfig{Name: name, StartingHealth: 100}
		sources[name] = &scriptedSource{}
	}
	g, err := New(uuid.New(), Config{
		WorldSize:      2,
		NumResponses:   1,
		MaxTurns:       maxTurns,
		CurrencyTarget: target,
	}, roster, Deps{
		Sources: sources,
		Arbiter: &stubArbiter{},
		Store:   &memStore{},
		Logger:  zap.NewNop(),
	})
	require.NoError(t, err)
	return g
}

func TestConditionEvaluator(t *testing.T) {
	t.Run("no condition matches mid-game", func(t *testing.T) {
		g := newConditionTestGame(t, 10, 1000, "ada", "bob")
		g.turn = 3
		assert.Nil(t, g.evaluator.Evaluate(g))
	})

	t.Run("currency goal beats max turns", func(t *testing.T) {
		g := newConditionTestGame(t, 5, 100, "ada", "bob")
		g.turn = 5
		g.players["ada"].ApplyMoney(100)

		result := g.evaluator.Evaluate(g)
		require.NotNil(t, result)
		assert.Equal(t, ConditionCurrencyGoal, result.Name)
		require.NotNil(t, result.Winner)
		assert.Equal(t, "ada", result.Winner.TopWinnerUID)
		assert.Equal(t, 100, result.Winner.TopWinnerMoney)
	})

	t.Run("currency tie goes to lexically smallest uid", func(t *testing.T) {
		g := newConditionTestGame(t, 10, 100, "zoe", "ada", "bob")
		g.players["zoe"].ApplyMoney(100)
		g.players["ada"].ApplyMoney(100)

		result := g.evaluator.Evaluate(g)
		require.NotNil(t, result)
		require.NotNil(t, result.Winner)
		assert.Equal(t, "ada", result.Winner.TopWinnerUID)
		assert.Equal(t, []string{"ada", "zoe"}, result.Winner.WinnerUIDs)
	})

	t.Run("higher money beats lexical order", func(t *testing.T) {
		g := newConditionTestGame(t, 10, 100, "ada", "zoe")
		g.players["ada"].ApplyMoney(100)
		g.players["zoe"].ApplyMoney(250)

		result := g.evaluator.Evaluate(g)
		require.NotNil(t, result)
		require.NotNil(t, result.Winner)
		assert.Equal(t, "zoe", result.Winner.TopWinnerUID)
	})

	t.Run("all players dead is a draw", func(t *testing.T) {
		g := newConditionTestGame(t, 10, 1000, "ada", "bob")
		g.players["ada"].ApplyHealth(-200)
		g.players["bob"].ApplyHealth(-200)

		result := g.evaluator.Evaluate(g)
		require.NotNil(t, result)
		assert.Equal(t, ConditionAllPlayersDead, result.Name)
		assert.Nil(t, result.Winner)
	})

	t.Run("max turns crowns the richest player", func(t *testing.T) {
		g := newConditionTestGame(t, 4, 1000, "ada", "bob")
		g.turn = 4
		g.players["bob"].ApplyMoney(40)

		result := g.evaluator.Evaluate(g)
		require.NotNil(t, result)
		assert.Equal(t, ConditionMaxTurns, result.Name)
		require.NotNil(t, result.Winner)
		assert.Equal(t, "bob", result.Winner.TopWinnerUID)
		assert.Equal(t, 40, result.Winner.TopWinnerMoney)
	})
}
