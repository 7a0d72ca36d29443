package arbiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"arena-server/internal/config"
	"arena-server/internal/models"
)

type fakeAIClient struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeAIClient) GenerateText(context.Context, string, string, string, GenerationParams) (string, UsageInfo, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", UsageInfo{}, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], UsageInfo{TotalTokens: 10}, nil
	}
	return "", UsageInfo{}, errors.New("fake client exhausted")
}

func testDMConfig() *config.Config {
	return &config.Config{
		AIMaxAttempts:    3,
		AIBaseRetryDelay: time.Millisecond,
		AIModel:          "gpt-4.1-nano",
	}
}

func TestDungeonMaster_GenerateTile(t *testing.T) {
	ctx := context.Background()

	t.Run("parses a clean response", func(t *testing.T) {
		client := &fakeAIClient{responses: []string{
			`{"position": [0, 0], "description": "A sun-bleached salt flat.", "terrainType": "desert", "terrainEmoji": "🏜️"}`,
		}}
		dm := NewDungeonMaster(client, testDMConfig(), zap.NewNop())

		tile, err := dm.GenerateTile(ctx, models.Position{X: 2, Y: -1})
		require.NoError(t, err)
		assert.Equal(t, models.Position{X: 2, Y: -1}, tile.Position)
		assert.Equal(t, "desert", tile.TerrainType)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		client := &fakeAIClient{
			errs: []error{errors.New("timeout"), nil},
			responses: []string{
				"",
				"```json\n{\"position\": [0, 0], \"description\": \"A fog-bound marsh.\"}\n```",
			},
		}
		dm := NewDungeonMaster(client, testDMConfig(), zap.NewNop())

		tile, err := dm.GenerateTile(ctx, models.Position{})
		require.NoError(t, err)
		assert.Equal(t, 2, client.calls)
		assert.Equal(t, "A fog-bound marsh.", tile.Description)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		client := &fakeAIClient{errs: []error{
			errors.New("down"), errors.New("down"), errors.New("down"),
		}}
		dm := NewDungeonMaster(client, testDMConfig(), zap.NewNop())

		_, err := dm.GenerateTile(ctx, models.Position{})
		assert.ErrorIs(t, err, models.ErrArbiterUnavailable)
		assert.Equal(t, 3, client.calls)
	})
}

func TestDungeonMaster_RespondToActions(t *testing.T) {
	ctx := context.Background()

	t.Run("returns extracted JSON untouched", func(t *testing.T) {
		verdict := `{"character_state_change": [], "narrative_result": "Nothing happens."}`
		client := &fakeAIClient{responses: []string{"My ruling follows.\n" + verdict}}
		dm := NewDungeonMaster(client, testDMConfig(), zap.NewNop())

		raw, err := dm.RespondToActions(ctx, models.TurnContext{})
		require.NoError(t, err)
		assert.JSONEq(t, verdict, string(raw))
	})

	t.Run("retries a JSON-free reply", func(t *testing.T) {
		client := &fakeAIClient{responses: []string{
			"I refuse to answer in JSON.",
			`{"character_state_change": [], "narrative_result": ""}`,
		}}
		dm := NewDungeonMaster(client, testDMConfig(), zap.NewNop())

		raw, err := dm.RespondToActions(ctx, models.TurnContext{})
		require.NoError(t, err)
		assert.Equal(t, 2, client.calls)
		assert.NotEmpty(t, raw)
	})
}

func TestMockClient_FullLoop(t *testing.T) {
	ctx := context.Background()
	dm := NewDungeonMaster(NewMockClient(), testDMConfig(), zap.NewNop())

	tile, err := dm.GenerateTile(ctx, models.Position{X: 1, Y: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, tile.Description)
	assert.NotEmpty(t, tile.Secrets)

	raw, err := dm.RespondToActions(ctx, models.TurnContext{
		Players: map[string]models.PlayerSnapshot{
			"ada": {UID: "ada"}, "bob": {UID: "bob"},
		},
	})
	require.NoError(t, err)

	verdict, err := models.ParseVerdict(raw)
	require.NoError(t, err)
	require.NotNil(t, verdict)
	require.True(t, verdict.HasCharacterDeltas)
	require.Len(t, verdict.CharacterDeltas, 2)
	assert.Equal(t, "ada", verdict.CharacterDeltas[0].Delta.UID)
	assert.Equal(t, 10, verdict.CharacterDeltas[0].Delta.MoneyChange)
}
