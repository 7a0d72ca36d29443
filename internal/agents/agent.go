// Package agents provides AI-backed action sources: each player is driven by
// its own prompt over the shared AI client.
package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"arena-server/internal/arbiter"
	"arena-server/internal/models"
)

// AIAgent answers action and negotiation queries for a single player.
type AIAgent struct {
	uid         string
	systemAct   string
	systemNeg   string
	client      arbiter.AIClient
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

func NewAIAgent(cfg models.PlayerConfig, client arbiter.AIClient, logger *zap.Logger) *AIAgent {
	return &AIAgent{
		uid:         cfg.Name,
		systemAct:   arbiter.PlayerSystemPrompt(cfg.Name, cfg.CharacterClass, cfg.AgentPrompt),
		systemNeg:   arbiter.NegotiationSystemPrompt(cfg.Name, cfg.CharacterClass),
		client:      client,
		temperature: 0.7,
		maxTokens:   200,
		logger:      logger.Named("agent").With(zap.String("uid", cfg.Name)),
	}
}

func (a *AIAgent) RequestAction(ctx context.Context, pc models.PlayerContext) (string, error) {
	return a.generate(ctx, a.systemAct, pc)
}

func (a *AIAgent) RequestNegotiation(ctx context.Context, pc models.PlayerContext) (string, error) {
	return a.generate(ctx, a.systemNeg, pc)
}

func (a *AIAgent) generate(ctx context.Context, systemPrompt string, pc models.PlayerContext) (string, error) {
	input, err := arbiter.FormatContext(pc)
	if err != nil {
		return "", err
	}
	temperature := a.temperature
	maxTokens := a.maxTokens
	text, usage, err := a.client.GenerateText(ctx, "agent:"+a.uid, systemPrompt, input,
		arbiter.GenerationParams{Temperature: &temperature, MaxTokens: &maxTokens})
	if err != nil {
		return "", fmt.Errorf("agent %s generation: %w", a.uid, err)
	}
	response := strings.TrimSpace(text)
	if response == "" {
		return "", fmt.Errorf("agent %s: %w", a.uid, models.ErrEmptyAIResponse)
	}
	a.logger.Debug("Agent response", zap.Int("total_tokens", usage.TotalTokens), zap.Int("chars", len(response)))
	return response, nil
}
