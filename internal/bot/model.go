package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"gpt-generals/internal/config"
	"gpt-generals/internal/game"
)

// ModelPolicy asks an external chat-completions service (OpenRouter by
// default) for a move. The call is plain request/response under the
// caller's context deadline; the runner falls back to random on any
// failure, so errors here are never fatal.
type ModelPolicy struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

func NewModelPolicy(cfg config.Model) *ModelPolicy {
	return &ModelPolicy{
		client:  &http.Client{},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Name,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// moveDecision is the structured response the model must return.
type moveDecision struct {
	Direction string `json:"direction"`
	Reasoning string `json:"reasoning"`
}

func (p *ModelPolicy) Decide(ctx context.Context, snap *game.State, unitName string) (game.Direction, bool, error) {
	unit, ok := snap.Units[unitName]
	if !ok {
		return "", false, game.ErrUnitNotFound
	}

	reqBody := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(snap, unit)},
		},
		ResponseFormat: &struct {
			Type string `json:"type"`
		}{Type: "json_object"},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", false, fmt.Errorf("model service returned %d: %s", resp.StatusCode, body)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", false, fmt.Errorf("decoding model response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", false, fmt.Errorf("model response has no choices")
	}

	var decision moveDecision
	if err := json.Unmarshal([]byte(cr.Choices[0].Message.Content), &decision); err != nil {
		return "", false, fmt.Errorf("parsing move decision: %w", err)
	}
	switch dir := game.Direction(decision.Direction); dir {
	case game.DirUp, game.DirDown, game.DirLeft, game.DirRight:
		return dir, true, nil
	case "wait":
		return "", false, nil
	default:
		return "", false, fmt.Errorf("model chose invalid direction %q", decision.Direction)
	}
}
