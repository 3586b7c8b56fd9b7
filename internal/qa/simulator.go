package qa

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/josephgoksu/genesis/internal/agentspec"
	"github.com/josephgoksu/genesis/internal/audit"
	"github.com/josephgoksu/genesis/internal/llm"
)

// NoAnswer is the candidate's answer when the gateway reply is unusable.
const NoAnswer = "Unable to provide an answer."

const simulatorStage = "simulator"

var simulatorSchema = map[string]any{
	"type":       "object",
	"required":   []string{"text"},
	"properties": map[string]any{"text": map[string]any{"type": "string"}},
}

// Simulator answers questions in the voice of the candidate specification.
type Simulator struct {
	gw llm.Gateway
}

// NewSimulator returns a Simulator over gw.
func NewSimulator(gw llm.Gateway) *Simulator {
	return &Simulator{gw: gw}
}

// Answer runs q against spec's behavioral prompt and temperature.
func (s *Simulator) Answer(ctx context.Context, spec agentspec.Specification, q Question) (string, agentspec.Usage, error) {
	req := llm.Request{
		Prompt: fmt.Sprintf(`Answer this test question that evaluates your capabilities:

Question: %s

Provide a clear, concise answer. If you're unsure, explain your reasoning.

Return your answer in JSON format: {"text": "your answer"}`, q.Text),
		SystemInstruction: spec.BehavioralPrompt,
		Schema:            simulatorSchema,
	}
	if spec.ModelTemperature > 0 {
		temp := float32(spec.ModelTemperature)
		req.Temperature = &temp
	}

	resp, err := s.gw.GenerateStructured(ctx, req)
	if err != nil {
		return "", agentspec.Usage{}, err
	}
	usage := agentspec.Usage{TotalTokens: resp.TotalTokens, CostUSD: resp.CostUSD, Model: resp.ModelName}

	if text, ok := answerText(resp.Parsed); ok {
		return text, usage, nil
	}
	audit.Fallback(ctx, simulatorStage, []string{"text"},
		&agentspec.MalformedResponseError{Stage: simulatorStage, Fields: []string{"text"}})
	return NoAnswer, usage, nil
}

// answerText accepts {"text": "..."} or a bare JSON string.
func answerText(raw json.RawMessage) (string, bool) {
	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil {
		bare = strings.TrimSpace(bare)
		return bare, bare != ""
	}
	obj, err := llm.AsObject(raw)
	if err != nil {
		return "", false
	}
	text, ok := llm.FirstField[string](obj, "text", "answer")
	text = strings.TrimSpace(text)
	return text, ok && text != ""
}
