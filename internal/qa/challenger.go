package qa

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/josephgoksu/genesis/internal/agentspec"
	"github.com/josephgoksu/genesis/internal/audit"
	"github.com/josephgoksu/genesis/internal/llm"
)

// DefaultQuestions is the batch size used when none is configured.
const DefaultQuestions = 5

const challengerStage = "challenger"

const challengerSystem = "Return only a valid JSON array. No markdown formatting. No code blocks."

var challengerSchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type":     "object",
		"required": []string{"q", "answer", "difficulty"},
		"properties": map[string]any{
			"q":          map[string]any{"type": "string"},
			"answer":     map[string]any{"type": "string"},
			"difficulty": map[string]any{"type": "number"},
			"source":     map[string]any{"type": "string"},
		},
	},
}

// Challenger asks the gateway for a fresh batch of questions on every call.
type Challenger struct {
	gw    llm.Gateway
	batch int
}

// NewChallenger returns a Challenger producing batch questions per call.
func NewChallenger(gw llm.Gateway, batch int) *Challenger {
	if batch <= 0 {
		batch = DefaultQuestions
	}
	return &Challenger{gw: gw, batch: batch}
}

// Generate returns exactly the configured number of questions. Gateway
// faults are returned; malformed output is repaired with fallback questions.
func (c *Challenger) Generate(ctx context.Context, spec agentspec.Specification) ([]Question, agentspec.Usage, error) {
	temp := float32(0.9)
	resp, err := c.gw.GenerateStructured(ctx, llm.Request{
		Prompt:            c.prompt(spec),
		SystemInstruction: challengerSystem,
		Schema:            challengerSchema,
		Temperature:       &temp,
	})
	if err != nil {
		return nil, agentspec.Usage{}, err
	}
	usage := agentspec.Usage{TotalTokens: resp.TotalTokens, CostUSD: resp.CostUSD, Model: resp.ModelName}

	questions, malformed := c.parse(resp.Parsed)
	if len(questions) == 0 {
		if malformed == nil {
			malformed = &agentspec.MalformedResponseError{Stage: challengerStage, Fields: []string{"questions"}}
		}
		audit.Fallback(ctx, challengerStage, malformed.Fields, malformed)
		return c.fallback(spec), usage, nil
	}
	if len(questions) < c.batch {
		if malformed == nil {
			malformed = &agentspec.MalformedResponseError{Stage: challengerStage}
		}
		malformed.Fields = append(malformed.Fields, fmt.Sprintf("questions (got %d of %d)", len(questions), c.batch))
		audit.Fallback(ctx, challengerStage, malformed.Fields, malformed)
		questions = pad(questions, c.batch, spec.AgentType)
	}
	questions = questions[:c.batch]

	slog.DebugContext(ctx, "challenge questions generated",
		"count", len(questions),
		"avg_difficulty", meanDifficulty(questions))
	return questions, usage, nil
}

func (c *Challenger) prompt(spec agentspec.Specification) string {
	return fmt.Sprintf(`Generate %d technical interview questions for an AI agent.

Role: %s
Capabilities: %s

REQUIREMENTS:
1. Mix difficulty levels (easy 0.2-0.4, medium 0.5-0.6, hard 0.7-0.9)
2. Base on real interview questions (Google, Amazon, StackOverflow, LeetCode)
3. Target 50%% pass rate overall
4. Keep answers concise (1-2 sentences max)

Example format:
[
  {"q": "Question text here", "answer": "Brief answer", "difficulty": 0.3, "source": "Google"},
  {"q": "Another question", "answer": "Brief answer", "difficulty": 0.6, "source": "LeetCode"}
]

Generate %d questions now:`, c.batch, spec.AgentType, strings.Join(spec.Capabilities, ", "), c.batch)
}

// parse keeps every usable item. The returned error lists what was dropped.
func (c *Challenger) parse(raw json.RawMessage) ([]Question, *agentspec.MalformedResponseError) {
	items, err := llm.AsArray(raw)
	if err != nil {
		obj, oerr := llm.AsObject(raw)
		if oerr != nil {
			return nil, &agentspec.MalformedResponseError{Stage: challengerStage, Fields: []string{"questions"}, Err: err}
		}
		if nested, ok := llm.Field[[]json.RawMessage](obj, "questions"); ok {
			items = nested
		} else {
			items = []json.RawMessage{raw}
		}
	}

	var (
		out     []Question
		invalid int
	)
	for _, item := range items {
		q, ok := parseQuestion(item)
		if !ok {
			invalid++
			continue
		}
		out = append(out, q)
	}
	if invalid == 0 {
		return out, nil
	}
	return out, &agentspec.MalformedResponseError{
		Stage:  challengerStage,
		Fields: []string{fmt.Sprintf("q/answer (%d invalid items)", invalid)},
	}
}

func parseQuestion(raw json.RawMessage) (Question, bool) {
	obj, err := llm.AsObject(raw)
	if err != nil {
		return Question{}, false
	}
	text, _ := llm.FirstField[string](obj, "q", "question")
	answer, _ := llm.FirstField[string](obj, "answer", "expected_answer")
	text, answer = strings.TrimSpace(text), strings.TrimSpace(answer)
	if text == "" || answer == "" {
		return Question{}, false
	}

	difficulty, ok := llm.Field[float64](obj, "difficulty")
	if !ok {
		difficulty = 0.5
	}
	source, _ := llm.FirstField[string](obj, "source", "tests_capability")
	source = strings.TrimSpace(source)
	if source == "" {
		source = "Generated"
	}

	return Question{
		Text:           text,
		ExpectedAnswer: answer,
		Difficulty:     clamp01(difficulty),
		SourceTag:      source,
	}, true
}

var tierNames = [...]string{"basic", "intermediate", "advanced"}

func tierDifficulty(pos int) float64 {
	switch pos {
	case 0:
		return 0.3
	case 1:
		return 0.6
	}
	return 0.8
}

// pad appends generic questions until there are n.
func pad(questions []Question, n int, agentType string) []Question {
	for len(questions) < n {
		pos := len(questions)
		questions = append(questions, Question{
			Text:           fmt.Sprintf("Explain a %s concept related to %s", tierNames[pos%len(tierNames)], agentType),
			ExpectedAnswer: "Detailed technical explanation",
			Difficulty:     tierDifficulty(pos),
			SourceTag:      "Fallback",
		})
	}
	return questions
}

// fallback is the tiered batch used when nothing usable came back.
func (c *Challenger) fallback(spec agentspec.Specification) []Question {
	capability := "your skills"
	if len(spec.Capabilities) > 0 {
		capability = spec.Capabilities[0]
	}
	questions := []Question{
		{
			Text:           fmt.Sprintf("Basic task: Explain the fundamentals of %s", spec.AgentType),
			ExpectedAnswer: "Clear explanation of core concepts",
			Difficulty:     0.3,
			SourceTag:      "Fallback",
		},
		{
			Text:           fmt.Sprintf("Intermediate: Apply %s to solve a problem", capability),
			ExpectedAnswer: "Practical application with reasoning",
			Difficulty:     0.6,
			SourceTag:      "Fallback",
		},
		{
			Text:           fmt.Sprintf("Advanced: Optimize and debug complex %s scenarios", spec.AgentType),
			ExpectedAnswer: "Deep technical solution with edge cases",
			Difficulty:     0.8,
			SourceTag:      "Fallback",
		},
	}
	if len(questions) > c.batch {
		return questions[:c.batch]
	}
	return pad(questions, c.batch, spec.AgentType)
}

func meanDifficulty(qs []Question) float64 {
	ds := make([]float64, len(qs))
	for i, q := range qs {
		ds[i] = q.Difficulty
	}
	return Mean(ds)
}
