package qa

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/cloudwego/eino/components/embedding"

	"github.com/josephgoksu/genesis/internal/agentspec"
	"github.com/josephgoksu/genesis/internal/audit"
	"github.com/josephgoksu/genesis/internal/llm"
)

// Judgement is a judge's view of a single answer.
type Judgement struct {
	Correct   bool
	Score     float64
	Reasoning string
	Usage     agentspec.Usage
}

// Judge scores an answer against a question's expected answer.
type Judge interface {
	Judge(ctx context.Context, q Question, answer string) (Judgement, error)
}

const evaluatorStage = "evaluator"

var evaluatorSchema = map[string]any{
	"type":     "object",
	"required": []string{"correct", "score"},
	"properties": map[string]any{
		"correct":   map[string]any{"type": "boolean"},
		"score":     map[string]any{"type": "number"},
		"reasoning": map[string]any{"type": "string"},
	},
}

// LLMJudge asks the gateway to grade answers.
type LLMJudge struct {
	gw llm.Gateway
}

// NewLLMJudge returns a gateway-backed judge.
func NewLLMJudge(gw llm.Gateway) *LLMJudge {
	return &LLMJudge{gw: gw}
}

func (j *LLMJudge) Judge(ctx context.Context, q Question, answer string) (Judgement, error) {
	temp := float32(0)
	resp, err := j.gw.GenerateStructured(ctx, llm.Request{
		Prompt: fmt.Sprintf(`You are an expert evaluator. Compare the agent's response to the expected answer.

Question: %s
Expected Answer: %s
Agent's Response: %s

Evaluate the agent's response on:
1. Correctness: Does it answer the question correctly?
2. Similarity: Is it semantically similar to the expected answer?
3. Completeness: Does it cover the key points?

Return JSON with:
- "correct": boolean (true if the response is acceptable)
- "score": float 0.0-1.0 (quality score)
- "reasoning": string (brief explanation)`, q.Text, q.ExpectedAnswer, answer),
		SystemInstruction: "You are a strict but fair evaluator.",
		Schema:            evaluatorSchema,
		Temperature:       &temp,
	})
	if err != nil {
		return Judgement{}, err
	}
	usage := agentspec.Usage{TotalTokens: resp.TotalTokens, CostUSD: resp.CostUSD, Model: resp.ModelName}

	var missing []string
	obj, err := llm.AsObject(resp.Parsed)
	if err != nil {
		missing = []string{"correct", "score"}
	} else {
		correct, okCorrect := llm.Field[bool](obj, "correct")
		score, okScore := llm.Field[float64](obj, "score")
		if okCorrect && okScore {
			reasoning, _ := llm.Field[string](obj, "reasoning")
			return Judgement{Correct: correct, Score: clamp01(score), Reasoning: reasoning, Usage: usage}, nil
		}
		if !okCorrect {
			missing = append(missing, "correct")
		}
		if !okScore {
			missing = append(missing, "score")
		}
	}

	audit.Fallback(ctx, evaluatorStage, missing,
		&agentspec.MalformedResponseError{Stage: evaluatorStage, Fields: missing, Err: err})
	out := SubstringJudgement(q, answer)
	out.Usage = usage
	return out, nil
}

// SubstringJudgement is the deterministic fallback: correct when the
// expected answer appears in the response, ignoring case.
func SubstringJudgement(q Question, answer string) Judgement {
	if strings.Contains(strings.ToLower(answer), strings.ToLower(q.ExpectedAnswer)) {
		return Judgement{Correct: true, Score: 1, Reasoning: "substring match"}
	}
	return Judgement{Correct: false, Score: 0, Reasoning: "no substring match"}
}

// DefaultSimilarityThreshold is the cosine similarity treated as correct.
const DefaultSimilarityThreshold = 0.8

// EmbeddingJudge grades by cosine similarity between the expected answer
// and the response.
type EmbeddingJudge struct {
	embedder  embedding.Embedder
	model     string
	threshold float64
}

// NewEmbeddingJudge returns a judge over embedder. A threshold outside
// (0, 1] selects DefaultSimilarityThreshold.
func NewEmbeddingJudge(embedder embedding.Embedder, model string, threshold float64) *EmbeddingJudge {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &EmbeddingJudge{embedder: embedder, model: model, threshold: threshold}
}

func (j *EmbeddingJudge) Judge(ctx context.Context, q Question, answer string) (Judgement, error) {
	if strings.TrimSpace(answer) == "" {
		return Judgement{Reasoning: "empty answer"}, nil
	}
	vecs, err := j.embedder.EmbedStrings(ctx, []string{q.ExpectedAnswer, answer})
	if err != nil {
		return Judgement{}, llm.Classify(err, j.model)
	}
	if len(vecs) != 2 || len(vecs[0]) == 0 || len(vecs[0]) != len(vecs[1]) {
		missing := []string{"embeddings"}
		audit.Fallback(ctx, evaluatorStage, missing,
			&agentspec.MalformedResponseError{Stage: evaluatorStage, Fields: missing})
		return SubstringJudgement(q, answer), nil
	}

	sim := CosineSimilarity(vecs[0], vecs[1])
	return Judgement{
		Correct:   sim >= j.threshold,
		Score:     clamp01(sim),
		Reasoning: fmt.Sprintf("cosine similarity %.3f (threshold %.2f)", sim, j.threshold),
		Usage: agentspec.Usage{
			TotalTokens: llm.EstimateTokens(q.ExpectedAnswer) + llm.EstimateTokens(answer),
			Model:       j.model,
		},
	}, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either is a zero vector or the lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
