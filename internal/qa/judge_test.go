package qa

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/genesis/internal/audit"
	"github.com/josephgoksu/genesis/internal/llm"
	"github.com/josephgoksu/genesis/internal/llm/llmtest"
)

var gilQuestion = Question{Text: "Explain GIL", ExpectedAnswer: "Global Interpreter Lock", Difficulty: 0.6}

func TestSimulator_Answer(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"text object", `{"text": "  It is the Global Interpreter Lock.  "}`, "It is the Global Interpreter Lock."},
		{"answer alias", `{"answer": "lock"}`, "lock"},
		{"bare string", `"just words"`, "just words"},
		{"missing text", `{"reply": "hm"}`, NoAnswer},
		{"empty text", `{"text": ""}`, NoAnswer},
		{"array", `["a"]`, NoAnswer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := llmtest.New().OnJSON("Answer this test question", tt.body)
			trail := audit.NewTrail("r")
			ctx := audit.WithRecorder(context.Background(), trail)

			got, usage, err := NewSimulator(gw).Answer(ctx, reviewer, gilQuestion)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, llmtest.ModelName, usage.Model)
			assert.Equal(t, tt.want == NoAnswer, len(trail.Filter(audit.KindFallback)) == 1)
		})
	}
}

func TestSimulator_UsesSpecPromptAndTemperature(t *testing.T) {
	gw := llmtest.New().OnJSON("Answer this test question", `{"text": "ok"}`)
	_, _, err := NewSimulator(gw).Answer(context.Background(), reviewer, gilQuestion)
	require.NoError(t, err)

	calls := gw.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, reviewer.BehavioralPrompt, calls[0].SystemInstruction)
	assert.Contains(t, calls[0].Prompt, "Question: Explain GIL")
	require.NotNil(t, calls[0].Temperature)
	assert.InDelta(t, 0.3, float64(*calls[0].Temperature), 1e-6)
}

func TestSimulator_GatewayFault(t *testing.T) {
	gw := llmtest.New().On("Answer this test question", llmtest.Fail(errors.New("connection refused")))
	_, _, err := NewSimulator(gw).Answer(context.Background(), reviewer, gilQuestion)
	assert.True(t, llm.IsGatewayFault(err))
}

func TestLLMJudge(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		answer       string
		wantCorrect  bool
		wantScore    float64
		wantFallback bool
	}{
		{"well formed", `{"correct": true, "score": 0.85, "reasoning": "close"}`, "anything", true, 0.85, false},
		{"score clamped", `{"correct": false, "score": 3}`, "anything", false, 1, false},
		{"missing score falls back to substring hit", `{"correct": true}`, "the global interpreter lock, basically", true, 1, true},
		{"mistyped correct falls back to substring miss", `{"correct": "yes", "score": 0.9}`, "no idea", false, 0, true},
		{"array falls back", `[true]`, "no idea", false, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := llmtest.New().OnJSON("strict but fair evaluator", tt.body)
			trail := audit.NewTrail("r")
			ctx := audit.WithRecorder(context.Background(), trail)

			j, err := NewLLMJudge(gw).Judge(ctx, gilQuestion, tt.answer)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCorrect, j.Correct)
			assert.InDelta(t, tt.wantScore, j.Score, 1e-9)
			assert.Equal(t, 10, j.Usage.TotalTokens)
			assert.Equal(t, tt.wantFallback, len(trail.Filter(audit.KindFallback)) == 1)
		})
	}
}

func TestLLMJudge_GatewayFault(t *testing.T) {
	gw := llmtest.New().On("strict but fair evaluator", llmtest.Fail(errors.New("429 too many requests")))
	_, err := NewLLMJudge(gw).Judge(context.Background(), gilQuestion, "x")

	var fault *llm.GatewayFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, llm.FaultRateLimit, fault.Kind)
}

func TestSubstringJudgement(t *testing.T) {
	assert.True(t, SubstringJudgement(gilQuestion, "It is the GLOBAL interpreter LOCK").Correct)
	miss := SubstringJudgement(gilQuestion, "a mutex")
	assert.False(t, miss.Correct)
	assert.Equal(t, 0.0, miss.Score)
}

// fakeEmbedder returns fixed vectors keyed by text.
type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = f.vectors[t]
	}
	return out, nil
}

func TestEmbeddingJudge(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float64{
		"Global Interpreter Lock": {1, 0, 0},
		"the GIL":                 {0.9, 0.1, 0},
		"a banana":                {0, 1, 0},
	}}
	j := NewEmbeddingJudge(emb, "text-embedding-004", 0)

	near, err := j.Judge(context.Background(), gilQuestion, "the GIL")
	require.NoError(t, err)
	assert.True(t, near.Correct)
	assert.Greater(t, near.Score, 0.9)
	assert.Equal(t, "text-embedding-004", near.Usage.Model)

	far, err := j.Judge(context.Background(), gilQuestion, "a banana")
	require.NoError(t, err)
	assert.False(t, far.Correct)
	assert.Equal(t, 0.0, far.Score)

	empty, err := j.Judge(context.Background(), gilQuestion, "   ")
	require.NoError(t, err)
	assert.False(t, empty.Correct)
}

func TestEmbeddingJudge_Errors(t *testing.T) {
	j := NewEmbeddingJudge(&fakeEmbedder{err: errors.New("401 unauthorized")}, "m", 0.9)
	_, err := j.Judge(context.Background(), gilQuestion, "x")
	var fault *llm.GatewayFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, llm.FaultAuth, fault.Kind)

	// Missing vectors fall back to substring matching.
	j = NewEmbeddingJudge(&fakeEmbedder{vectors: map[string][]float64{}}, "m", 0.9)
	got, err := j.Judge(context.Background(), gilQuestion, "global interpreter lock")
	require.NoError(t, err)
	assert.True(t, got.Correct)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-12)
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1}, []float64{1, 1}))
}
