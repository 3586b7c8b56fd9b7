package app

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestCreateBatch_IsolatesRequests(t *testing.T) {
	f := newFixture(t, scriptedGateway(interpretation, gradeBy("Q1", "Q2", "Q4")), nil)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	instructions := []string{
		reviewerInstruction,
		"short",
		"Summarise weekly sales reports for managers",
		"Draft polite replies to customer complaints",
	}

	items, err := f.app.CreateBatch(context.Background(), instructions, 2)
	require.NoError(t, err)
	require.Len(t, items, 4)

	seen := map[string]bool{}
	for i, it := range items {
		assert.Equal(t, i, it.Index)
		assert.Equal(t, instructions[i], it.Instruction)
		if i == 1 {
			assert.False(t, it.Succeeded())
			assert.Equal(t, FailureValidation, it.FailureKind)
			assert.Contains(t, it.Error, "too short")
			continue
		}
		require.True(t, it.Succeeded(), "item %d: %s", i, it.Error)
		assert.False(t, seen[it.Result.AgentID], "agent ids are unique")
		seen[it.Result.AgentID] = true
		assert.NotEqual(t, items[0].Result.RequestID, "", "request ids assigned")
	}
	assert.Len(t, f.tel.events, 4)
}

func TestCreateBatch_CancelledContext(t *testing.T) {
	f := newFixture(t, scriptedGateway(interpretation, gradeBy("Q1")), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items, err := f.app.CreateBatch(ctx, []string{reviewerInstruction, reviewerInstruction}, 1)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, items, 2)
	assert.Equal(t, reviewerInstruction, items[1].Instruction)
	assert.Nil(t, items[1].Result)
}

func TestReadInstructions(t *testing.T) {
	in := strings.NewReader("# agents to build\nReview Go code for races\n\n  Translate tickets into English  \n")
	got, err := ReadInstructions(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"Review Go code for races", "Translate tickets into English"}, got)
}
