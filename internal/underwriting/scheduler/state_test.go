package scheduler

import (
	"errors"
	"testing"

	apperrors "loan-underwriting/internal/common/errors"
	"loan-underwriting/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T, tasks ...models.UnderwritingTask) *runState {
	t.Helper()
	order := make([]string, 0, len(tasks))
	for _, task := range tasks {
		order = append(order, task.ID)
	}
	return newRunState(tasks, order)
}

func TestState_SeedOnlyReadyAutomatable(t *testing.T) {
	s := newTestState(t, eva("a"), eva("b", "a"), human("h"), eva("c"))
	ready := s.seed()

	var ids []string
	for _, i := range ready {
		ids = append(ids, s.nodes[i].task.ID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestState_ApplyTransitions(t *testing.T) {
	s := newTestState(t, eva("a"), eva("b", "a"), eva("c", "a", "b"))
	s.seed()
	a, b, c := s.index["a"], s.index["b"], s.index["c"]

	_, err := s.apply(transition{kind: transitionDispatch, idx: b})
	require.Error(t, err, "b still waits on a")

	_, err = s.apply(transition{kind: transitionDispatch, idx: a})
	require.NoError(t, err)
	assert.Equal(t, 1, s.inFlight)

	_, err = s.apply(transition{kind: transitionDispatch, idx: a})
	require.Error(t, err, "no second dispatch")

	ready, err := s.apply(transition{kind: transitionFinish, idx: a, result: models.TaskAutomationResult{Status: models.ResultStatusCompleted}})
	require.NoError(t, err)
	assert.Equal(t, []int{b}, ready, "c still waits on b")
	assert.Equal(t, 0, s.inFlight)
	assert.Equal(t, 1, s.nodes[c].remaining)

	_, err = s.apply(transition{kind: transitionFinish, idx: a})
	require.Error(t, err, "a is no longer in progress")
}

func TestState_FailureBlocksTransitively(t *testing.T) {
	s := newTestState(t, eva("a"), eva("b", "a"), eva("c", "b"), eva("d"))
	s.seed()

	_, err := s.apply(transition{kind: transitionDispatch, idx: s.index["a"]})
	require.NoError(t, err)
	_, err = s.apply(transition{kind: transitionFinish, idx: s.index["a"], result: models.TaskAutomationResult{Status: models.ResultStatusFailed}})
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusFailed, s.nodes[s.index["a"]].status)
	assert.Equal(t, models.TaskStatusBlocked, s.nodes[s.index["b"]].status)
	assert.Equal(t, models.TaskStatusBlocked, s.nodes[s.index["c"]].status)
	assert.Equal(t, models.TaskStatusPending, s.nodes[s.index["d"]].status)
	assert.Equal(t, "blocked by failed prerequisite a", s.humanReason(s.index["c"]))
}

func TestState_ExternalCompletion(t *testing.T) {
	s := newTestState(t, human("h"), eva("x", "h"), human("later", "x"))
	s.seed()

	_, err := s.apply(transition{kind: transitionExternalComplete, idx: s.index["later"], result: externalResult("later")})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	ready, err := s.apply(transition{kind: transitionExternalComplete, idx: s.index["h"], result: externalResult("h")})
	require.NoError(t, err)
	assert.Equal(t, []int{s.index["x"]}, ready)

	_, err = s.apply(transition{kind: transitionExternalComplete, idx: s.index["h"], result: externalResult("h")})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput), "already completed")
}
