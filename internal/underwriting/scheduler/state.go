// internal/underwriting/scheduler/state.go
package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "loan-underwriting/internal/common/errors"
	"loan-underwriting/internal/models"
)

type node struct {
	task       models.UnderwritingTask
	status     models.TaskStatus
	dependents []int
	remaining  int
	result     *models.TaskAutomationResult
	blockedBy  string
}

type transitionKind int

const (
	transitionDispatch transitionKind = iota
	transitionFinish
	transitionExternalComplete
)

type transition struct {
	kind   transitionKind
	idx    int
	result models.TaskAutomationResult
}

// runState is the task arena for one run. Every status change goes through
// apply while mu is held.
type runState struct {
	mu       sync.Mutex
	nodes    []node
	index    map[string]int
	order    []int
	inFlight int
	done     bool
}

func newRunState(tasks []models.UnderwritingTask, order []string) *runState {
	s := &runState{
		nodes: make([]node, len(tasks)),
		index: make(map[string]int, len(tasks)),
		order: make([]int, 0, len(order)),
	}
	for i, t := range tasks {
		s.index[t.ID] = i
		s.nodes[i] = node{task: t, status: models.TaskStatusPending}
	}
	for i, t := range tasks {
		seen := make(map[string]bool, len(t.Dependencies))
		for _, dep := range t.Dependencies {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			j := s.index[dep]
			s.nodes[j].dependents = append(s.nodes[j].dependents, i)
			s.nodes[i].remaining++
		}
	}
	for _, id := range order {
		s.order = append(s.order, s.index[id])
	}
	return s
}

// seed applies completions the caller already holds and returns the
// automatable tasks ready at start, in topological order.
func (s *runState) seed() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, i := range s.order {
		if s.nodes[i].task.Status == models.TaskStatusCompleted {
			_, _ = s.apply(transition{kind: transitionExternalComplete, idx: i, result: externalResult(s.nodes[i].task.ID)})
		}
	}

	var ready []int
	for _, i := range s.order {
		if s.dispatchable(i) {
			ready = append(ready, i)
		}
	}
	return ready
}

func externalResult(taskID string) models.TaskAutomationResult {
	return models.TaskAutomationResult{
		TaskID:     taskID,
		Status:     models.ResultStatusCompleted,
		Confidence: 1,
		Notes:      "completed by human reviewer",
	}
}

func (s *runState) dispatchable(i int) bool {
	n := &s.nodes[i]
	return n.status == models.TaskStatusPending && n.remaining == 0 && n.task.Automatable()
}

// apply performs one transition and returns the automatable tasks it made
// ready. Callers must hold mu.
func (s *runState) apply(tr transition) ([]int, error) {
	n := &s.nodes[tr.idx]

	switch tr.kind {
	case transitionDispatch:
		if !s.dispatchable(tr.idx) {
			return nil, fmt.Errorf("task %q is not ready for dispatch (status %s)", n.task.ID, n.status)
		}
		n.status = models.TaskStatusInProgress
		s.inFlight++
		return nil, nil

	case transitionFinish:
		if n.status != models.TaskStatusInProgress {
			return nil, fmt.Errorf("task %q finished while %s", n.task.ID, n.status)
		}
		s.inFlight--
		res := tr.result
		n.result = &res
		switch res.Status {
		case models.ResultStatusCompleted:
			n.status = models.TaskStatusCompleted
			return s.release(tr.idx), nil
		case models.ResultStatusFailed:
			n.status = models.TaskStatusFailed
			s.block(tr.idx)
		default:
			n.status = models.TaskStatusRequiresReview
		}
		return nil, nil

	case transitionExternalComplete:
		if n.status != models.TaskStatusPending && n.status != models.TaskStatusRequiresReview {
			return nil, apperrors.NewInvalidInputError("taskId",
				fmt.Sprintf("task %q cannot be completed externally while %s", n.task.ID, n.status))
		}
		if n.remaining > 0 && n.task.Status != models.TaskStatusCompleted {
			return nil, apperrors.NewInvalidInputError("taskId",
				fmt.Sprintf("task %q still has %d unmet prerequisite(s)", n.task.ID, n.remaining))
		}
		res := tr.result
		n.result = &res
		n.status = models.TaskStatusCompleted
		return s.release(tr.idx), nil
	}
	return nil, fmt.Errorf("unknown transition %d", tr.kind)
}

func (s *runState) release(i int) []int {
	var ready []int
	for _, d := range s.nodes[i].dependents {
		s.nodes[d].remaining--
		if s.dispatchable(d) {
			ready = append(ready, d)
		}
	}
	return ready
}

// block marks every pending transitive dependent of i as blocked.
func (s *runState) block(i int) {
	cause := s.nodes[i].task.ID
	stack := append([]int(nil), s.nodes[i].dependents...)
	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.nodes[d].status != models.TaskStatusPending {
			continue
		}
		s.nodes[d].status = models.TaskStatusBlocked
		s.nodes[d].blockedBy = cause
		stack = append(stack, s.nodes[d].dependents...)
	}
}

// waitingOn names the unmet prerequisites of i.
func (s *runState) waitingOn(i int) []string {
	var ids []string
	for _, dep := range s.nodes[i].task.Dependencies {
		if s.nodes[s.index[dep]].status != models.TaskStatusCompleted {
			ids = append(ids, dep)
		}
	}
	sort.Strings(ids)
	return ids
}

// humanReason explains why a task without an automated outcome needs a person.
func (s *runState) humanReason(i int) string {
	n := &s.nodes[i]
	switch {
	case n.status == models.TaskStatusBlocked:
		return fmt.Sprintf("blocked by failed prerequisite %s", n.blockedBy)
	case n.task.AssignedTo == models.AssigneeHuman:
		return "assigned to human reviewer"
	case !n.task.AutomationAvailable:
		return "automation unavailable for this task"
	case n.remaining > 0:
		return "waiting on prerequisites requiring human action: " + strings.Join(s.waitingOn(i), ", ")
	}
	return "not reached by automation"
}
