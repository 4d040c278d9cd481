// internal/underwriting/taskgraph/validate.go
package taskgraph

import (
	"fmt"
	"strings"

	apperrors "loan-underwriting/internal/common/errors"
	"loan-underwriting/internal/models"
)

// Validate checks that tasks form a DAG with unique ids and resolvable
// dependencies and returns the ids in topological order. The order is
// deterministic for a given input slice.
func Validate(tasks []models.UnderwritingTask) ([]string, error) {
	index := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			return nil, apperrors.NewGraphInvariantViolationError(fmt.Sprintf("task at position %d has no id", i))
		}
		if _, dup := index[t.ID]; dup {
			return nil, apperrors.NewGraphInvariantViolationError(fmt.Sprintf("duplicate task id %q", t.ID))
		}
		index[t.ID] = i
	}

	inDegree := make([]int, len(tasks))
	dependents := make([][]int, len(tasks))
	for i, t := range tasks {
		seen := make(map[string]bool, len(t.Dependencies))
		for _, dep := range t.Dependencies {
			if dep == t.ID {
				return nil, apperrors.NewGraphInvariantViolationError(fmt.Sprintf("task %q depends on itself", t.ID))
			}
			j, ok := index[dep]
			if !ok {
				return nil, apperrors.NewGraphInvariantViolationError(
					fmt.Sprintf("task %q depends on unknown task %q", t.ID, dep))
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			inDegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	queue := make([]int, 0, len(tasks))
	for i := range tasks {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]string, 0, len(tasks))
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, tasks[cur].ID)

		for _, d := range dependents[cur] {
			inDegree[d]--
			if inDegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}

	if len(order) != len(tasks) {
		var cyclic []string
		for i, t := range tasks {
			if inDegree[i] > 0 {
				cyclic = append(cyclic, t.ID)
			}
		}
		return nil, apperrors.NewGraphInvariantViolationError(
			"dependency cycle involving " + strings.Join(cyclic, ", "))
	}
	return order, nil
}
