// internal/models/task.go
package models

import "time"

type TaskCategory string

const (
	TaskCategoryDocumentation TaskCategory = "documentation"
	TaskCategoryVerification  TaskCategory = "verification"
	TaskCategoryAnalysis      TaskCategory = "analysis"
	TaskCategoryCompliance    TaskCategory = "compliance"
	TaskCategoryApproval      TaskCategory = "approval"
)

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

type TaskStatus string

const (
	TaskStatusPending        TaskStatus = "pending"
	TaskStatusInProgress     TaskStatus = "in_progress"
	TaskStatusCompleted      TaskStatus = "completed"
	TaskStatusFailed         TaskStatus = "failed"
	TaskStatusRequiresReview TaskStatus = "requires_review"
	TaskStatusBlocked        TaskStatus = "blocked"
)

// Terminal reports whether no further transition is possible within a run.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusRequiresReview, TaskStatusBlocked:
		return true
	}
	return false
}

type Assignee string

const (
	AssigneeEva   Assignee = "eva"
	AssigneeHuman Assignee = "human"
)

// UnderwritingTask is one node of the per-run dependency graph.
type UnderwritingTask struct {
	ID                  string        `json:"id"`
	Title               string        `json:"title"`
	Description         string        `json:"description,omitempty"`
	Category            TaskCategory  `json:"category"`
	Priority            TaskPriority  `json:"priority"`
	Status              TaskStatus    `json:"status"`
	AssignedTo          Assignee      `json:"assignedTo"`
	AutomationAvailable bool          `json:"automationAvailable"`
	EstimatedTime       time.Duration `json:"estimatedTime"`
	Dependencies        []string      `json:"dependencies,omitempty"`
}

// Automatable is true when the task can run without a human.
func (t UnderwritingTask) Automatable() bool {
	return t.AssignedTo == AssigneeEva && t.AutomationAvailable
}

type ResultStatus string

const (
	ResultStatusCompleted     ResultStatus = "completed"
	ResultStatusFailed        ResultStatus = "failed"
	ResultStatusRequiresHuman ResultStatus = "requires_human"
)

// TaskAutomationResult is the outcome of one task within a run.
type TaskAutomationResult struct {
	TaskID     string                 `json:"taskId"`
	Status     ResultStatus           `json:"status"`
	Result     map[string]interface{} `json:"result,omitempty"`
	Duration   time.Duration          `json:"duration"`
	Confidence float64                `json:"confidence"`
	Notes      string                 `json:"notes,omitempty"`
	Attempts   int                    `json:"attempts,omitempty"`
}
