// Todo Tool - Session task tracking for the controller.
//
// Information Hiding:
// - List storage and replacement semantics hidden
// - Status invariant enforcement internalized

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Todo statuses and priorities.
const (
	TodoPending    = "pending"
	TodoInProgress = "in_progress"
	TodoCompleted  = "completed"

	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// TodoItem is one tracked task. The ID is chosen by the controller and
// lets later list replacements refer to the same task.
type TodoItem struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// TodoTool maintains the session's task list in memory. Each call replaces
// the whole list; at most one item may be in progress at a time. The list
// does not survive the process.
type TodoTool struct {
	BaseTool
	mu    sync.Mutex
	items []TodoItem
}

// NewTodoTool creates a new todo tool with an empty list.
func NewTodoTool() *TodoTool {
	return &TodoTool{}
}

// Items returns a copy of the current list.
func (t *TodoTool) Items() []TodoItem {
	t.mu.Lock()
	defer t.mu.Unlock()

	items := make([]TodoItem, len(t.items))
	copy(items, t.items)
	return items
}

// Metadata returns the tool metadata.
func (t *TodoTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "todo_write",
		Description: "Replace the session task list. Use to plan multi-step work and track progress. At most one task may be in_progress.",
		Parameters: []ToolParameter{
			{Name: "todos", ParamType: "array", Description: "The full task list (replaces the previous list)", Required: true, Items: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id":       map[string]interface{}{"type": "string", "description": "Stable task identifier"},
					"content":  map[string]interface{}{"type": "string", "description": "Task description"},
					"status":   map[string]interface{}{"type": "string", "enum": []interface{}{TodoPending, TodoInProgress, TodoCompleted}},
					"priority": map[string]interface{}{"type": "string", "enum": []interface{}{PriorityHigh, PriorityMedium, PriorityLow}},
				},
				"required": []interface{}{"id", "content", "status"},
			}},
		},
	}
}

type todoArgs struct {
	Todos []TodoItem `json:"todos"`
}

// Validate validates the arguments.
func (t *TodoTool) Validate(args json.RawMessage) error {
	var a todoArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return validateTodos(a.Todos)
}

// Execute replaces the task list.
func (t *TodoTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a todoArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if err := validateTodos(a.Todos); err != nil {
		return FailureResult(err), nil
	}

	for i := range a.Todos {
		if a.Todos[i].Priority == "" {
			a.Todos[i].Priority = PriorityMedium
		}
	}

	t.mu.Lock()
	t.items = a.Todos
	t.mu.Unlock()

	return SuccessResult(renderTodos(a.Todos)), nil
}

// validateTodos enforces the list invariants: non-empty id and content,
// unique ids, known status and priority values, at most one in_progress
// item.
func validateTodos(items []TodoItem) error {
	inProgress := 0
	ids := make(map[string]bool, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.ID) == "" {
			return fmt.Errorf("todo #%d: id cannot be empty", i+1)
		}
		if ids[item.ID] {
			return fmt.Errorf("todo #%d: duplicate id %q", i+1, item.ID)
		}
		ids[item.ID] = true
		if strings.TrimSpace(item.Content) == "" {
			return fmt.Errorf("todo #%d: content cannot be empty", i+1)
		}
		switch item.Status {
		case TodoPending, TodoCompleted:
		case TodoInProgress:
			inProgress++
		default:
			return fmt.Errorf("todo #%d: unknown status %q", i+1, item.Status)
		}
		switch item.Priority {
		case "", PriorityHigh, PriorityMedium, PriorityLow:
		default:
			return fmt.Errorf("todo #%d: unknown priority %q", i+1, item.Priority)
		}
	}
	if inProgress > 1 {
		return fmt.Errorf("only one todo may be in_progress (found %d)", inProgress)
	}
	return nil
}

// renderTodos builds the progress summary returned to the controller.
func renderTodos(items []TodoItem) string {
	if len(items) == 0 {
		return "Todo list cleared"
	}

	completed := 0
	var b strings.Builder
	for _, item := range items {
		marker := "[ ]"
		switch item.Status {
		case TodoCompleted:
			marker = "[x]"
			completed++
		case TodoInProgress:
			marker = "[>]"
		}
		fmt.Fprintf(&b, "%s %s (%s)\n", marker, item.Content, item.Priority)
	}
	fmt.Fprintf(&b, "%d/%d completed", completed, len(items))
	return b.String()
}
