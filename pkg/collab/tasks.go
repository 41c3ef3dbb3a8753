package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/securebot-ai/securebot/pkg/logger"
)

// Task is a single entry from the task-list collaborator
type Task struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
}

// TaskList is the collaborator's task collection
type TaskList struct {
	Active *Task  `json:"active_task"`
	Todo   []Task `json:"todo"`
}

// TasksClient fetches the task list from the memory collaborator
type TasksClient struct {
	baseURL string
	http    *http.Client
}

// NewTasksClient creates a task-list client for the given base URL
func NewTasksClient(baseURL string, timeout time.Duration) *TasksClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &TasksClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Tasks returns the current task list. Failures degrade to nil.
func (c *TasksClient) Tasks(ctx context.Context) *TaskList {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tasks", nil)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to build tasks request")
		return nil
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("task collaborator unreachable")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.G(ctx).WithField("status", resp.StatusCode).Warn("task collaborator returned an error")
		return nil
	}

	var decoded TaskList
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to decode task list")
		return nil
	}
	return &decoded
}

// RenderTasks formats a task list for interpolation into a model prompt.
// A nil or empty list renders to an empty string.
func RenderTasks(list *TaskList) string {
	if list == nil {
		return ""
	}

	var lines []string
	if list.Active != nil {
		lines = append(lines, fmt.Sprintf("Active: %s (%s)", orUnknown(list.Active.Title), orUnknown(list.Active.Status)))
	}
	if len(list.Todo) > 0 {
		var pending []string
		for _, t := range list.Todo {
			pending = append(pending, fmt.Sprintf("%s (p:%s)", orUnknown(t.Title), orUnknown(t.Priority)))
		}
		lines = append(lines, "Pending: "+strings.Join(pending, ", "))
	}
	return strings.Join(lines, "\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
