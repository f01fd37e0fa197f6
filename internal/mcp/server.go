package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/nick-dorsch/agenda/internal/agenda"
	"github.com/nick-dorsch/agenda/internal/reschedule"
	"github.com/nick-dorsch/agenda/pkg/models"
)

// NewServer creates a new MCP server.
func NewServer(app *agenda.App) *server.MCPServer {
	s := server.NewMCPServer("Agenda", "0.1.0")

	// Reading
	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks scheduled or due on a date."),
		mcp.WithString("date", mcp.Description("Date as YYYY-MM-DD (defaults to today; 'all' lists every task)")),
		mcp.WithString("status", mcp.Description("Filter by status (pending|completed|not-done|forwarded-date|forwarded-person)")),
	), listTasksHandler(app))

	s.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Get a single task with its completion and forward history."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), getTaskHandler(app))

	s.AddTool(mcp.NewTool("day_stats",
		mcp.WithDescription("Get the review counters for a date."),
		mcp.WithString("date", mcp.Description("Date as YYYY-MM-DD (defaults to today)")),
	), dayStatsHandler(app))

	// Task Management
	s.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a new task."),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("date", mcp.Description("Scheduled date as YYYY-MM-DD (defaults to today)")),
		mcp.WithNumber("order", mcp.Description("Manual rank within the day (0 = unranked)")),
		mcp.WithString("priority", mcp.Description("Priority label")),
		mcp.WithString("category", mcp.Description("Category label")),
		mcp.WithString("type", mcp.Description("Type label")),
		mcp.WithString("time_investment", mcp.Description("Estimated effort")),
	), createTaskHandler(app))

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), deleteTaskHandler(app))

	// Lifecycle
	s.AddTool(mcp.NewTool("record_completion",
		mcp.WithDescription("Record a done or not-done outcome for a task."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("outcome", mcp.Description("Outcome (completed|not-done)"), mcp.Required()),
	), recordCompletionHandler(app))

	s.AddTool(mcp.NewTool("set_pending",
		mcp.WithDescription("Undo the latest outcome of a task."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), lifecycleHandler(app.SetPending))

	s.AddTool(mcp.NewTool("conclude_task",
		mcp.WithDescription("Seal a task so it no longer needs attention."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), lifecycleHandler(app.Conclude))

	s.AddTool(mcp.NewTool("reopen_task",
		mcp.WithDescription("Lift the seal of a concluded task. The task becomes pending."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), lifecycleHandler(app.Reopen))

	s.AddTool(mcp.NewTool("delegate_task",
		mcp.WithDescription("Assign a task to a person."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("person_id", mcp.Description("Person ID (empty clears the assignment)"), mcp.Required()),
	), delegateTaskHandler(app))

	forwardOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Reschedule a task: the original is sealed and a linked copy is created on the new date."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("date", mcp.Description("New date as YYYY-MM-DD"), mcp.Required()),
	}, withRescheduleOptions()...)
	s.AddTool(mcp.NewTool("forward_task", forwardOpts...), forwardTaskHandler(app))

	s.AddTool(mcp.NewTool("bulk_tasks",
		mcp.WithDescription("Apply one action to several tasks. Failures do not stop the batch."),
		mcp.WithString("action", mcp.Description("Action (complete|not-done|reschedule|delegate|delete|conclude)"), mcp.Required()),
		mcp.WithArray("ids", mcp.Description("Task IDs"), mcp.WithStringItems(), mcp.Required()),
		mcp.WithString("date", mcp.Description("Target date for reschedule")),
		mcp.WithString("person_id", mcp.Description("Assignee for delegate")),
	), bulkTasksHandler(app))

	// Daily Close
	s.AddTool(mcp.NewTool("close_day_start",
		mcp.WithDescription("Open a daily close session for a date and get its review counters."),
		mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
		mcp.WithString("date", mcp.Description("Date as YYYY-MM-DD (defaults to today)")),
	), closeDayStartHandler(app))

	s.AddTool(mcp.NewTool("close_day_decide",
		mcp.WithDescription("Mark a task done or not done during a daily close. Unlocks its follow-up actions."),
		mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("outcome", mcp.Description("Outcome (completed|not-done)"), mcp.Required()),
	), closeDayDecideHandler(app))

	s.AddTool(mcp.NewTool("close_day_followup",
		mcp.WithDescription("Reschedule or conclude a task already decided in this daily close session."),
		mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("action", mcp.Description("Follow-up (reschedule|conclude)"), mcp.Required()),
		mcp.WithString("date", mcp.Description("New date for reschedule")),
	), closeDayFollowupHandler(app))

	s.AddTool(mcp.NewTool("close_day_finish",
		mcp.WithDescription("Finish the daily close session."),
		mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
	), closeDayFinishHandler(app))

	s.AddTool(mcp.NewTool("reconcile",
		mcp.WithDescription("Scan for half-applied reschedules and record them."),
	), reconcileHandler(app))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func withRescheduleOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("reason", mcp.Description("Why the task is moved")),
		mcp.WithString("forwarded_to", mcp.Description("Hand the copy to this person")),
		mcp.WithBoolean("keep_order", mcp.Description("Keep the manual rank on the copy")),
		mcp.WithBoolean("keep_checklist", mcp.Description("Keep checklist progress on the copy")),
	}
}

func parseRescheduleOptions(request mcp.CallToolRequest, defaults reschedule.Options) *reschedule.Options {
	return &reschedule.Options{
		Reason:        mcp.ParseString(request, "reason", defaults.Reason),
		ForwardedTo:   mcp.ParseString(request, "forwarded_to", ""),
		KeepOrder:     mcp.ParseBoolean(request, "keep_order", defaults.KeepOrder),
		KeepChecklist: mcp.ParseBoolean(request, "keep_checklist", defaults.KeepChecklist),
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func parseDate(request mcp.CallToolRequest, key string, fallback models.Date) (models.Date, error) {
	raw := mcp.ParseString(request, key, "")
	if raw == "" {
		return fallback, nil
	}
	return models.ParseDate(raw)
}

func parseOutcome(request mcp.CallToolRequest) (models.Outcome, error) {
	outcome := models.Outcome(mcp.ParseString(request, "outcome", ""))
	if !outcome.Valid() {
		return "", fmt.Errorf("invalid outcome '%s' (expected completed or not-done)", outcome)
	}
	return outcome, nil
}

func listTasksHandler(app *agenda.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var date models.Date
		if mcp.ParseString(request, "date", "") != "all" {
			d, err := parseDate(request, "date", app.Today())
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			date = d
		}

		tasks, err := app.Tasks(ctx, date)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if status := mcp.ParseString(request, "status", ""); status != "" {
			filtered := tasks[:0]
			for _, t := range tasks {
				if string(t.Status) == status {
					filtered = append(filtered, t)
				}
			}
			tasks = filtered
		}

		return jsonResult(map[string]any{"tasks": tasks})
	}
}

func getTaskHandler(app *agenda.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t, err := app.Get(ctx, mcp.ParseString(request, "id", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(t)
	}
}

func dayStatsHandler(app *agenda.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		date, err := parseDate(request, "date", app.Today())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		stats, err := app.Stats(ctx, date)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(stats)
	}
}

func createTaskHandler(app *agenda.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		date, err := parseDate(request, "date", "")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		t, err := app.Create(ctx, agenda.NewTask{
			Title:          mcp.ParseString(request, "title", ""),
			Description:    mcp.ParseString(request, "description", ""),
			Date:           date,
			Order:          mcp.ParseInt(request, "order", 0),
			Priority:       mcp.ParseString(request, "priority", ""),
			Category:       mcp.ParseString(request, "category", ""),
			Type:           mcp.ParseString(request, "type", ""),
			TimeInvestment: mcp.ParseString(request, "time_investment", ""),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(t)
	}
}

func deleteTaskHandler(app *agenda.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := app.Delete(ctx, mcp.ParseString(request, "id", "")); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Task deleted successfully"), nil
	}
}

func recordCompletionHandler(app *agenda.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		outcome, err := parseOutcome(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		id := mcp.ParseString(request, "id", "")
		var t models.Task
		if outcome == models.OutcomeNotDone {
			t, err = app.NotDone(ctx, id)
		} else {
			t, err = app.Complete(ctx, id)
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(t)
	}
}

func lifecycleHandler(action func(ctx context.Context, id string) (models.Task, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t, err := action(ctx, mcp.ParseString(request, "id", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(t)
	}
}

func delegateTaskHandler(app *agenda.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t, err := app.Delegate(ctx, mcp.ParseString(request, "id", ""), mcp.ParseString(request, "person_id", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(t)
	}
}

func forwardTaskHandler(app *agenda.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		date, err := parseDate(request, "date", "")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if date.IsZero() {
			return mcp.NewToolResultError("date is required"), nil
		}

		opts := parseRescheduleOptions(request, app.RescheduleDefaults())
		res, changed, err := app.Forward(ctx, mcp.ParseString(request, "id", ""), date, opts)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !changed {
			return mcp.NewToolResultText("Task was not rescheduled: it is already concluded or already on that date"), nil
		}
		return jsonResult(res)
	}
}

func bulkTasksHandler(app *agenda.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		action, err := agenda.ParseBulkAction(mcp.ParseString(request, "action", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		date, err := parseDate(request, "date", "")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		res, err := app.Bulk(ctx, agenda.BulkRequest{
			Action:   action,
			IDs:      parseIDs(request),
			Date:     date,
			PersonID: mcp.ParseString(request, "person_id", ""),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(res)
	}
}

// parseIDs accepts the ids argument as a JSON array or a comma-separated
// string.
func parseIDs(request mcp.CallToolRequest) []string {
	args, _ := request.Params.Arguments.(map[string]any)
	var ids []string
	switch v := args["ids"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				ids = append(ids, s)
			}
		}
	case []string:
		ids = append(ids, v...)
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				ids = append(ids, s)
			}
		}
	}
	return ids
}

func closeDayStartHandler(app *agenda.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")
		date, err := parseDate(request, "date", app.Today())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		s, stats, err := app.CloseDay(ctx, sessionID, date)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		s.Advance()

		tasks, err := app.CloseDayTasks(ctx, sessionID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"session_id": sessionID, "stats": stats, "tasks": tasks})
	}
}

func closeDayDecideHandler(app *agenda.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		outcome, err := parseOutcome(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		t, err := app.CloseDayDecide(ctx, mcp.ParseString(request, "session_id", "default"), mcp.ParseString(request, "id", ""), outcome)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(t)
	}
}

func closeDayFollowupHandler(app *agenda.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")
		id := mcp.ParseString(request, "id", "")

		switch action := mcp.ParseString(request, "action", ""); action {
		case "conclude":
			t, err := app.CloseDayConclude(ctx, sessionID, id)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return jsonResult(t)
		case "reschedule":
			date, err := parseDate(request, "date", "")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if date.IsZero() {
				return mcp.NewToolResultError("date is required for reschedule"), nil
			}
			res, err := app.CloseDayReschedule(ctx, sessionID, id, date, nil)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return jsonResult(res)
		default:
			return mcp.NewToolResultError(fmt.Sprintf("invalid follow-up '%s' (expected reschedule or conclude)", action)), nil
		}
	}
}

func closeDayFinishHandler(app *agenda.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := app.CloseDayFinish(ctx, mcp.ParseString(request, "session_id", "default"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(stats)
	}
}

func reconcileHandler(app *agenda.App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		found, err := app.Reconcile(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"discrepancies": found})
	}
}
