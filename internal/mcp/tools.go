package mcp

import "github.com/mark3labs/mcp-go/mcp"

var todayToolDef = mcp.NewTool("activity_today",
	mcp.WithDescription("Today's coding-session activity: session and message counts, active time, per-project breakdown and the current day summary. Rescans the session logs first."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithBoolean("include_sessions", mcp.Description("Include the per-session records (default false)")),
)

var weekToolDef = mcp.NewTool("activity_week",
	mcp.WithDescription("Activity for each of the last 7 days, today first, with totals and whether a stored summary exists for each day."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var sessionsToolDef = mcp.NewTool("activity_sessions",
	mcp.WithDescription("List one day's sessions, newest first: project, timing, first user requests, files touched and commands run. Only the last 7 days are available."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("date", mcp.Description("YYYY-MM-DD or \"today\" (default today)")),
	mcp.WithString("project", mcp.Description("Only sessions of this project (case-insensitive)")),
	mcp.WithNumber("limit", mcp.Description("Max items (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip (default 0)")),
)

var getSummaryToolDef = mcp.NewTool("summary_get",
	mcp.WithDescription("Get the day summary (headline, narrative, highlights, mood) for a date. Today's comes from the live state; past days from the summary store."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("date", mcp.Description("YYYY-MM-DD or \"today\" (default today)")),
)

var historyToolDef = mcp.NewTool("summary_history",
	mcp.WithDescription("List past dates with a stored summary, newest first, with each day's headline and mood."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithNumber("limit", mcp.Description("Max items (default 30, max 365)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip (default 0)")),
)

var generateToolDef = mcp.NewTool("summary_generate",
	mcp.WithDescription("Generate today's summary now and wait for it. Reuses the current summary unless the sessions changed or force is set. Without an API key, or when the call fails, a local summary is produced instead."),
	mcp.WithBoolean("force", mcp.Description("Regenerate even if the summary is current (default false)")),
)

var backfillToolDef = mcp.NewTool("summary_backfill",
	mcp.WithDescription("Write summaries for the last 6 days that have sessions but no stored summary, oldest first, and wait for the run. Rate-limited; may take minutes with an API key."),
)
