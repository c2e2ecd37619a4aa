package mcp

var calendarProp = Property{Type: "string", Description: "Calendar id, e.g. personal or work (default personal)"}

var tools = []Tool{
	{
		Name:        "solcal_list_calendars",
		Description: "List calendars with their id, name, color and enabled flag.",
		InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
	},
	{
		Name:        "solcal_agenda",
		Description: "List event occurrences of all enabled calendars between two dates (default: the next 7 days).",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"from": {Type: "string", Description: "First day, YYYY-MM-DD"},
				"to":   {Type: "string", Description: "Last day, YYYY-MM-DD"},
			},
		},
	},
	{
		Name:        "solcal_month",
		Description: "Month grid: occurrences grouped by day, including the padding days around the month.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"year":  {Type: "string", Description: "Four digit year"},
				"month": {Type: "string", Description: "Month number 1-12"},
			},
			Required: []string{"year", "month"},
		},
	},
	{
		Name:        "solcal_week",
		Description: "Seven days of occurrences grouped by day.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"start_date": {Type: "string", Description: "First day, YYYY-MM-DD"},
			},
			Required: []string{"start_date"},
		},
	},
	{
		Name:        "solcal_create_event",
		Description: "Create an event. Times are RFC3339. repeat is one of Never, Daily, Weekly, Biweekly, Monthly, Yearly.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"calendar_id": calendarProp,
				"summary":     {Type: "string", Description: "Title"},
				"start":       {Type: "string", Description: "Start, RFC3339"},
				"end":         {Type: "string", Description: "End, RFC3339"},
				"location":    {Type: "string", Description: "Location (optional)"},
				"repeat": {Type: "string", Description: "Repeat frequency",
					Enum: []string{"Never", "Daily", "Weekly", "Biweekly", "Monthly", "Yearly"}},
				"alert": {Type: "string", Description: "Alert before start",
					Enum: []string{"None", "AtTime", "FiveMinutes", "TenMinutes", "FifteenMinutes", "ThirtyMinutes", "OneHour", "TwoHours", "OneDay", "TwoDays", "OneWeek"}},
			},
			Required: []string{"summary", "start", "end"},
		},
	},
	{
		Name:        "solcal_delete_event",
		Description: "Delete an event and, for repeating events, the whole series.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"calendar_id": calendarProp,
				"uid":         {Type: "string", Description: "Event uid or occurrence id"},
			},
			Required: []string{"uid"},
		},
	},
	{
		Name:        "solcal_delete_occurrence",
		Description: "Delete a single occurrence of a repeating event, keeping the rest of the series.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"calendar_id":   calendarProp,
				"occurrence_id": {Type: "string", Description: "Occurrence id as returned by solcal_agenda (uid_YYYYMMDD)"},
			},
			Required: []string{"occurrence_id"},
		},
	},
}
