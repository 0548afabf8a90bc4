package domain

// Task is one entry of the shared task list. Timestamps are kept as text;
// DueDate and ReminderTime use the dialogue's canonical form and are empty
// when unspecified.
type Task struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	DueDate      string `json:"due_date,omitempty" doc:"Local date-time without zone, 2006-01-02T15:04:05 or 2006-01-02T15:04" example:"2025-06-01T20:00:00"`
	ReminderTime string `json:"reminder_time,omitempty" doc:"Local date-time without zone, 2006-01-02T15:04:05 or 2006-01-02T15:04" example:"2025-05-31T20:00:00"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

// HasDueDate reports whether a due date was given.
func (t Task) HasDueDate() bool { return t.DueDate != "" }

// HasReminder reports whether a reminder time was given.
func (t Task) HasReminder() bool { return t.ReminderTime != "" }
