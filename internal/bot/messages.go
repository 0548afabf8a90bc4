package bot

import "taskbot/internal/dialogue"

const (
	msgHelp = "Hi! 👋 I keep a shared task list.\n" +
		"Commands:\n" +
		"/add - add a new task step by step\n" +
		"/list - show all tasks\n" +
		"/delete <number or ID> - delete a task\n" +
		"/cancel - stop adding a task"
	msgHint          = "Send /add to create a task or /list to see your tasks."
	msgUnknown       = "Unknown command %s. Send /help to see what I can do."
	msgNothingCancel = "There is nothing to cancel."
	msgEmptyList     = "📭 Your task list is empty."
	msgListHeader    = "📝 Your tasks:"
	msgUnspecified   = "unspecified"
	msgDeleteUsage   = "❗️ Tell me which task to delete, e.g. /delete 2 or /delete <task ID>."
	msgDeleted       = "🗑 Deleted: %s"
	msgNoPosition    = "❗️ There is no task number %d."
	msgNoID          = "❗️ No task with ID %s was found."
	msgStoreReset    = "⚠️ The task storage was damaged and has been reset. Please retry your last action."
	msgStoreFailed   = "⚠️ Something went wrong while accessing the task storage. Please try again later."
)

var prompts = map[dialogue.Prompt]string{
	dialogue.PromptTitle:           "Enter the task title:",
	dialogue.PromptTitleEmpty:      "The title cannot be empty. Please enter the title again:",
	dialogue.PromptDescription:     "Enter a description (optional, send - to skip):",
	dialogue.PromptCategory:        "Enter a category (e.g. hw, work, personal):",
	dialogue.PromptCategoryEmpty:   "The category cannot be empty. Please enter the category again:",
	dialogue.PromptDueDate:         "Enter the due date and time (e.g. 2025-06-01 20:00 or 2025-06-01), or - to skip:",
	dialogue.PromptDueDateInvalid:  "Invalid due date. Use 'YYYY-MM-DD HH:MM' or 'YYYY-MM-DD', or - to skip:",
	dialogue.PromptReminder:        "Enter a reminder time (optional, e.g. 2025-05-31 20:00), or - to skip:",
	dialogue.PromptReminderInvalid: "Invalid reminder time. Use 'YYYY-MM-DD HH:MM' or 'YYYY-MM-DD', or - to skip:",
	dialogue.PromptSaved:           "✅ Task '%s' added!",
	dialogue.PromptSavedAfterReset: "✅ Task '%s' added. ⚠️ The task storage was damaged and has been reset, so earlier tasks were lost.",
	dialogue.PromptSaveFailed:      "⚠️ The task could not be saved. Please try /add again later.",
	dialogue.PromptCancelled:       "Adding the task was cancelled.",
}
