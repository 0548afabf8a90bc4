package bot

import (
	"errors"
	"fmt"
	"strings"

	"taskbot/internal/dialogue"
	"taskbot/internal/domain"
	"taskbot/internal/store"
)

// RenderList formats tasks as a 1-based numbered list.
func RenderList(tasks []domain.Task) string {
	if len(tasks) == 0 {
		return msgEmptyList
	}
	var sb strings.Builder
	sb.WriteString(msgListHeader)
	for i, t := range tasks {
		fmt.Fprintf(&sb, "\n%d. %s (ID: %s)\n   Category: %s\n   Due: %s", i+1, t.Title, t.ID, t.Category, DueText(t))
	}
	return sb.String()
}

// DueText returns the display form of a task's due date.
func DueText(t domain.Task) string {
	if !t.HasDueDate() {
		return msgUnspecified
	}
	return dialogue.FormatDue(t.DueDate)
}

func renderPrompt(res dialogue.Result) string {
	text, ok := prompts[res.Prompt]
	if !ok {
		return msgStoreFailed
	}
	switch res.Prompt {
	case dialogue.PromptSaved, dialogue.PromptSavedAfterReset:
		return fmt.Sprintf(text, res.Task.Title)
	case dialogue.PromptSaveFailed:
		if errors.Is(res.Err, store.ErrCorruptData) {
			return msgStoreReset
		}
	}
	return text
}
