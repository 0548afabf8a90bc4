package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"taskbot/internal/domain"
)

// LegacyCategory is given to first-generation records that had no category.
const LegacyCategory = "uncategorized"

// record accepts the canonical flat shape as well as the older
// {"task": "text"} rows written before tasks had fields.
type record struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	DueDate      string `json:"due_date"`
	ReminderTime string `json:"reminder_time"`
	CreatedAt    string `json:"created_at"`
	Task         string `json:"task"`
}

// decodeCollection parses a stored collection. It returns the number of
// records that had to be upgraded from an older shape.
func decodeCollection(data []byte, newID func() string) ([]domain.Task, int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("decode collection: %w", err)
	}
	tasks := make([]domain.Task, 0, len(raw))
	upgraded := 0
	for i, item := range raw {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, 0, fmt.Errorf("record %d is not an object", i+1)
		}
		var r record
		if err := json.Unmarshal(trimmed, &r); err != nil {
			return nil, 0, fmt.Errorf("record %d: %w", i+1, err)
		}
		changed := false
		if r.Title == "" && strings.TrimSpace(r.Task) != "" {
			r.Title = r.Task
			changed = true
		}
		if r.Title == "" {
			return nil, 0, fmt.Errorf("record %d has no title", i+1)
		}
		if r.Category == "" {
			r.Category = LegacyCategory
			changed = true
		}
		if r.ID == "" {
			r.ID = newID()
			changed = true
		}
		if changed {
			upgraded++
		}
		tasks = append(tasks, domain.Task{
			ID:           r.ID,
			Title:        r.Title,
			Description:  r.Description,
			Category:     r.Category,
			DueDate:      r.DueDate,
			ReminderTime: r.ReminderTime,
			CreatedAt:    r.CreatedAt,
		})
	}
	return tasks, upgraded, nil
}

func encodeCollection(tasks []domain.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tasks); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isBlank(data []byte) bool {
	return len(bytes.TrimSpace(data)) == 0
}
