package server

import "taskbot/internal/domain"

// Request payloads

type MessageRequest struct {
	Text string `json:"text" doc:"User input; empty text is a valid answer for optional fields"`
}

type CreateTaskRequest struct {
	Title        string `json:"title" minLength:"1"`
	Description  string `json:"description,omitempty"`
	Category     string `json:"category" minLength:"1"`
	DueDate      string `json:"due_date,omitempty" example:"2025-06-01 20:00"`
	ReminderTime string `json:"reminder_time,omitempty" example:"2025-05-31 20:00"`
}

// Response payloads

type MessageResponse struct {
	Reply string `json:"reply"`
	State string `json:"state" enum:"end,collect_title,collect_description,collect_category,collect_due_date,collect_reminder"`
}

type TaskResponse struct {
	domain.Task
	Due string `json:"due" doc:"Display form of the due date"`
}

type TaskListResponse struct {
	Items []TaskResponse `json:"items"`
}

func toTaskResponse(t domain.Task, due string) TaskResponse {
	return TaskResponse{Task: t, Due: due}
}
