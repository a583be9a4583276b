package main

import "time"

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

type Board struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedBy   int64     `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	// Members carries the membership set when the board is loaded in full;
	// the creator is authorized whether or not it appears here.
	Members []int64 `json:"members,omitempty"`
}

type List struct {
	ID        int64     `json:"id"`
	BoardID   int64     `json:"boardId"`
	Title     string    `json:"title"`
	Position  int64     `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
	// Cards is populated only by the lists-with-cards endpoint.
	Cards []Card `json:"cards,omitempty"`
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type Card struct {
	ID          int64      `json:"id"`
	ListID      int64      `json:"listId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Position    int64      `json:"position"`
	Priority    Priority   `json:"priority"`
	Labels      []string   `json:"labels"`
	AssignedTo  []int64    `json:"assignedTo"`
	DueAt       *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type ActivityLog struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	UserID    int64          `json:"userId"`
	Username  string         `json:"username,omitempty"`
	BoardID   int64          `json:"boardId"`
	CardID    *int64         `json:"cardId,omitempty"`
	Details   map[string]any `json:"details"`
	CreatedAt time.Time      `json:"createdAt"`
}
