package dto

import (
	"time"

	"github.com/yukikurage/task-escalation-engine/internal/models"
	"github.com/yukikurage/task-escalation-engine/internal/utils"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID       uint64      `json:"id"`
	FullName string      `json:"full_name"`
	Role     models.Role `json:"role"`
}

// PriceLogDTO is one product line of a price survey
type PriceLogDTO struct {
	ProductName      string    `json:"product_name"`
	CompetitorPrices []float64 `json:"competitor_prices"`
	Status           string    `json:"status,omitempty"`
}

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID                uint64            `json:"id"`
	Title             string            `json:"title"`
	Description       string            `json:"description"`
	Kind              string            `json:"kind"`
	Repetition        models.Repetition `json:"repetition"`
	IsTemplate        bool              `json:"is_template"`
	Status            models.TaskStatus `json:"status"`
	AwaitingApproval  bool              `json:"awaiting_approval"`
	HasCustomDuration bool              `json:"has_custom_duration"`
	DurationMinutes   *int              `json:"duration_minutes,omitempty"`
	AssigneeID        uint64            `json:"assignee_id"`
	AssignerID        uint64            `json:"assigner_id"`
	AssignedAt        *time.Time        `json:"assigned_at"`
	SubmittedAt       *time.Time        `json:"submitted_at"`
	Photos            []string          `json:"photos"`
	PriceLogs         []PriceLogDTO     `json:"price_logs,omitempty"`
	Assignee          *UserDTO          `json:"assignee,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskDTO                `json:"tasks"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// Conversion functions

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:       user.ID,
		FullName: user.FullName,
		Role:     user.Role,
	}
}

// ToPriceLogDTO converts a PriceLogEntry, dropping empty price columns
func ToPriceLogDTO(entry models.PriceLogEntry) PriceLogDTO {
	prices := make([]float64, 0, 5)
	for _, p := range []*float64{entry.Price1, entry.Price2, entry.Price3, entry.Price4, entry.Price5} {
		if p != nil {
			prices = append(prices, *p)
		}
	}
	return PriceLogDTO{
		ProductName:      entry.ProductName,
		CompetitorPrices: prices,
		Status:           entry.Status,
	}
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	out := TaskDTO{
		ID:                task.ID,
		Title:             task.Title,
		Description:       task.Description,
		Kind:              task.Kind,
		Repetition:        task.Repetition,
		IsTemplate:        task.IsTemplate,
		Status:            task.Status,
		AwaitingApproval:  task.IsSubmitted(),
		HasCustomDuration: task.HasCustomDuration,
		DurationMinutes:   task.DurationMinutes,
		AssigneeID:        task.AssigneeID,
		AssignerID:        task.AssignerID,
		AssignedAt:        task.AssignedAt,
		SubmittedAt:       task.SubmittedAt,
		Photos:            []string(task.Photos),
		CreatedAt:         task.CreatedAt,
		UpdatedAt:         task.UpdatedAt,
	}
	if out.Photos == nil {
		out.Photos = []string{}
	}

	// Only include the assignee if it was preloaded
	if task.Assignee.ID != 0 {
		assignee := ToUserDTO(task.Assignee)
		out.Assignee = &assignee
	}

	if len(task.PriceLogs) > 0 {
		out.PriceLogs = make([]PriceLogDTO, len(task.PriceLogs))
		for i, entry := range task.PriceLogs {
			out.PriceLogs[i] = ToPriceLogDTO(entry)
		}
	}

	return out
}

// ToTaskListResponse converts one page of tasks into the list response
func ToTaskListResponse(tasks []models.Task, params utils.PaginationParams, total int64) TaskListResponse {
	items := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskDTO(task)
	}
	return TaskListResponse{
		Tasks: items,
		Pagination: utils.PaginationResponse{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	}
}
