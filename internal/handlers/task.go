package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-escalation-engine/internal/dto"
	apierrors "github.com/yukikurage/task-escalation-engine/internal/errors"
	"github.com/yukikurage/task-escalation-engine/internal/logger"
	"github.com/yukikurage/task-escalation-engine/internal/middleware"
	"github.com/yukikurage/task-escalation-engine/internal/models"
	"github.com/yukikurage/task-escalation-engine/internal/services"
	"github.com/yukikurage/task-escalation-engine/internal/utils"
)

type TaskHandler struct {
	lifecycle *services.TaskLifecycleManager
}

func NewTaskHandler(lifecycle *services.TaskLifecycleManager) *TaskHandler {
	return &TaskHandler{
		lifecycle: lifecycle,
	}
}

type priceLogRequest struct {
	ProductName      string    `json:"product_name"`
	CompetitorPrices []float64 `json:"competitor_prices"`
	Status           string    `json:"status"`
}

type submitRequest struct {
	Title       *string           `json:"title"`
	Description *string           `json:"description"`
	Kind        *string           `json:"kind"`
	Photos      []string          `json:"photos"`
	PriceLogs   []priceLogRequest `json:"price_logs"`
}

func (r submitRequest) toInput() services.SubmitInput {
	input := services.SubmitInput{
		Title:       r.Title,
		Description: r.Description,
		Kind:        r.Kind,
		Photos:      r.Photos,
	}
	if r.PriceLogs != nil {
		input.PriceLogs = make([]services.PriceLogInput, len(r.PriceLogs))
		for i, p := range r.PriceLogs {
			input.PriceLogs[i] = services.PriceLogInput{
				ProductName:      p.ProductName,
				CompetitorPrices: p.CompetitorPrices,
				Status:           p.Status,
			}
		}
	}
	return input
}

// CreateTask assigns a task to a user, or stores a recurring template
func (h *TaskHandler) CreateTask(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	type CreateTaskRequest struct {
		Title             string            `json:"title" binding:"required"`
		Description       string            `json:"description"`
		Kind              string            `json:"kind"`
		Repetition        models.Repetition `json:"repetition"`
		IsTemplate        bool              `json:"is_template"`
		HasCustomDuration bool              `json:"has_custom_duration"`
		DurationMinutes   *int              `json:"duration_minutes"`
		AssigneeID        uint64            `json:"assignee_id" binding:"required"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return
	}

	task, err := h.lifecycle.Create(c.Request.Context(), actor, services.CreateTaskInput{
		Title:             req.Title,
		Description:       req.Description,
		Kind:              req.Kind,
		Repetition:        req.Repetition,
		IsTemplate:        req.IsTemplate,
		HasCustomDuration: req.HasCustomDuration,
		DurationMinutes:   req.DurationMinutes,
		AssigneeID:        req.AssigneeID,
	})
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// SubmitTask submits the caller's assigned task for approval
func (h *TaskHandler) SubmitTask(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	taskID, ok := parseTaskID(c)
	if !ok {
		return
	}

	var req submitRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.lifecycle.Submit(c.Request.Context(), actor, &taskID, req.toInput())
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// SubmitSelfReported records work the caller did without an assignment
func (h *TaskHandler) SubmitSelfReported(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return
	}

	task, err := h.lifecycle.Submit(c.Request.Context(), actor, nil, req.toInput())
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// ApproveTask approves a submitted task and awards points
func (h *TaskHandler) ApproveTask(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	taskID, ok := parseTaskID(c)
	if !ok {
		return
	}

	type ApproveRequest struct {
		Points int `json:"points"`
	}

	var req ApproveRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.lifecycle.Approve(c.Request.Context(), actor, taskID, req.Points)
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// RejectTask sends a submitted task back to its assignee
func (h *TaskHandler) RejectTask(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	taskID, ok := parseTaskID(c)
	if !ok {
		return
	}

	type RejectRequest struct {
		Message string `json:"message"`
	}

	var req RejectRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.lifecycle.Reject(c.Request.Context(), actor, taskID, req.Message)
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// ListMyTasks returns the caller's assigned tasks
func (h *TaskHandler) ListMyTasks(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	tasks, total, err := h.lifecycle.ListAssigned(c.Request.Context(), actor.ID, params.Page, params.Limit)
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, params, total))
}

// ListPendingApproval returns submitted tasks waiting for review
func (h *TaskHandler) ListPendingApproval(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	tasks, total, err := h.lifecycle.ListPendingApproval(c.Request.Context(), actor, params.Page, params.Limit)
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, params, total))
}

func parseTaskID(c *gin.Context) (uint64, bool) {
	taskID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid task ID")
		return 0, false
	}
	return taskID, true
}

// bindOptionalJSON binds the body when one was sent
func bindOptionalJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func respondLifecycleError(c *gin.Context, err error) {
	if status, _ := apierrors.StatusFor(err); status == http.StatusInternalServerError {
		logger.Log.WithError(err).WithField("path", c.FullPath()).Error("Lifecycle operation failed")
	}
	apierrors.RespondError(c, err)
}
