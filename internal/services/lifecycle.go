package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/task-escalation-engine/internal/constants"
	apierrors "github.com/yukikurage/task-escalation-engine/internal/errors"
	"github.com/yukikurage/task-escalation-engine/internal/models"
	"github.com/yukikurage/task-escalation-engine/internal/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TaskLifecycleManager owns the create, submit, approve and reject
// transitions and their side effects.
type TaskLifecycleManager struct {
	taskRepo repository.TaskRepository
	userRepo repository.UserRepository
	audit    AuditLogger
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewTaskLifecycleManager creates a new TaskLifecycleManager
func NewTaskLifecycleManager(taskRepo repository.TaskRepository, userRepo repository.UserRepository, audit AuditLogger, log logrus.FieldLogger) *TaskLifecycleManager {
	return &TaskLifecycleManager{
		taskRepo: taskRepo,
		userRepo: userRepo,
		audit:    audit,
		log:      log,
		now:      time.Now,
	}
}

// CreateTaskInput represents input for assigning a task
type CreateTaskInput struct {
	Title             string
	Description       string
	Kind              string
	Repetition        models.Repetition
	IsTemplate        bool
	HasCustomDuration bool
	DurationMinutes   *int
	AssigneeID        uint64
}

// PriceLogInput is one product line of a price survey submission
type PriceLogInput struct {
	ProductName      string
	CompetitorPrices []float64
	Status           string
}

// SubmitInput carries a staff submission. Nil fields keep the stored value;
// a non-nil PriceLogs replaces every stored entry.
type SubmitInput struct {
	Title       *string
	Description *string
	Kind        *string
	Photos      []string
	PriceLogs   []PriceLogInput
}

// Create assigns a new task, or stores a template for the materializer.
func (m *TaskLifecycleManager) Create(ctx context.Context, actor Actor, input CreateTaskInput) (*models.Task, error) {
	if actor.Role != models.RoleSupervisor && actor.Role != models.RoleManager {
		return nil, apierrors.Permission("role %s cannot assign tasks", actor.Role)
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apierrors.Validation("title is required")
	}

	repetition := input.Repetition
	if repetition == "" {
		repetition = models.RepetitionOnce
	}
	if !repetition.Valid() {
		return nil, apierrors.Validation("unknown repetition %q", input.Repetition)
	}
	if input.IsTemplate && repetition == models.RepetitionOnce {
		return nil, apierrors.Validation("a template must repeat DAILY or WEEKLY")
	}
	if input.HasCustomDuration && (input.DurationMinutes == nil || *input.DurationMinutes <= 0) {
		return nil, apierrors.Validation("custom duration must be a positive number of minutes")
	}

	assignee, err := m.userRepo.FindByID(ctx, input.AssigneeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.NotFound("user %d not found", input.AssigneeID)
		}
		return nil, apierrors.Persistence("find assignee", err)
	}

	if !CanAct(actor.Role, assignee.Role, ActionAssign) {
		return nil, apierrors.Permission("role %s cannot assign tasks to role %s", actor.Role, assignee.Role)
	}

	now := m.now().UTC()
	task := &models.Task{
		Title:             title,
		Description:       input.Description,
		Kind:              normalizeKind(input.Kind),
		Repetition:        repetition,
		IsTemplate:        input.IsTemplate,
		HasCustomDuration: input.HasCustomDuration,
		DurationMinutes:   input.DurationMinutes,
		AssigneeID:        assignee.ID,
		AssignerID:        actor.ID,
		Status:            models.TaskStatusWaiting,
		CreatedAt:         now,
	}
	if !input.IsTemplate {
		task.AssignedAt = &now
	}

	if err := m.taskRepo.Create(ctx, task); err != nil {
		return nil, apierrors.Persistence("create task", err)
	}

	m.recordAudit(ctx, AuditEvent{
		Kind:        models.AuditTaskCreated,
		Description: fmt.Sprintf("Task %q assigned to %s", task.Title, assignee.FullName),
		ActorID:     actor.ID,
		TaskID:      &task.ID,
		UserID:      &assignee.ID,
		Details: map[string]any{
			"is_template": task.IsTemplate,
			"repetition":  task.Repetition,
			"kind":        task.Kind,
		},
	})

	return task, nil
}

// Submit records staff work. With a task ID the assignee resubmits their
// task; without one a self-reported task is created already submitted.
// SubmittedAt is written only on the first submission.
func (m *TaskLifecycleManager) Submit(ctx context.Context, actor Actor, taskID *uint64, input SubmitInput) (*models.Task, error) {
	priceLogs, err := buildPriceLogs(input.PriceLogs)
	if err != nil {
		return nil, err
	}

	if taskID == nil {
		return m.selfReport(ctx, actor, input, priceLogs)
	}

	task, err := m.findTask(ctx, *taskID)
	if err != nil {
		return nil, err
	}
	if task.AssigneeID != actor.ID {
		return nil, apierrors.Permission("only the assignee can submit task %d", task.ID)
	}
	if task.Status == models.TaskStatusApproved {
		return nil, apierrors.Conflict("task %d is already approved", task.ID)
	}

	kind := task.Kind
	if input.Kind != nil {
		kind = normalizeKind(*input.Kind)
	}
	if input.PriceLogs != nil && kind != models.KindPriceSurvey {
		return nil, apierrors.Validation("price data is only accepted for %s tasks", models.KindPriceSurvey)
	}

	now := m.now().UTC()
	fields := map[string]any{
		"status":       models.TaskStatusWaiting,
		"submitted_at": gorm.Expr("COALESCE(submitted_at, ?)", now),
		"kind":         kind,
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apierrors.Validation("title cannot be empty")
		}
		fields["title"] = title
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}
	if input.Photos != nil {
		fields["photos"] = datatypes.NewJSONSlice(input.Photos)
	}

	affected, err := m.taskRepo.ConditionalUpdate(ctx, repository.StatusTransition{
		TaskID:     task.ID,
		From:       []models.TaskStatus{models.TaskStatusWaiting, models.TaskStatusRejected},
		AssigneeID: &actor.ID,
	}, fields, &repository.TransitionEffects{
		ReplacePriceLogs: input.PriceLogs != nil,
		PriceLogs:        priceLogs,
	})
	if err != nil {
		return nil, apierrors.Persistence("submit task", err)
	}
	if affected == 0 {
		return nil, apierrors.Conflict("task %d can no longer be submitted", task.ID)
	}

	m.recordAudit(ctx, AuditEvent{
		Kind:        models.AuditTaskSubmitted,
		Description: fmt.Sprintf("Task %d submitted", task.ID),
		ActorID:     actor.ID,
		TaskID:      &task.ID,
		Details: map[string]any{
			"previous_status": task.Status,
			"resubmission":    task.SubmittedAt != nil,
		},
	})

	updated, err := m.taskRepo.FindByID(ctx, task.ID, "PriceLogs")
	if err != nil {
		return nil, apierrors.Persistence("reload task", err)
	}
	return updated, nil
}

func (m *TaskLifecycleManager) selfReport(ctx context.Context, actor Actor, input SubmitInput, priceLogs []models.PriceLogEntry) (*models.Task, error) {
	if input.Title == nil || strings.TrimSpace(*input.Title) == "" {
		return nil, apierrors.Validation("title is required")
	}

	kind := models.KindStandard
	if input.Kind != nil {
		kind = normalizeKind(*input.Kind)
	}
	if input.PriceLogs != nil && kind != models.KindPriceSurvey {
		return nil, apierrors.Validation("price data is only accepted for %s tasks", models.KindPriceSurvey)
	}

	now := m.now().UTC()
	task := &models.Task{
		Title:       strings.TrimSpace(*input.Title),
		Kind:        kind,
		Repetition:  models.RepetitionOnce,
		AssigneeID:  actor.ID,
		AssignerID:  actor.ID,
		Status:      models.TaskStatusWaiting,
		AssignedAt:  &now,
		SubmittedAt: &now,
		Photos:      datatypes.NewJSONSlice(input.Photos),
		PriceLogs:   priceLogs,
		CreatedAt:   now,
	}
	if input.Description != nil {
		task.Description = *input.Description
	}

	if err := m.taskRepo.Create(ctx, task); err != nil {
		return nil, apierrors.Persistence("create self-reported task", err)
	}

	m.recordAudit(ctx, AuditEvent{
		Kind:        models.AuditTaskSubmitted,
		Description: fmt.Sprintf("Self-reported task %q submitted", task.Title),
		ActorID:     actor.ID,
		TaskID:      &task.ID,
		Details:     map[string]any{"self_reported": true},
	})

	return task, nil
}

// Approve moves a submitted task to APPROVED, awards points and notifies the
// assignee. Only one of Approve and Reject can ever win for a submission.
func (m *TaskLifecycleManager) Approve(ctx context.Context, actor Actor, taskID uint64, points int) (*models.Task, error) {
	if !CanAct(actor.Role, "", ActionReview) {
		return nil, apierrors.Permission("role %s cannot approve tasks", actor.Role)
	}
	if points < 0 {
		return nil, apierrors.Validation("points cannot be negative")
	}

	task, err := m.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	affected, err := m.taskRepo.ConditionalUpdate(ctx, awaitingApproval(taskID), map[string]any{
		"status": models.TaskStatusApproved,
	}, &repository.TransitionEffects{
		Score: &models.Score{
			UserID:    task.AssigneeID,
			TaskID:    task.ID,
			Points:    points,
			AwardedBy: actor.ID,
			CreatedAt: now,
		},
		Notification: &models.Notification{
			UserID:    task.AssigneeID,
			TaskID:    &task.ID,
			Title:     constants.ApprovedTitle,
			Body:      fmt.Sprintf(constants.ApprovedBody, task.Title, points),
			Kind:      models.NotificationTaskApproved,
			CreatedAt: now,
		},
	})
	if err != nil {
		return nil, apierrors.Persistence("approve task", err)
	}
	if affected == 0 {
		return nil, apierrors.Conflict("task %d is not awaiting approval", taskID)
	}

	m.recordAudit(ctx, AuditEvent{
		Kind:        models.AuditTaskApproved,
		Description: fmt.Sprintf("Task %d approved", task.ID),
		ActorID:     actor.ID,
		TaskID:      &task.ID,
		UserID:      &task.AssigneeID,
		Details:     map[string]any{"points": points},
	})

	task.Status = models.TaskStatusApproved
	return task, nil
}

// Reject moves a submitted task to REJECTED and notifies the assignee with
// the reason. The assignee may submit again.
func (m *TaskLifecycleManager) Reject(ctx context.Context, actor Actor, taskID uint64, message string) (*models.Task, error) {
	if !CanAct(actor.Role, "", ActionReview) {
		return nil, apierrors.Permission("role %s cannot reject tasks", actor.Role)
	}

	message = strings.TrimSpace(message)
	if message == "" {
		message = constants.DefaultRejectMessage
	}

	task, err := m.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	affected, err := m.taskRepo.ConditionalUpdate(ctx, awaitingApproval(taskID), map[string]any{
		"status": models.TaskStatusRejected,
	}, &repository.TransitionEffects{
		Notification: &models.Notification{
			UserID:    task.AssigneeID,
			TaskID:    &task.ID,
			Title:     constants.RejectedTitle,
			Body:      message,
			Kind:      models.NotificationTaskRejected,
			CreatedAt: now,
		},
	})
	if err != nil {
		return nil, apierrors.Persistence("reject task", err)
	}
	if affected == 0 {
		return nil, apierrors.Conflict("task %d is not awaiting approval", taskID)
	}

	m.recordAudit(ctx, AuditEvent{
		Kind:        models.AuditTaskRejected,
		Description: fmt.Sprintf("Task %d rejected", task.ID),
		ActorID:     actor.ID,
		TaskID:      &task.ID,
		UserID:      &task.AssigneeID,
		Details:     map[string]any{"message": message},
	})

	task.Status = models.TaskStatusRejected
	return task, nil
}

// ListAssigned returns one page of the user's tasks. Templates never appear.
func (m *TaskLifecycleManager) ListAssigned(ctx context.Context, userID uint64, page, pageSize int) ([]models.Task, int64, error) {
	isTemplate := false
	tasks, total, err := m.taskRepo.List(ctx, repository.TaskFilter{
		IsTemplate: &isTemplate,
		AssigneeID: &userID,
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		return nil, 0, apierrors.Persistence("list assigned tasks", err)
	}
	return tasks, total, nil
}

// ListPendingApproval returns one page of submitted tasks awaiting review,
// oldest first.
func (m *TaskLifecycleManager) ListPendingApproval(ctx context.Context, actor Actor, page, pageSize int) ([]models.Task, int64, error) {
	if !CanAct(actor.Role, "", ActionReview) {
		return nil, 0, apierrors.Permission("role %s cannot review tasks", actor.Role)
	}

	isTemplate := false
	submitted := true
	tasks, total, err := m.taskRepo.List(ctx, repository.TaskFilter{
		IsTemplate:  &isTemplate,
		Statuses:    []models.TaskStatus{models.TaskStatusWaiting},
		Submitted:   &submitted,
		OldestFirst: true,
		Preload:     []string{"Assignee"},
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		return nil, 0, apierrors.Persistence("list pending tasks", err)
	}
	return tasks, total, nil
}

// findTask loads a non-template task
func (m *TaskLifecycleManager) findTask(ctx context.Context, taskID uint64) (*models.Task, error) {
	task, err := m.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.NotFound("task %d not found", taskID)
		}
		return nil, apierrors.Persistence("find task", err)
	}
	if task.IsTemplate {
		return nil, apierrors.NotFound("task %d not found", taskID)
	}
	return task, nil
}

func (m *TaskLifecycleManager) recordAudit(ctx context.Context, event AuditEvent) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Append(ctx, event); err != nil {
		m.log.WithError(err).WithField("kind", event.Kind).Warn("Audit entry could not be written")
	}
}

func awaitingApproval(taskID uint64) repository.StatusTransition {
	return repository.StatusTransition{
		TaskID:           taskID,
		From:             []models.TaskStatus{models.TaskStatusWaiting},
		RequireSubmitted: true,
	}
}

func buildPriceLogs(inputs []PriceLogInput) ([]models.PriceLogEntry, error) {
	if inputs == nil {
		return nil, nil
	}

	logs := make([]models.PriceLogEntry, 0, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.ProductName)
		if name == "" {
			return nil, apierrors.Validation("price entry %d has no product name", i+1)
		}
		if len(in.CompetitorPrices) > constants.MaxCompetitorPrices {
			return nil, apierrors.Validation("price entry %d has %d competitor prices (max %d)", i+1, len(in.CompetitorPrices), constants.MaxCompetitorPrices)
		}
		for _, p := range in.CompetitorPrices {
			if p < 0 {
				return nil, apierrors.Validation("price entry %d has a negative price", i+1)
			}
		}

		entry := models.PriceLogEntry{
			ProductName: name,
			Status:      in.Status,
		}
		entry.SetPrices(in.CompetitorPrices)
		logs = append(logs, entry)
	}
	return logs, nil
}

func normalizeKind(kind string) string {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return models.KindStandard
	}
	return kind
}
