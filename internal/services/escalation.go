package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/task-escalation-engine/internal/constants"
	apierrors "github.com/yukikurage/task-escalation-engine/internal/errors"
	"github.com/yukikurage/task-escalation-engine/internal/models"
	"github.com/yukikurage/task-escalation-engine/internal/notify"
	"github.com/yukikurage/task-escalation-engine/internal/repository"
)

// Escalation passes
const (
	PassStaff   = "staff"
	PassManager = "manager"
)

// EscalationItem records one skipped or failed alert
type EscalationItem struct {
	Pass   string  `json:"pass"`
	TaskID *uint64 `json:"taskId,omitempty"`
	UserID uint64  `json:"userId,omitempty"`
	Reason string  `json:"reason"`
}

// EscalationSummary is the result of one scanner run. Candidate counts are
// raw and do not depend on whether any alert was delivered.
type EscalationSummary struct {
	AlertsEnabled     bool             `json:"alertsEnabled"`
	AlertsSent        int              `json:"alertsSent"`
	Recipients        []string         `json:"recipients"`
	StaffCandidates   int              `json:"staffCandidates"`
	ManagerCandidates int              `json:"managerCandidates"`
	Skipped           []EscalationItem `json:"skipped"`
	Failures          []EscalationItem `json:"failures"`
}

// EscalationScanner finds delayed tasks and sends SMS alerts to assignees
// and managers. The reminder marker on each task throttles repeat alerts and
// keeps overlapping runs from sending twice.
type EscalationScanner struct {
	taskRepo     repository.TaskRepository
	userRepo     repository.UserRepository
	settingsRepo repository.SettingsRepository
	smsLogRepo   repository.SmsLogRepository
	gateway      notify.Gateway
	log          logrus.FieldLogger
	now          func() time.Time
}

// NewEscalationScanner creates a new EscalationScanner
func NewEscalationScanner(
	taskRepo repository.TaskRepository,
	userRepo repository.UserRepository,
	settingsRepo repository.SettingsRepository,
	smsLogRepo repository.SmsLogRepository,
	gateway notify.Gateway,
	log logrus.FieldLogger,
) *EscalationScanner {
	return &EscalationScanner{
		taskRepo:     taskRepo,
		userRepo:     userRepo,
		settingsRepo: settingsRepo,
		smsLogRepo:   smsLogRepo,
		gateway:      gateway,
		log:          log,
		now:          time.Now,
	}
}

// Scan runs the staff pass and then the manager pass. Gateway failures are
// recorded per item; a store failure aborts with the partial summary.
func (s *EscalationScanner) Scan(ctx context.Context) (EscalationSummary, error) {
	summary := EscalationSummary{
		Recipients: []string{},
		Skipped:    []EscalationItem{},
		Failures:   []EscalationItem{},
	}

	settings, err := s.settingsRepo.Read(ctx)
	if err != nil {
		return summary, apierrors.Persistence("read settings", err)
	}
	if !settings.AlertEnabled {
		s.log.Debug("Alerts disabled, escalation scan skipped")
		return summary, nil
	}
	summary.AlertsEnabled = true

	// Stored timestamps keep at most millisecond precision on some drivers;
	// whole seconds keep claim and release comparisons exact.
	now := s.now().UTC().Truncate(time.Second)

	if err := s.staffPass(ctx, now, settings.AlertMessageTemplate, &summary); err != nil {
		return summary, err
	}
	if err := s.managerPass(ctx, now, &summary); err != nil {
		return summary, err
	}

	s.log.WithFields(logrus.Fields{
		"alerts_sent":        summary.AlertsSent,
		"staff_candidates":   summary.StaffCandidates,
		"manager_candidates": summary.ManagerCandidates,
		"failures":           len(summary.Failures),
	}).Info("Escalation scan finished")

	return summary, nil
}

func (s *EscalationScanner) staffPass(ctx context.Context, now time.Time, template string, summary *EscalationSummary) error {
	isTemplate := false
	submitted := false
	assignedBefore := now.Add(-constants.StaffDelayThreshold)
	throttleOpen := now.Add(-constants.ReminderThrottle)

	tasks, err := s.taskRepo.FindByFilter(ctx, repository.TaskFilter{
		IsTemplate:         &isTemplate,
		Statuses:           []models.TaskStatus{models.TaskStatusWaiting},
		Submitted:          &submitted,
		AssignedBefore:     &assignedBefore,
		ThrottleOpenBefore: &throttleOpen,
		OldestFirst:        true,
		Preload:            []string{"Assignee"},
	})
	if err != nil {
		return apierrors.Persistence("find delayed staff tasks", err)
	}
	summary.StaffCandidates = len(tasks)

	for i := range tasks {
		task := &tasks[i]
		taskID := task.ID

		if !task.Assignee.HasPhone() {
			summary.Skipped = append(summary.Skipped, EscalationItem{
				Pass:   PassStaff,
				TaskID: &taskID,
				UserID: task.AssigneeID,
				Reason: "assignee has no phone number",
			})
			continue
		}

		claimed, err := s.taskRepo.ClaimThrottle(ctx, task.ID, now, throttleOpen)
		if err != nil {
			return apierrors.Persistence("claim reminder", err)
		}
		if !claimed {
			summary.Skipped = append(summary.Skipped, EscalationItem{
				Pass:   PassStaff,
				TaskID: &taskID,
				UserID: task.AssigneeID,
				Reason: "reminder already sent in throttle window",
			})
			continue
		}

		delay := int(now.Sub(*task.AssignedAt) / time.Minute)
		message := RenderAlert(template, task.Assignee.FullName, task.Title, delay)

		if err := s.dispatch(ctx, task.Assignee.Phone, message, &taskID, task.AssigneeID); err != nil {
			if releaseErr := s.taskRepo.ReleaseThrottle(ctx, task.ID, now, task.LastReminderSentAt); releaseErr != nil {
				s.log.WithError(releaseErr).WithField("task_id", task.ID).Error("Failed to release reminder claim")
			}
			summary.Failures = append(summary.Failures, EscalationItem{
				Pass:   PassStaff,
				TaskID: &taskID,
				UserID: task.AssigneeID,
				Reason: err.Error(),
			})
			continue
		}

		summary.AlertsSent++
		summary.Recipients = append(summary.Recipients, task.Assignee.Phone)
	}

	return nil
}

func (s *EscalationScanner) managerPass(ctx context.Context, now time.Time, summary *EscalationSummary) error {
	isTemplate := false
	submitted := true
	submittedBefore := now.Add(-constants.ManagerDelayThreshold)
	throttleOpen := now.Add(-constants.ReminderThrottle)

	tasks, err := s.taskRepo.FindByFilter(ctx, repository.TaskFilter{
		IsTemplate:         &isTemplate,
		Statuses:           []models.TaskStatus{models.TaskStatusWaiting},
		Submitted:          &submitted,
		SubmittedBefore:    &submittedBefore,
		ThrottleOpenBefore: &throttleOpen,
		OldestFirst:        true,
	})
	if err != nil {
		return apierrors.Persistence("find pending approvals", err)
	}
	summary.ManagerCandidates = len(tasks)
	if len(tasks) == 0 {
		return nil
	}

	managers, err := s.userRepo.ListByRole(ctx, models.RoleManager)
	if err != nil {
		return apierrors.Persistence("list managers", err)
	}
	reachable := make([]models.User, 0, len(managers))
	for _, m := range managers {
		if m.HasPhone() {
			reachable = append(reachable, m)
		} else {
			summary.Skipped = append(summary.Skipped, EscalationItem{
				Pass:   PassManager,
				UserID: m.ID,
				Reason: "manager has no phone number",
			})
		}
	}
	if len(reachable) == 0 {
		return nil
	}

	var claimed []models.Task
	for _, task := range tasks {
		ok, err := s.taskRepo.ClaimThrottle(ctx, task.ID, now, throttleOpen)
		if err != nil {
			s.releaseAll(ctx, claimed, now)
			return apierrors.Persistence("claim reminder", err)
		}
		if !ok {
			taskID := task.ID
			summary.Skipped = append(summary.Skipped, EscalationItem{
				Pass:   PassManager,
				TaskID: &taskID,
				Reason: "reminder already sent in throttle window",
			})
			continue
		}
		claimed = append(claimed, task)
	}
	if len(claimed) == 0 {
		return nil
	}

	oldest := *claimed[0].SubmittedAt
	ids := make([]uint64, len(claimed))
	for i, task := range claimed {
		ids[i] = task.ID
		if task.SubmittedAt.Before(oldest) {
			oldest = *task.SubmittedAt
		}
	}
	delay := int(now.Sub(oldest) / time.Minute)
	message := fmt.Sprintf(constants.ManagerAlertMessage, len(claimed), delay)

	delivered := false
	for _, manager := range reachable {
		if err := s.dispatch(ctx, manager.Phone, message, nil, manager.ID); err != nil {
			summary.Failures = append(summary.Failures, EscalationItem{
				Pass:   PassManager,
				UserID: manager.ID,
				Reason: err.Error(),
			})
			continue
		}

		summary.AlertsSent++
		summary.Recipients = append(summary.Recipients, manager.Phone)
		if !delivered {
			delivered = true
			if err := s.taskRepo.BulkUpdateThrottle(ctx, ids, now); err != nil {
				return apierrors.Persistence("update reminder markers", err)
			}
		}
	}

	if !delivered {
		s.releaseAll(ctx, claimed, now)
	}
	return nil
}

// dispatch sends one message and records it in the SMS log. A provider
// refusal is returned as a downstream error.
func (s *EscalationScanner) dispatch(ctx context.Context, phone, message string, taskID *uint64, userID uint64) error {
	result, sendErr := s.gateway.Send(ctx, phone, message)

	entry := &models.SmsLog{
		Phone:     phone,
		Message:   message,
		Success:   sendErr == nil && result.Success,
		JobID:     result.JobID,
		ErrorCode: result.ErrorCode,
		TaskID:    taskID,
		UserID:    userID,
	}
	if sendErr != nil && entry.ErrorCode == "" {
		entry.ErrorCode = "UNREACHABLE"
	}
	if err := s.smsLogRepo.Append(ctx, entry); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("Failed to write SMS log")
	}

	fields := logrus.Fields{"user_id": userID, "job_id": result.JobID}
	if taskID != nil {
		fields["task_id"] = *taskID
	}

	if sendErr != nil {
		s.log.WithError(sendErr).WithFields(fields).Warn("SMS dispatch failed")
		return apierrors.Downstream(sendErr)
	}
	if !result.Success {
		s.log.WithFields(fields).WithField("error_code", result.ErrorCode).Warn("SMS rejected by provider")
		return apierrors.Downstream(fmt.Errorf("provider error %s", result.ErrorCode))
	}

	s.log.WithFields(fields).Info("SMS alert sent")
	return nil
}

func (s *EscalationScanner) releaseAll(ctx context.Context, tasks []models.Task, claimedAt time.Time) {
	for _, task := range tasks {
		if err := s.taskRepo.ReleaseThrottle(ctx, task.ID, claimedAt, task.LastReminderSentAt); err != nil {
			s.log.WithError(err).WithField("task_id", task.ID).Error("Failed to release reminder claim")
		}
	}
}
