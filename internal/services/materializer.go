package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	apierrors "github.com/yukikurage/task-escalation-engine/internal/errors"
	"github.com/yukikurage/task-escalation-engine/internal/models"
	"github.com/yukikurage/task-escalation-engine/internal/repository"
)

// Materialize actions
const (
	ActionCreated = "created"
	ActionSkipped = "skipped"
	ActionFailed  = "failed"
)

// MaterializeItem reports what happened to one template
type MaterializeItem struct {
	TemplateID uint64            `json:"templateId"`
	Title      string            `json:"title"`
	AssigneeID uint64            `json:"assigneeId"`
	Repetition models.Repetition `json:"repetition"`
	Action     string            `json:"action"`
	Reason     string            `json:"reason,omitempty"`
	InstanceID *uint64           `json:"instanceId,omitempty"`
}

// MaterializeSummary is the result of one materializer run
type MaterializeSummary struct {
	Scanned int               `json:"scanned"`
	Created int               `json:"created"`
	Skipped int               `json:"skipped"`
	Failed  int               `json:"failed"`
	Items   []MaterializeItem `json:"items"`
}

// Materializer turns recurring templates into concrete task instances, at
// most one per template per day (DAILY) or per week (WEEKLY).
type Materializer struct {
	taskRepo repository.TaskRepository
	loc      *time.Location
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewMaterializer creates a new Materializer. Day and week boundaries are
// computed in loc.
func NewMaterializer(taskRepo repository.TaskRepository, loc *time.Location, log logrus.FieldLogger) *Materializer {
	if loc == nil {
		loc = time.UTC
	}
	return &Materializer{
		taskRepo: taskRepo,
		loc:      loc,
		log:      log,
		now:      time.Now,
	}
}

// Run materializes every due template. A store failure aborts the run; the
// summary of the templates handled so far is returned with the error.
func (m *Materializer) Run(ctx context.Context) (MaterializeSummary, error) {
	summary := MaterializeSummary{Items: []MaterializeItem{}}

	isTemplate := true
	templates, err := m.taskRepo.FindByFilter(ctx, repository.TaskFilter{
		IsTemplate:  &isTemplate,
		OldestFirst: true,
	})
	if err != nil {
		return summary, apierrors.Persistence("list templates", err)
	}

	now := m.now()
	local := now.In(m.loc)
	dayStart := startOfDay(local)
	weekStart := startOfWeek(local)

	for _, tpl := range templates {
		if err := ctx.Err(); err != nil {
			m.log.WithError(err).WithField("scanned", summary.Scanned).Warn("Materializer canceled")
			return summary, apierrors.Canceled("materialize templates", err)
		}

		summary.Scanned++
		item := MaterializeItem{
			TemplateID: tpl.ID,
			Title:      tpl.Title,
			AssigneeID: tpl.AssigneeID,
			Repetition: tpl.Repetition,
		}

		var from time.Time
		var to *time.Time
		switch tpl.Repetition {
		case models.RepetitionDaily:
			from = dayStart
			end := dayStart.AddDate(0, 0, 1)
			to = &end
		case models.RepetitionWeekly:
			if tpl.CreatedAt.In(m.loc).Weekday() != local.Weekday() {
				summary.skip(item, "not scheduled today")
				continue
			}
			from = weekStart
		default:
			summary.skip(item, fmt.Sprintf("repetition %s is not recurring", tpl.Repetition))
			continue
		}

		exists, err := m.taskRepo.ExistsInstance(ctx, tpl.AssigneeID, tpl.Title, from, to)
		if err != nil {
			summary.fail(item, err)
			m.log.WithError(err).WithField("template_id", tpl.ID).Error("Materializer aborted")
			return summary, apierrors.Persistence("check existing instance", err)
		}
		if exists {
			summary.skip(item, "instance already exists")
			continue
		}

		assignedAt := now.UTC()
		instance := &models.Task{
			Title:             tpl.Title,
			Description:       tpl.Description,
			Kind:              tpl.Kind,
			Repetition:        models.RepetitionOnce,
			HasCustomDuration: tpl.HasCustomDuration,
			DurationMinutes:   tpl.DurationMinutes,
			AssigneeID:        tpl.AssigneeID,
			AssignerID:        tpl.AssignerID,
			Status:            models.TaskStatusWaiting,
			AssignedAt:        &assignedAt,
			CreatedAt:         assignedAt,
		}
		if err := m.taskRepo.Create(ctx, instance); err != nil {
			summary.fail(item, err)
			m.log.WithError(err).WithField("template_id", tpl.ID).Error("Materializer aborted")
			return summary, apierrors.Persistence("create instance", err)
		}

		item.Action = ActionCreated
		item.InstanceID = &instance.ID
		summary.Created++
		summary.Items = append(summary.Items, item)
	}

	m.log.WithFields(logrus.Fields{
		"scanned": summary.Scanned,
		"created": summary.Created,
		"skipped": summary.Skipped,
	}).Info("Materializer run finished")

	return summary, nil
}

func (s *MaterializeSummary) skip(item MaterializeItem, reason string) {
	item.Action = ActionSkipped
	item.Reason = reason
	s.Skipped++
	s.Items = append(s.Items, item)
}

func (s *MaterializeSummary) fail(item MaterializeItem, err error) {
	item.Action = ActionFailed
	item.Reason = err.Error()
	s.Failed++
	s.Items = append(s.Items, item)
}

func startOfDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

// startOfWeek returns Monday 00:00 of t's week
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}
