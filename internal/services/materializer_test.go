package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	apierrors "github.com/yukikurage/task-escalation-engine/internal/errors"
	"github.com/yukikurage/task-escalation-engine/internal/models"
	"github.com/yukikurage/task-escalation-engine/internal/repository"
	"gorm.io/gorm"
)

var istanbul = time.FixedZone("TRT", 3*60*60)

// monday is 2026-03-02, a Monday, at 10:00 Istanbul time
var monday = time.Date(2026, 3, 2, 10, 0, 0, 0, istanbul)

type MaterializerTestSuite struct {
	suite.Suite
	db           *gorm.DB
	clock        *fakeClock
	materializer *Materializer
	staff        *models.User
	assigner     *models.User
}

func (suite *MaterializerTestSuite) SetupTest() {
	suite.db = openTestDB(suite.T())
	suite.clock = newFakeClock(monday)
	suite.materializer = NewMaterializer(repository.NewTaskRepository(suite.db), istanbul, nullLogger())
	suite.materializer.now = suite.clock.Now

	suite.assigner = createUser(suite.T(), suite.db, "Mehmet Kaya", "+905550000002", models.RoleManager)
	suite.staff = createUser(suite.T(), suite.db, "Ali Demir", "+905550000003", models.RoleStaff)
}

func (suite *MaterializerTestSuite) createTemplate(title string, repetition models.Repetition, createdAt time.Time) *models.Task {
	tpl := &models.Task{
		Title:      title,
		Kind:       models.KindStandard,
		Repetition: repetition,
		IsTemplate: true,
		AssigneeID: suite.staff.ID,
		AssignerID: suite.assigner.ID,
		Status:     models.TaskStatusWaiting,
		CreatedAt:  createdAt.UTC(),
	}
	suite.Require().NoError(suite.db.Omit("Assignee").Create(tpl).Error)
	return tpl
}

func (suite *MaterializerTestSuite) instances(title string) []models.Task {
	var tasks []models.Task
	suite.Require().NoError(suite.db.
		Where("is_template = ? AND title = ?", false, title).
		Find(&tasks).Error)
	return tasks
}

func (suite *MaterializerTestSuite) TestDaily_IdempotentWithinDay() {
	tpl := suite.createTemplate("Açılış kontrolü", models.RepetitionDaily, monday.AddDate(0, 0, -7))
	ctx := context.Background()

	first, err := suite.materializer.Run(ctx)
	suite.Require().NoError(err)
	suite.Equal(1, first.Scanned)
	suite.Equal(1, first.Created)
	suite.Require().Len(first.Items, 1)
	suite.Equal(ActionCreated, first.Items[0].Action)
	suite.Equal(tpl.ID, first.Items[0].TemplateID)
	suite.Require().NotNil(first.Items[0].InstanceID)

	suite.clock.Advance(6 * time.Hour)
	second, err := suite.materializer.Run(ctx)
	suite.Require().NoError(err)
	suite.Equal(0, second.Created)
	suite.Equal(1, second.Skipped)
	suite.Equal(ActionSkipped, second.Items[0].Action)

	instances := suite.instances(tpl.Title)
	suite.Require().Len(instances, 1)
	instance := instances[0]
	suite.Equal(suite.staff.ID, instance.AssigneeID)
	suite.Equal(suite.assigner.ID, instance.AssignerID)
	suite.Equal(models.RepetitionOnce, instance.Repetition)
	suite.Equal(models.TaskStatusWaiting, instance.Status)
	suite.NotNil(instance.AssignedAt)
	suite.Nil(instance.SubmittedAt)
}

func (suite *MaterializerTestSuite) TestDaily_NextDayCreatesAgain() {
	tpl := suite.createTemplate("Kapanış", models.RepetitionDaily, monday.AddDate(0, 0, -1))
	ctx := context.Background()

	_, err := suite.materializer.Run(ctx)
	suite.Require().NoError(err)

	suite.clock.Set(time.Date(2026, 3, 3, 0, 5, 0, 0, istanbul))
	summary, err := suite.materializer.Run(ctx)
	suite.Require().NoError(err)
	suite.Equal(1, summary.Created)

	suite.Len(suite.instances(tpl.Title), 2)
}

func (suite *MaterializerTestSuite) TestDaily_DayBoundaryUsesBusinessZone() {
	tpl := suite.createTemplate("Gece sayımı", models.RepetitionDaily, monday.AddDate(0, 0, -3))
	ctx := context.Background()

	// 23:30 on Monday in Istanbul is still Monday, and 00:30 the next local
	// day is a new bucket although UTC has not changed date yet.
	suite.clock.Set(time.Date(2026, 3, 2, 23, 30, 0, 0, istanbul))
	_, err := suite.materializer.Run(ctx)
	suite.Require().NoError(err)

	suite.clock.Set(time.Date(2026, 3, 3, 0, 30, 0, 0, istanbul))
	summary, err := suite.materializer.Run(ctx)
	suite.Require().NoError(err)
	suite.Equal(1, summary.Created)

	suite.Len(suite.instances(tpl.Title), 2)
}

func (suite *MaterializerTestSuite) TestWeekly_OnlyOnCreationWeekday() {
	tpl := suite.createTemplate("Haftalık envanter", models.RepetitionWeekly, monday.AddDate(0, 0, -14))
	ctx := context.Background()

	suite.clock.Set(monday.AddDate(0, 0, 1))
	tuesday, err := suite.materializer.Run(ctx)
	suite.Require().NoError(err)
	suite.Equal(0, tuesday.Created)
	suite.Equal(1, tuesday.Skipped)
	suite.Empty(suite.instances(tpl.Title))

	suite.clock.Set(monday)
	first, err := suite.materializer.Run(ctx)
	suite.Require().NoError(err)
	suite.Equal(1, first.Created)

	suite.clock.Set(monday.Add(5 * time.Hour))
	again, err := suite.materializer.Run(ctx)
	suite.Require().NoError(err)
	suite.Equal(0, again.Created)
	suite.Len(suite.instances(tpl.Title), 1)

	suite.clock.Set(monday.AddDate(0, 0, 7))
	nextWeek, err := suite.materializer.Run(ctx)
	suite.Require().NoError(err)
	suite.Equal(1, nextWeek.Created)
	suite.Len(suite.instances(tpl.Title), 2)
}

func (suite *MaterializerTestSuite) TestOnceTemplateSkipped() {
	suite.createTemplate("Tek seferlik", models.RepetitionOnce, monday.AddDate(0, 0, -1))

	summary, err := suite.materializer.Run(context.Background())
	suite.Require().NoError(err)
	suite.Equal(1, summary.Scanned)
	suite.Equal(1, summary.Skipped)
	suite.Equal(0, summary.Created)
	suite.Contains(summary.Items[0].Reason, "ONCE")
	suite.Empty(suite.instances("Tek seferlik"))
}

func (suite *MaterializerTestSuite) TestNonTemplatesIgnored() {
	assignedAt := monday.UTC()
	task := &models.Task{
		Title:      "Normal görev",
		Repetition: models.RepetitionDaily,
		AssigneeID: suite.staff.ID,
		AssignerID: suite.assigner.ID,
		AssignedAt: &assignedAt,
	}
	suite.Require().NoError(suite.db.Omit("Assignee").Create(task).Error)

	summary, err := suite.materializer.Run(context.Background())
	suite.Require().NoError(err)
	suite.Equal(0, summary.Scanned)
	suite.Len(suite.instances("Normal görev"), 1)
}

// failingExistsRepository fails ExistsInstance after the first n calls
type failingExistsRepository struct {
	repository.TaskRepository
	remaining int
}

func (r *failingExistsRepository) ExistsInstance(ctx context.Context, assigneeID uint64, title string, from time.Time, to *time.Time) (bool, error) {
	if r.remaining <= 0 {
		return false, errors.New("database is unreachable")
	}
	r.remaining--
	return r.TaskRepository.ExistsInstance(ctx, assigneeID, title, from, to)
}

func (suite *MaterializerTestSuite) TestStoreFailure_ReturnsPartialSummary() {
	suite.createTemplate("Birinci", models.RepetitionDaily, monday.AddDate(0, 0, -2))
	suite.createTemplate("İkinci", models.RepetitionDaily, monday.AddDate(0, 0, -1))

	repo := &failingExistsRepository{TaskRepository: repository.NewTaskRepository(suite.db), remaining: 1}
	materializer := NewMaterializer(repo, istanbul, nullLogger())
	materializer.now = suite.clock.Now

	summary, err := materializer.Run(context.Background())
	suite.Require().Error(err)
	suite.ErrorIs(err, apierrors.ErrPersistence)

	suite.Equal(2, summary.Scanned)
	suite.Equal(1, summary.Created)
	suite.Equal(1, summary.Failed)
	suite.Require().Len(summary.Items, 2)
	suite.Equal(ActionCreated, summary.Items[0].Action)
	suite.Equal(ActionFailed, summary.Items[1].Action)
	suite.Len(suite.instances("Birinci"), 1)
}

// cancelAfterListRepository cancels the run once the templates are loaded
type cancelAfterListRepository struct {
	repository.TaskRepository
	cancel context.CancelFunc
}

func (r *cancelAfterListRepository) FindByFilter(ctx context.Context, filter repository.TaskFilter) ([]models.Task, error) {
	tasks, err := r.TaskRepository.FindByFilter(ctx, filter)
	r.cancel()
	return tasks, err
}

func (suite *MaterializerTestSuite) TestCanceledRun_ReturnsCanceledKind() {
	suite.createTemplate("Birinci", models.RepetitionDaily, monday.AddDate(0, 0, -2))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := &cancelAfterListRepository{TaskRepository: repository.NewTaskRepository(suite.db), cancel: cancel}
	materializer := NewMaterializer(repo, istanbul, nullLogger())
	materializer.now = suite.clock.Now

	summary, err := materializer.Run(ctx)
	suite.Require().Error(err)
	suite.ErrorIs(err, apierrors.ErrCanceled)
	suite.ErrorIs(err, context.Canceled)
	suite.Zero(summary.Scanned)
	suite.Empty(suite.instances("Birinci"))
}

func TestStartOfWeek(t *testing.T) {
	sunday := time.Date(2026, 3, 8, 22, 0, 0, 0, istanbul)
	got := startOfWeek(sunday)
	if !got.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, istanbul)) {
		t.Fatalf("startOfWeek(%v) = %v, want Monday 2026-03-02", sunday, got)
	}
}

func TestMaterializerTestSuite(t *testing.T) {
	suite.Run(t, new(MaterializerTestSuite))
}
