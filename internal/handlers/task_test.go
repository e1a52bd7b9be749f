package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/task-escalation-engine/internal/constants"
	"github.com/yukikurage/task-escalation-engine/internal/database"
	"github.com/yukikurage/task-escalation-engine/internal/dto"
	"github.com/yukikurage/task-escalation-engine/internal/models"
	"github.com/yukikurage/task-escalation-engine/internal/repository"
	"github.com/yukikurage/task-escalation-engine/internal/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// TaskHandlerTestSuite defines the test suite for TaskHandler
type TaskHandlerTestSuite struct {
	suite.Suite
	db      *gorm.DB
	handler *TaskHandler

	manager *models.User
	staff   *models.User
}

// SetupTest runs before each test
func (suite *TaskHandlerTestSuite) SetupTest() {
	var err error

	// Create in-memory SQLite database
	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	suite.Require().NoError(err)

	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	// Run migrations
	suite.Require().NoError(database.Migrate(suite.db))

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	lifecycle := services.NewTaskLifecycleManager(
		repository.NewTaskRepository(suite.db),
		repository.NewUserRepository(suite.db),
		services.NewStoreAuditLogger(repository.NewAuditRepository(suite.db)),
		log,
	)
	suite.handler = NewTaskHandler(lifecycle)

	// Set Gin to test mode
	gin.SetMode(gin.TestMode)

	suite.manager = suite.createTestUser("Mehmet Kaya", models.RoleManager)
	suite.staff = suite.createTestUser("Ali Demir", models.RoleStaff)
}

// TearDownTest runs after each test
func (suite *TaskHandlerTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

// Helper function to create test data
func (suite *TaskHandlerTestSuite) createTestUser(name string, role models.Role) *models.User {
	user := &models.User{
		FullName: name,
		Phone:    "+90555" + strconv.Itoa(len(name)),
		Role:     role,
	}
	suite.Require().NoError(suite.db.Create(user).Error)
	return user
}

func (suite *TaskHandlerTestSuite) createTestTask(title string, submitted bool) *models.Task {
	now := time.Now().UTC()
	task := &models.Task{
		Title:      title,
		AssigneeID: suite.staff.ID,
		AssignerID: suite.manager.ID,
		Status:     models.TaskStatusWaiting,
		AssignedAt: &now,
	}
	if submitted {
		task.SubmittedAt = &now
	}
	suite.Require().NoError(suite.db.Omit("Assignee").Create(task).Error)
	return task
}

// Helper function to create a context carrying the resolved actor
func (suite *TaskHandlerTestSuite) createActorContext(method, url string, body []byte, user *models.User) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, url, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, url, nil)
	}

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	if user != nil {
		c.Set(constants.ContextKeyUserID, user.ID)
		c.Set(constants.ContextKeyActor, services.Actor{ID: user.ID, Role: user.Role})
	}

	return c, w
}

func setTaskID(c *gin.Context, id uint64) {
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(id, 10)}}
}

func (suite *TaskHandlerTestSuite) decodeError(w *httptest.ResponseRecorder) map[string]any {
	var response map[string]any
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

// TestCreateTask_Success tests successful task assignment
func (suite *TaskHandlerTestSuite) TestCreateTask_Success() {
	body, _ := json.Marshal(map[string]any{
		"title":       "Raf düzeni",
		"description": "Kahvaltılık reyonu",
		"assignee_id": suite.staff.ID,
	})

	c, w := suite.createActorContext("POST", "/api/tasks", body, suite.manager)
	suite.handler.CreateTask(c)

	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	var response dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(suite.T(), "Raf düzeni", response.Title)
	assert.Equal(suite.T(), models.TaskStatusWaiting, response.Status)
	assert.False(suite.T(), response.AwaitingApproval)
	assert.NotNil(suite.T(), response.AssignedAt)
}

// TestCreateTask_InvalidRequest tests creation with a missing title
func (suite *TaskHandlerTestSuite) TestCreateTask_InvalidRequest() {
	body, _ := json.Marshal(map[string]any{"assignee_id": suite.staff.ID})

	c, w := suite.createActorContext("POST", "/api/tasks", body, suite.manager)
	suite.handler.CreateTask(c)

	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "INVALID_INPUT", suite.decodeError(w)["code"])
}

// TestCreateTask_Forbidden tests that staff cannot assign tasks
func (suite *TaskHandlerTestSuite) TestCreateTask_Forbidden() {
	body, _ := json.Marshal(map[string]any{"title": "x", "assignee_id": suite.manager.ID})

	c, w := suite.createActorContext("POST", "/api/tasks", body, suite.staff)
	suite.handler.CreateTask(c)

	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
	assert.Equal(suite.T(), "FORBIDDEN", suite.decodeError(w)["code"])
}

// TestCreateTask_UnknownAssignee tests assignment to a missing user
func (suite *TaskHandlerTestSuite) TestCreateTask_UnknownAssignee() {
	body, _ := json.Marshal(map[string]any{"title": "x", "assignee_id": 999})

	c, w := suite.createActorContext("POST", "/api/tasks", body, suite.manager)
	suite.handler.CreateTask(c)

	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

// TestCreateTask_Unauthorized tests creation without an actor
func (suite *TaskHandlerTestSuite) TestCreateTask_Unauthorized() {
	c, w := suite.createActorContext("POST", "/api/tasks", []byte(`{}`), nil)
	suite.handler.CreateTask(c)

	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

// TestSubmitTask_Success tests submission with photos
func (suite *TaskHandlerTestSuite) TestSubmitTask_Success() {
	task := suite.createTestTask("Vitrin", false)
	body, _ := json.Marshal(map[string]any{"photos": []string{"s3://bucket/1.jpg"}})

	c, w := suite.createActorContext("POST", "/api/tasks/1/submit", body, suite.staff)
	setTaskID(c, task.ID)
	suite.handler.SubmitTask(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(suite.T(), response.AwaitingApproval)
	assert.Equal(suite.T(), []string{"s3://bucket/1.jpg"}, response.Photos)
}

// TestSubmitTask_EmptyBody tests submission without a body
func (suite *TaskHandlerTestSuite) TestSubmitTask_EmptyBody() {
	task := suite.createTestTask("Kasa", false)

	c, w := suite.createActorContext("POST", "/api/tasks/1/submit", nil, suite.staff)
	setTaskID(c, task.ID)
	suite.handler.SubmitTask(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)
}

// TestSubmitTask_NotAssignee tests submission by another user
func (suite *TaskHandlerTestSuite) TestSubmitTask_NotAssignee() {
	task := suite.createTestTask("Depo", false)

	c, w := suite.createActorContext("POST", "/api/tasks/1/submit", nil, suite.manager)
	setTaskID(c, task.ID)
	suite.handler.SubmitTask(c)

	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
}

// TestSubmitTask_InvalidID tests a malformed task ID
func (suite *TaskHandlerTestSuite) TestSubmitTask_InvalidID() {
	c, w := suite.createActorContext("POST", "/api/tasks/abc/submit", nil, suite.staff)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	suite.handler.SubmitTask(c)

	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

// TestSubmitSelfReported_Success tests a self-reported submission
func (suite *TaskHandlerTestSuite) TestSubmitSelfReported_Success() {
	body, _ := json.Marshal(map[string]any{
		"title": "Fiyat kontrolü",
		"kind":  models.KindPriceSurvey,
		"price_logs": []map[string]any{
			{"product_name": "Süt", "competitor_prices": []float64{32.5, 31.9}},
		},
	})

	c, w := suite.createActorContext("POST", "/api/tasks/submit", body, suite.staff)
	suite.handler.SubmitSelfReported(c)

	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	var response dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(suite.T(), response.AwaitingApproval)
	suite.Require().Len(response.PriceLogs, 1)
	assert.Equal(suite.T(), []float64{32.5, 31.9}, response.PriceLogs[0].CompetitorPrices)
}

// TestApproveTask_Success tests approval of a submitted task
func (suite *TaskHandlerTestSuite) TestApproveTask_Success() {
	task := suite.createTestTask("Sayım", true)
	body, _ := json.Marshal(map[string]any{"points": 20})

	c, w := suite.createActorContext("POST", "/api/tasks/1/approve", body, suite.manager)
	setTaskID(c, task.ID)
	suite.handler.ApproveTask(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(suite.T(), models.TaskStatusApproved, response.Status)
}

// TestApproveTask_Conflict tests approving a task twice
func (suite *TaskHandlerTestSuite) TestApproveTask_Conflict() {
	task := suite.createTestTask("Sayım", true)

	for i, want := range []int{http.StatusOK, http.StatusConflict} {
		c, w := suite.createActorContext("POST", "/api/tasks/1/approve", []byte(`{"points": 5}`), suite.manager)
		setTaskID(c, task.ID)
		suite.handler.ApproveTask(c)
		assert.Equal(suite.T(), want, w.Code, "attempt %d", i+1)
	}
}

// TestApproveTask_NotSubmitted tests approving a task that was never submitted
func (suite *TaskHandlerTestSuite) TestApproveTask_NotSubmitted() {
	task := suite.createTestTask("Açık", false)

	c, w := suite.createActorContext("POST", "/api/tasks/1/approve", nil, suite.manager)
	setTaskID(c, task.ID)
	suite.handler.ApproveTask(c)

	assert.Equal(suite.T(), http.StatusConflict, w.Code)
	assert.Equal(suite.T(), "CONFLICT", suite.decodeError(w)["code"])
}

// TestRejectTask_Success tests rejection with a message
func (suite *TaskHandlerTestSuite) TestRejectTask_Success() {
	task := suite.createTestTask("Ön cephe", true)

	c, w := suite.createActorContext("POST", "/api/tasks/1/reject", []byte(`{"message":"Fotoğraf eksik"}`), suite.manager)
	setTaskID(c, task.ID)
	suite.handler.RejectTask(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var notification models.Notification
	suite.Require().NoError(suite.db.Where("task_id = ?", task.ID).First(&notification).Error)
	assert.Equal(suite.T(), "Fotoğraf eksik", notification.Body)
}

// TestListMyTasks_Success tests the assignee's task list
func (suite *TaskHandlerTestSuite) TestListMyTasks_Success() {
	suite.createTestTask("Bir", false)
	suite.createTestTask("İki", true)

	c, w := suite.createActorContext("GET", "/api/tasks/mine?page=1&limit=10", nil, suite.staff)
	suite.handler.ListMyTasks(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response dto.TaskListResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(suite.T(), response.Tasks, 2)
	assert.Equal(suite.T(), int64(2), response.Pagination.Total)
	assert.Equal(suite.T(), 10, response.Pagination.Limit)
}

// TestListPendingApproval_Success tests the review queue
func (suite *TaskHandlerTestSuite) TestListPendingApproval_Success() {
	suite.createTestTask("Bekleyen", true)
	suite.createTestTask("Açık", false)

	c, w := suite.createActorContext("GET", "/api/tasks/pending", nil, suite.manager)
	suite.handler.ListPendingApproval(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response dto.TaskListResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.Require().Len(response.Tasks, 1)
	assert.Equal(suite.T(), "Bekleyen", response.Tasks[0].Title)
	suite.Require().NotNil(response.Tasks[0].Assignee)
	assert.Equal(suite.T(), suite.staff.FullName, response.Tasks[0].Assignee.FullName)
}

// TestListPendingApproval_Forbidden tests the review queue for staff
func (suite *TaskHandlerTestSuite) TestListPendingApproval_Forbidden() {
	c, w := suite.createActorContext("GET", "/api/tasks/pending", nil, suite.staff)
	suite.handler.ListPendingApproval(c)

	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
}

// TestSuite runs the test suite
func TestTaskHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TaskHandlerTestSuite))
}
