package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-escalation-engine/internal/database"
	"github.com/yukikurage/task-escalation-engine/internal/models"
	"github.com/yukikurage/task-escalation-engine/internal/notify"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, database.Migrate(db))
	return db
}

func nullLogger() logrus.FieldLogger {
	log, _ := logrustest.NewNullLogger()
	return log
}

// fakeClock is a settable time source
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentMessage struct {
	Phone   string
	Message string
}

// fakeGateway records every message. Phones listed in failFor are refused by
// the provider; unreachable makes every send fail with an error.
type fakeGateway struct {
	mu          sync.Mutex
	sent        []sentMessage
	failFor     map[string]bool
	unreachable bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{failFor: map[string]bool{}}
}

func (g *fakeGateway) Send(_ context.Context, phone, message string) (notify.SendResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unreachable {
		return notify.SendResult{}, errors.New("connection refused")
	}
	if g.failFor[phone] {
		return notify.SendResult{Success: false, ErrorCode: "INVALID_NUMBER"}, nil
	}
	g.sent = append(g.sent, sentMessage{Phone: phone, Message: message})
	return notify.SendResult{Success: true, JobID: "job-" + phone}, nil
}

func (g *fakeGateway) Sent() []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]sentMessage, len(g.sent))
	copy(out, g.sent)
	return out
}

func createUser(t *testing.T, db *gorm.DB, name, phone string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{FullName: name, Phone: phone, Role: role}
	require.NoError(t, db.Create(user).Error)
	return user
}

func reloadTask(t *testing.T, db *gorm.DB, id uint64) models.Task {
	t.Helper()
	var task models.Task
	require.NoError(t, db.First(&task, id).Error)
	return task
}
