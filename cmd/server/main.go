package main

import (
	"net/http"
	_ "time/tzdata"

	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-escalation-engine/internal/config"
	"github.com/yukikurage/task-escalation-engine/internal/constants"
	"github.com/yukikurage/task-escalation-engine/internal/database"
	"github.com/yukikurage/task-escalation-engine/internal/handlers"
	"github.com/yukikurage/task-escalation-engine/internal/logger"
	"github.com/yukikurage/task-escalation-engine/internal/middleware"
	"github.com/yukikurage/task-escalation-engine/internal/notify"
	"github.com/yukikurage/task-escalation-engine/internal/repository"
	"github.com/yukikurage/task-escalation-engine/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Init(cfg)
	log := logger.Get()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.MigrateDatabase(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories share the one connection pool
	taskRepo := repository.NewTaskRepository(db)
	userRepo := repository.NewUserRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	smsLogRepo := repository.NewSmsLogRepository(db)
	auditLogger := services.NewStoreAuditLogger(repository.NewAuditRepository(db))

	// Without a provider URL alerts are only written to the log
	var gateway notify.Gateway
	if cfg.SMSAPIURL != "" {
		gateway = notify.NewHTTPGateway(cfg.SMSAPIURL, cfg.SMSAPIKey, cfg.SMSSender, cfg.SMSTimeout)
	} else {
		log.Warn("SMS_API_URL is not set, alerts will only be logged")
		gateway = notify.NewLogGateway(log.WithField("component", "sms"))
	}

	lifecycle := services.NewTaskLifecycleManager(taskRepo, userRepo, auditLogger, log.WithField("component", "lifecycle"))
	materializer := services.NewMaterializer(taskRepo, cfg.Location(), log.WithField("component", "materializer"))
	scanner := services.NewEscalationScanner(taskRepo, userRepo, settingsRepo, smsLogRepo, gateway, log.WithField("component", "escalation"))

	// Initialize Gin router
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Setup session middleware with Redis
	redisAddr := cfg.RedisHost + ":" + cfg.RedisPort
	store, err := redisStore.NewStore(
		10,                        // Redis pool size
		"tcp",                     // network type
		redisAddr,                 // Redis address from config
		"",                        // password (empty = no password)
		[]byte(cfg.SessionSecret), // authentication key
	)
	if err != nil {
		log.Fatalf("Failed to create Redis store: %v", err)
	}
	isProduction := cfg.GinMode == "release"
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	// Initialize handlers
	taskHandler := handlers.NewTaskHandler(lifecycle)
	cronHandler := handlers.NewCronHandler(scanner, materializer)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Task escalation engine is running",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		// Batch triggers, called by an external scheduler
		cron := api.Group("/cron")
		cron.Use(middleware.RequireCronSecret(cfg.CronSecret))
		{
			cron.GET("/escalate", cronHandler.Escalate)
			cron.GET("/materialize", cronHandler.Materialize)
		}

		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(middleware.RequireAuth(), middleware.RequireActor(userRepo))
		{
			tasks.POST("", taskHandler.CreateTask)
			tasks.POST("/submit", taskHandler.SubmitSelfReported)
			tasks.GET("/mine", taskHandler.ListMyTasks)
			tasks.GET("/pending", taskHandler.ListPendingApproval)
			tasks.POST("/:id/submit", taskHandler.SubmitTask)
			tasks.POST("/:id/approve", taskHandler.ApproveTask)
			tasks.POST("/:id/reject", taskHandler.RejectTask)
		}
	}

	// Start server
	log.Infof("Server starting on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
