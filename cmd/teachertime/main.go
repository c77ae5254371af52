package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/TeacherTime/app/controllers"
	"github.com/ManuelReschke/TeacherTime/app/repository"
	apiv1 "github.com/ManuelReschke/TeacherTime/internal/api/v1"
	"github.com/ManuelReschke/TeacherTime/internal/pkg/billing"
	"github.com/ManuelReschke/TeacherTime/internal/pkg/cache"
	"github.com/ManuelReschke/TeacherTime/internal/pkg/database"
	"github.com/ManuelReschke/TeacherTime/internal/pkg/env"
	"github.com/ManuelReschke/TeacherTime/internal/pkg/jobs"
	"github.com/ManuelReschke/TeacherTime/internal/pkg/router"
	"github.com/ManuelReschke/TeacherTime/internal/pkg/s3archive"
)

func main() {
	app, manager := NewApplication()
	manager.Start()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		fiberlog.Info("Shutting down")
		manager.Stop()
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			fiberlog.Errorf("Shutdown: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *jobs.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/teachertime to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + apiv1.DocumentPath); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := apiv1.LoadDocument(ctx, basePath+apiv1.DocumentPath); err != nil {
		panic(err)
	}

	db := database.GetDB()
	cfg := billing.LoadConfig()
	if cfg.Instance == "" || cfg.APISecret == "" {
		fiberlog.Warn("[Billing] Payrexx credentials missing, checkout creation is disabled")
	}
	service := billing.NewServiceFromDB(db, cfg,
		billing.WithStatusCache(cache.NewStore(cache.GetClient(), "teachertime:")),
	)

	repository.InitializeFactory(db)
	controllers.InitializeBillingController(service)
	repos := repository.GetGlobalRepositories()

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + apiv1.DocumentPath,
		Path:     "v1",
	}))

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Billing:        controllers.GetBillingController(),
		Account:        controllers.NewAccountController(db, repos.User, service),
		Users:          repos.User,
		LimiterStorage: router.NewLimiterStorage(cache.GetClient()),
		MonitorUser:    env.GetEnv("MONITOR_USER", "admin"),
		MonitorPass:    env.GetEnv("MONITOR_PASSWORD", ""),
	})

	return app, jobs.NewManager(jobs.BillingTasks(jobs.LoadConfig(), service, newArchiver(ctx))...)
}

// newArchiver returns nil when the S3 archive is disabled or unreachable;
// the archive job is then not scheduled.
func newArchiver(ctx context.Context) jobs.Archive {
	cfg, err := s3archive.LoadConfig()
	if err != nil {
		fiberlog.Errorf("[S3Archive] Invalid configuration: %v", err)
		return nil
	}
	if !cfg.IsEnabled() {
		return nil
	}
	client, err := s3archive.NewClient(ctx, cfg)
	if err != nil {
		fiberlog.Errorf("[S3Archive] Archive disabled: %v", err)
		return nil
	}
	return s3archive.NewArchiver(billing.NewRepository(database.GetDB()), client, cfg)
}
