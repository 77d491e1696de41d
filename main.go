package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"

	"notebook-engine-server/handlers"
	"notebook-engine-server/middleware"
	"notebook-engine-server/services"
)

// @title Notebook Engine API
// @version 1.0
// @description Out-of-process script execution and model lifecycle API for data analysis notebooks
// @host localhost:8080
// @BasePath /api
func main() {
	// Config
	serverPort := getEnv("SERVER_PORT", "8080")

	redisHost := getEnv("REDIS_HOST", "localhost")
	redisPort, _ := strconv.Atoi(getEnv("REDIS_PORT", "6379"))

	// PostgreSQL Config
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	dbUser := getEnv("DB_USER", "notebook")
	dbPassword := getEnv("DB_PASSWORD", "notebook")
	dbName := getEnv("DB_NAME", "notebook")

	// Bundle storage Config
	storageType := getEnv("STORAGE_TYPE", "local")
	storagePath := getEnv("STORAGE_PATH", "/data/models")

	// Interpreter Config
	interpreterBin := getEnv("INTERPRETER_BIN", "python3")
	workspaceDir := getEnv("WORKSPACE_DIR", os.TempDir())
	timeoutMs, _ := strconv.Atoi(getEnv("EXEC_TIMEOUT_MS", "30000"))
	execTimeout := time.Duration(timeoutMs) * time.Millisecond
	if execTimeout <= 0 {
		execTimeout = services.DefaultExecutionTimeout
	}

	// Initialize services
	dbService, err := services.NewDBService(dbHost, dbPort, dbUser, dbPassword, dbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbService.Close()

	// Initialize database schema
	if err := dbService.InitSchema(context.Background()); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}
	log.Println("Database schema initialized")

	// Initialize bundle storage
	bundleStorage, err := services.NewBundleStorage(storageType, storagePath)
	if err != nil {
		log.Fatalf("Failed to initialize bundle storage: %v", err)
	}
	log.Printf("Bundle storage initialized: %s (%s)", storageType, storagePath)

	// Initialize Redis service
	redisService := services.NewRedisService(redisHost, redisPort)

	// Execution pipeline
	builder := services.NewScriptBuilder()
	marshaler := services.NewMarshaler()
	supervisor := services.NewSupervisor(interpreterBin, workspaceDir)
	executionService := services.NewExecutionService(builder, marshaler, supervisor, execTimeout, dbService, redisService)

	// Model lifecycle
	registryService := services.NewRegistryService(dbService, bundleStorage)
	if err := registryService.Load(context.Background()); err != nil {
		log.Fatalf("Failed to load model registry: %v", err)
	}
	trainingService := services.NewTrainingService(builder, executionService, registryService)
	automlService := services.NewAutoMLService(builder, executionService, registryService)

	// Scheduled retraining
	scheduleService := services.NewScheduleService(dbService)
	scheduleRunner := services.NewScheduleRunner(scheduleService, trainingService)
	scheduleRunner.Start()
	defer scheduleRunner.Stop()

	// Initialize handlers
	executionHandler := handlers.NewExecutionHandler(executionService)
	modelHandler := handlers.NewModelHandler(trainingService, automlService, registryService)
	scheduleHandler := handlers.NewScheduleHandler(scheduleService)

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName: "NotebookEngine",
	})

	// Middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))
	app.Use(middleware.XRayMiddleware())

	// Swagger
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Health endpoints
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "UP"})
	})

	// API routes
	api := app.Group("/api")

	// Execution routes
	api.Post("/execute", executionHandler.ExecuteCode)
	api.Post("/executions", executionHandler.SubmitExecution)
	api.Get("/executions", executionHandler.ListExecutions)
	api.Get("/executions/:id", executionHandler.GetExecutionResult)
	api.Post("/packages", executionHandler.InstallPackage)

	// Model routes
	api.Post("/models/train", modelHandler.TrainModel)
	api.Post("/models/automl", modelHandler.RunAutoML)
	api.Post("/models/import", modelHandler.ImportModel)
	api.Get("/models", modelHandler.ListModels)
	api.Get("/models/:id", modelHandler.GetModel)
	api.Delete("/models/:id", modelHandler.DeleteModel)
	api.Get("/models/:id/export", modelHandler.ExportModel)
	api.Post("/models/:id/predict", modelHandler.Predict)

	// Schedule routes
	api.Post("/training/schedules", scheduleHandler.CreateSchedule)
	api.Get("/training/schedules", scheduleHandler.ListSchedules)
	api.Delete("/training/schedules/:scheduleId", scheduleHandler.DeleteSchedule)

	log.Printf("Notebook Engine Server starting on port %s", serverPort)
	log.Printf("Database: %s:%d/%s", dbHost, dbPort, dbName)
	log.Printf("Redis: %s:%d", redisHost, redisPort)
	log.Printf("Interpreter: %s (timeout %s)", interpreterBin, execTimeout)
	log.Fatal(app.Listen(":" + serverPort))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
