package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/denrolya/budget-api/internal/config"
	"github.com/denrolya/budget-api/internal/database"
	"github.com/denrolya/budget-api/internal/handlers"
	"github.com/denrolya/budget-api/internal/ledger"
	"github.com/denrolya/budget-api/internal/logger"
	"github.com/denrolya/budget-api/internal/middleware"
	"github.com/denrolya/budget-api/internal/rates"
	"github.com/denrolya/budget-api/internal/services"
	"github.com/denrolya/budget-api/internal/validator"
)

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Wire the ledger engine around the external rate source
	rateClient := rates.NewClient(
		&http.Client{Timeout: 10 * time.Second},
		appConfig.RatesAPIURL,
		appConfig.SupportedCurrencies,
	)
	converter := ledger.NewConverter(rateClient, appConfig.SupportedCurrencies)
	engine := ledger.NewOrchestrator(converter)

	// Initialize services
	db := dbManager.DB()
	userService := services.NewUserService(db)
	accountService := services.NewAccountService(db, engine)
	transactionService := services.NewTransactionService(db, accountService, engine)
	debtService := services.NewDebtService(db, engine)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService)
	accountHandler := handlers.NewAccountHandler(accountService)
	transactionHandler := handlers.NewTransactionHandler(transactionService)
	debtHandler := handlers.NewDebtHandler(debtService)
	rateHandler := handlers.NewRateHandler(converter)

	// Register custom request validators
	validator.Register()

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// User profile
	protected.GET("/profile", authHandler.Profile)

	// Account routes
	accounts := protected.Group("/accounts")
	accounts.POST("", accountHandler.CreateAccount)
	accounts.GET("", accountHandler.ListAccounts)
	accounts.GET("/:id", accountHandler.GetAccount)
	accounts.PUT("/:id", accountHandler.UpdateAccount)
	accounts.GET("/:id/history", accountHandler.GetAccountHistory)
	accounts.GET("/:id/transactions", transactionHandler.ListAccountTransactions)

	// Transaction routes
	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.POST("/import", transactionHandler.ImportTransactions)
	transactions.GET("", transactionHandler.ListTransactions)
	transactions.GET("/:id", transactionHandler.GetTransaction)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	// Debt routes
	debts := protected.Group("/debts")
	debts.POST("", debtHandler.CreateDebt)
	debts.GET("", debtHandler.ListDebts)
	debts.GET("/:id", debtHandler.GetDebt)
	debts.POST("/:id/close", debtHandler.CloseDebt)
	debts.DELETE("/:id", debtHandler.DeleteDebt)

	// Rate routes
	protected.GET("/rates/convert", rateHandler.Convert)

	log.Infof("Starting budget API server on port %s", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
