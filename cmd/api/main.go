package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inventra-api/internal/config"
	"inventra-api/internal/events"
	"inventra-api/internal/handler"
	"inventra-api/internal/middleware"
	"inventra-api/internal/model"
	"inventra-api/internal/repository"
	"inventra-api/internal/service"
	"inventra-api/internal/ws"
	"inventra-api/pkg/database"
	"inventra-api/pkg/jwt"
	"inventra-api/pkg/storage"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. Load Env
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// 2. Setup Database
	db, err := database.ConnectDB(cfg)
	if err != nil {
		log.Fatal(err)
	}
	// Auto Migrate (Hati-hati di production, sebaiknya pakai tools migrasi terpisah)
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// 3. Seed default privileges, roles, and admin user
	seedPrivilegesRolesAndAdmin(context.Background(), db, cfg)

	// 4. Setup WebSocket Hub and event publishers
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	wsHub := ws.NewHub()
	go wsHub.Run(hubCtx)

	publisher := events.Fanout{events.NewHubPublisher(wsHub)}
	if cfg.RabbitMQURL != "" {
		amqpPublisher, err := events.DialAMQP(cfg.RabbitMQURL, cfg.OrderExchange)
		if err != nil {
			// Dashboards still get websocket events without the broker
			log.Printf("Warning: RabbitMQ unavailable, order events stay local: %v", err)
		} else {
			defer amqpPublisher.Close()
			publisher = append(publisher, amqpPublisher)
			log.Printf("Publishing order events to exchange %s", cfg.OrderExchange)
		}
	}

	images, err := storage.NewImageStore(cfg.UploadDir, cfg.UploadURLPrefix, cfg.MaxUploadBytes)
	if err != nil {
		log.Fatalf("upload dir: %v", err)
	}
	tokens := jwt.NewManager(cfg.JWTSecret, "inventra-api", cfg.JWTTTL)

	// 5. Dependency Injection (Wiring Layers)
	txManager := repository.NewTxManager(db, cfg.TxMaxAttempts)
	productRepo := repository.NewProductRepo(db)
	categoryRepo := repository.NewCategoryRepo(db)
	customerRepo := repository.NewCustomerRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	movementRepo := repository.NewStockMovementRepo(db)
	userRepo := repository.NewUserRepo(db)
	privilegeRepo := repository.NewPrivilegeRepo(db)
	roleRepo := repository.NewRoleRepo(db)

	orderService := service.NewOrderService(service.OrderDeps{
		Tx:        txManager,
		Orders:    orderRepo,
		Products:  productRepo,
		Customers: customerRepo,
		Movements: movementRepo,
		Events:    publisher,
		Metrics:   middleware.OrderMetrics{},
		Timeout:   cfg.RequestTimeout,
		Now:       time.Now,
	})
	invService := service.NewInventoryService(service.InventoryDeps{
		Tx:         txManager,
		Products:   productRepo,
		Categories: categoryRepo,
		Movements:  movementRepo,
		Images:     images,
		Events:     publisher,
		Timeout:    cfg.RequestTimeout,
		NewCode:    model.NewProductCode,
	})
	reportService := service.NewReportService(service.ReportDeps{
		Orders:            orderRepo,
		Products:          productRepo,
		LowStockThreshold: cfg.LowStockThreshold,
		Location:          cfg.ReportLocation,
		Timeout:           cfg.RequestTimeout,
		Now:               time.Now,
	})
	dashService := service.NewDashboardService(service.DashboardDeps{
		Orders:            orderRepo,
		Products:          productRepo,
		Movements:         movementRepo,
		LowStockThreshold: cfg.DashboardLowStockThreshold,
		Location:          cfg.ReportLocation,
		Timeout:           cfg.RequestTimeout,
		Now:               time.Now,
	})
	authService := service.NewAuthService(userRepo, tokens, cfg.RequestTimeout)
	userService := service.NewUserService(userRepo, roleRepo, cfg.RequestTimeout)

	orderHandler := handler.NewOrderHandler(orderService)
	invHandler := handler.NewInventoryHandler(invService)
	reportHandler := handler.NewReportHandler(reportService)
	dashHandler := handler.NewDashboardHandler(dashService)
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	roleHandler := handler.NewRoleHandler(userService)

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ErrorHandler: handler.ErrorHandler,
		BodyLimit:    cfg.MaxUploadBytes + 1024*1024,
	})

	// Middleware
	app.Use(logger.New())  // Logging request
	app.Use(recover.New()) // Panic recovery
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(middleware.Prometheus())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Static(cfg.UploadURLPrefix, images.Dir())

	// 7. Routes
	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Post("/validate-token", authHandler.ValidateToken)

	// ============ PROTECTED ROUTES ============
	requireAuth := middleware.RequireAuth(tokens, userRepo, cfg.RequestTimeout)
	auth.Get("/me", requireAuth, authHandler.Me)
	auth.Post("/change-password", requireAuth, authHandler.ChangePassword)

	protected := api.Group("", requireAuth)

	// Order Routes
	protected.Post("/orders", middleware.RequirePrivilege(model.PrivOrderCreate), orderHandler.PlaceOrder)
	protected.Get("/orders", middleware.RequirePrivilege(model.PrivOrderView), orderHandler.GetOrders)
	protected.Get("/orders/:id", middleware.RequirePrivilege(model.PrivOrderView), orderHandler.GetOrder)
	protected.Put("/orders/:id/complete", middleware.RequirePrivilege(model.PrivOrderComplete), orderHandler.CompleteOrder)
	protected.Post("/orders/cancel", middleware.RequirePrivilege(model.PrivOrderCancel), orderHandler.CancelOrder)

	// Product Routes
	protected.Get("/products", middleware.RequirePrivilege(model.PrivProductView), invHandler.GetProducts)
	protected.Get("/products/:code", middleware.RequirePrivilege(model.PrivProductView), invHandler.GetProduct)
	protected.Get("/products/:code/movements", middleware.RequirePrivilege(model.PrivProductView), invHandler.GetStockHistory)
	protected.Post("/products", middleware.RequirePrivilege(model.PrivProductCreate), invHandler.CreateProduct)
	protected.Put("/products", middleware.RequirePrivilege(model.PrivProductUpdate), invHandler.UpdateProduct)
	protected.Delete("/products/:code", middleware.RequirePrivilege(model.PrivProductDelete), invHandler.DeleteProduct)
	protected.Get("/categories", middleware.RequirePrivilege(model.PrivProductView), invHandler.GetCategories)
	protected.Post("/categories", middleware.RequirePrivilege(model.PrivCategoryCreate), invHandler.CreateCategory)

	// Stats & Report Routes
	protected.Get("/stats/total", middleware.RequirePrivilege(model.PrivReportView), reportHandler.GetTodayStats)
	protected.Get("/stats/top-products", middleware.RequirePrivilege(model.PrivReportView), reportHandler.GetTopProducts)
	protected.Get("/stats/revenue/week", middleware.RequirePrivilege(model.PrivReportView), reportHandler.GetWeeklyRevenue)
	protected.Get("/stats/product/week", middleware.RequirePrivilege(model.PrivReportView), reportHandler.GetWeeklyProductsSold)
	protected.Get("/stockmonitor/low", middleware.RequirePrivilege(model.PrivProductView), reportHandler.GetLowStock)
	protected.Get("/report/sales", middleware.RequirePrivilege(model.PrivReportView), reportHandler.GetSalesReport)

	// Dashboard Routes
	protected.Get("/dashboard/stats", middleware.RequirePrivilege(model.PrivDashboardView), dashHandler.GetDashboardStats)
	protected.Get("/dashboard/stock-movement", middleware.RequirePrivilege(model.PrivDashboardView), dashHandler.GetStockMovement)

	// User Management Routes
	protected.Get("/users", middleware.RequirePrivilege(model.PrivUserView), userHandler.GetUsers)
	protected.Get("/users/:id", middleware.RequirePrivilege(model.PrivUserView), userHandler.GetUser)
	protected.Post("/users", middleware.RequirePrivilege(model.PrivUserCreate), userHandler.CreateUser)
	protected.Put("/users/:id", middleware.RequirePrivilege(model.PrivUserUpdate), userHandler.UpdateUser)
	protected.Delete("/users/:id", middleware.RequirePrivilege(model.PrivUserDelete), userHandler.DeleteUser)

	// Role Routes
	protected.Get("/roles", middleware.RequirePrivilege(model.PrivUserView), roleHandler.GetRoles)

	// Privileges Route (list all available privileges)
	protected.Get("/privileges", middleware.RequirePrivilege(model.PrivUserView), func(c *fiber.Ctx) error {
		privileges, err := privilegeRepo.FindAll(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(privileges)
	})

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHub.Register <- c
		defer func() { wsHub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 8. Graceful Shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Panic(err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Println("Server forced to shutdown:", err)
	}
	stopHub()

	log.Println("Server exited")
}
