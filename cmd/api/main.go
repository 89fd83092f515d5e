package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "recaudo/api/swagger" // swagger docs
	"recaudo/internal/config"
	"recaudo/internal/database"
	"recaudo/internal/handler"
	"recaudo/internal/middleware"
	"recaudo/internal/pdf"
	"recaudo/internal/repository"
	"recaudo/internal/service"
	"recaudo/internal/signer"
	"recaudo/internal/storage"
	"recaudo/internal/telemetry"
	"recaudo/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Recaudo Actas API
// @version         1.0
// @description     Meeting minutes approval by signed links, acta PDFs and the prescription semaforo.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.TraceEndpoint)
	if err != nil {
		log.Fatalf("Tracing setup failed: %v", err)
	}

	linkSigner, err := signer.New(cfg.ActaLinkSecret)
	if err != nil {
		log.Fatalf("ACTA_LINK_SECRET: %v", err)
	}

	db, err := database.NewConnection(cfg.DSN())
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	blobs, err := storage.NewLocalStore(cfg.StorageDir)
	if err != nil {
		log.Fatalf("Storage setup failed: %v", err)
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	auth := middleware.NewAuth(cfg.JWTSecret, cfg.IsRelease())

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	auditRepo := repository.NewAuditRepository(db)
	actaRepo := repository.NewActaRepository(db)
	deps := service.ActaDeps{
		Tx:             txManager,
		Actas:          actaRepo,
		Approvals:      repository.NewApprovalRepository(db),
		Documents:      repository.NewDocumentRepository(db),
		Audit:          auditRepo,
		Blobs:          blobs,
		Signer:         linkSigner,
		Renderer:       pdf.NewRenderer(cfg.Organization),
		Events:         wsHub,
		PublicBaseURL:  cfg.PublicBaseURL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	userService := service.NewUserService(repository.NewUserRepository(db), auditRepo, auth)
	actaService := service.NewActaService(deps)
	approvalService := service.NewApprovalService(deps)
	documentService := service.NewDocumentService(deps)
	auditService := service.NewAuditService(auditRepo, actaRepo)
	procesoService := service.NewProcesoService(txManager, repository.NewProcesoRepository(db), auditRepo)

	if err := userService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatalf("Admin bootstrap failed: %v", err)
	}

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService, auth)
	actaHandler := handler.NewActaHandler(actaService, auditService, auth)
	documentHandler := handler.NewDocumentHandler(documentService, auth, cfg.MaxUploadBytes)
	publicHandler := handler.NewPublicHandler(approvalService, documentService, cfg.MaxUploadBytes)
	procesoHandler := handler.NewProcesoHandler(procesoService, auth)
	auditHandler := handler.NewAuditHandler(auditService, auth)

	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", "X-Acta-Digest"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "ws_clients": wsHub.ClientCount()})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, auth)
	})

	// API Routing
	userHandler.RegisterRoutes(router.Group(""))
	actaHandler.RegisterRoutes(router.Group(""))
	documentHandler.RegisterRoutes(router.Group(""))
	publicHandler.RegisterRoutes(router.Group(""))
	procesoHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("Tracing shutdown: %v", err)
	}
}
