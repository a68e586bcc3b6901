package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"tasklist/internal/auth"
	"tasklist/internal/domain/errors"
	"tasklist/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator"
)

type TaskAPI struct {
	httpSrv  *http.Server
	cfg      *Config
	auth     *service.AuthService
	tasks    *service.TaskService
	guard    *Guard
	validate *validator.Validate
	started  time.Time
}

func NewTaskAPI(users service.UserRepository, tasks service.TaskRepository, cfg *Config) *TaskAPI {
	if users == nil || tasks == nil {
		return nil
	}
	cfg = cfg.withDefaults()

	tokens := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.TokenTTL)
	authService, err := service.NewAuthService(users, tokens, cfg.BcryptCost)
	if err != nil {
		log.Println("[ERROR] failed to initialise auth service:", err)
		return nil
	}

	api := &TaskAPI{
		httpSrv: &http.Server{
			Addr:              cfg.ListenAddr(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		cfg:      cfg,
		auth:     authService,
		tasks:    service.NewTaskService(tasks, cfg.MaxPageLimit),
		guard:    NewGuard(tokens, authService, cfg.IsDevelopment()),
		validate: newValidator(),
		started:  time.Now(),
	}

	api.configRoutes()

	return api
}

func (api *TaskAPI) Start() error {
	if api.httpSrv == nil {
		return errors.ErrInternalServer
	}
	if err := api.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (api *TaskAPI) Shutdown(ctx context.Context) error {
	if api.httpSrv == nil {
		return errors.ErrInternalServer
	}
	return api.httpSrv.Shutdown(ctx)
}

func (api *TaskAPI) Handler() http.Handler {
	return api.httpSrv.Handler
}

func (api *TaskAPI) configRoutes() {
	if !api.cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(
		gin.Logger(),
		gin.Recovery(),
		CORS(api.cfg.CORSOrigin),
		GzipRequestDecompress(),
		GzipResponseCompress(),
	)

	router.NoRoute(func(ctx *gin.Context) {
		fail(ctx, http.StatusNotFound, "route "+ctx.Request.URL.Path+" not found")
	})
	router.NoMethod(func(ctx *gin.Context) {
		fail(ctx, http.StatusMethodNotAllowed, "method "+ctx.Request.Method+" not allowed on "+ctx.Request.URL.Path)
	})

	router.GET("/", api.index)
	router.GET("/health", api.health)

	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/register", api.register)
		authGroup.POST("/login", api.login)
		authGroup.GET("/profile", api.guard.Require(), api.profile)
	}

	tasks := router.Group("/api/tasks", api.guard.Require())
	{
		tasks.POST("", api.createTask)
		tasks.GET("", api.getTasks)
		tasks.GET("/:id", api.getTaskByID)
		tasks.PUT("/:id", api.updateTask)
		tasks.DELETE("/:id", api.deleteTask)
		tasks.PATCH("/:id/toggle", api.toggleTask)
	}

	api.httpSrv.Handler = router
}

func (api *TaskAPI) index(ctx *gin.Context) {
	respond(ctx, http.StatusOK, "task management API", gin.H{
		"version": "1.0.0",
		"endpoints": gin.H{
			"auth": gin.H{
				"register": "POST /api/auth/register",
				"login":    "POST /api/auth/login",
				"profile":  "GET /api/auth/profile",
			},
			"tasks": gin.H{
				"create":  "POST /api/tasks",
				"getAll":  "GET /api/tasks",
				"getById": "GET /api/tasks/:id",
				"update":  "PUT /api/tasks/:id",
				"delete":  "DELETE /api/tasks/:id",
				"toggle":  "PATCH /api/tasks/:id/toggle",
			},
			"health": "GET /health",
		},
	})
}

func (api *TaskAPI) health(ctx *gin.Context) {
	respond(ctx, http.StatusOK, "server is running", gin.H{
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": api.cfg.Environment,
		"uptime":      time.Since(api.started).Round(time.Second).String(),
	})
}
