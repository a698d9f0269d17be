package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/retailcheck_backend/config"
	"bitbucket.org/mmdatafocus/retailcheck_backend/middlewares"
	"bitbucket.org/mmdatafocus/retailcheck_backend/models"
	"bitbucket.org/mmdatafocus/retailcheck_backend/utils"
	"bitbucket.org/mmdatafocus/retailcheck_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultPort = "8080"

var tracer trace.Tracer = otel.Tracer("retailcheck_backend")

type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// mapError translates the domain error taxonomy to HTTP codes.
func mapError(c *gin.Context, err error) {
	var ve *utils.ValidationError
	var de *utils.DependencyError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": ve.Message, "reason": ve.Reason})
	case errors.Is(err, utils.ErrLockBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "run busy, try again shortly", "reason": "lock-busy"})
	case errors.Is(err, utils.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "stale state, reload", "reason": "concurrency-conflict"})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "reason": "not-found"})
	case errors.As(err, &de):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dependency unavailable", "reason": "dependency"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func requestUsername(c *gin.Context) (string, bool) {
	username, ok := utils.GetUsernameFromContext(c.Request.Context())
	if !ok || username == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return username, true
}

func startRunHandler(sm *workflow.RunStateMachine) gin.HandlerFunc {
	type request struct {
		ShopId int    `json:"shop_id" binding:"required"`
		Date   string `json:"date" binding:"omitempty,datetime=2006-01-02"`
	}
	return func(c *gin.Context) {
		username, ok := requestUsername(c)
		if !ok {
			return
		}
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := sm.StartRun(c.Request.Context(), req.ShopId, req.Date, username)
		if err != nil {
			mapError(c, err)
			return
		}
		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		c.JSON(status, result)
	}
}

func assignRoleHandler(sm *workflow.RunStateMachine) gin.HandlerFunc {
	type request struct {
		ShopId   int    `json:"shop_id" binding:"required"`
		Date     string `json:"date" binding:"required,datetime=2006-01-02"`
		Role     string `json:"role" binding:"required,oneof=opener closer"`
		Username string `json:"username"`
	}
	return func(c *gin.Context) {
		sessionUser, ok := requestUsername(c)
		if !ok {
			return
		}
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// Assigning someone else requires manager rights.
		username := req.Username
		if username == "" {
			username = sessionUser
		} else if username != sessionUser {
			if isManager, _ := utils.GetIsManagerFromContext(c.Request.Context()); !isManager {
				c.JSON(http.StatusForbidden, gin.H{"error": "only managers may assign other users"})
				return
			}
		}
		result, err := sm.AssignRole(c.Request.Context(), req.ShopId, req.Date, models.RunRole(req.Role), username)
		if err != nil {
			mapError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handoverHandler(sm *workflow.RunStateMachine) gin.HandlerFunc {
	type request struct {
		ShopId      int    `json:"shop_id" binding:"required"`
		Date        string `json:"date" binding:"required,datetime=2006-01-02"`
		Role        string `json:"role" binding:"required,oneof=opener closer"`
		NewUsername string `json:"new_username" binding:"required"`
	}
	return func(c *gin.Context) {
		if _, ok := requestUsername(c); !ok {
			return
		}
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		run, err := sm.HandoverRole(c.Request.Context(), req.ShopId, req.Date, models.RunRole(req.Role), req.NewUsername)
		if err != nil {
			mapError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"run": run})
	}
}

func submitStepHandler(sm *workflow.RunStateMachine) gin.HandlerFunc {
	type attachment struct {
		FileRef string `json:"file_ref" binding:"required"`
		Kind    string `json:"kind" binding:"omitempty,oneof=z_report photo receipt"`
	}
	type request struct {
		Phase          string       `json:"phase" binding:"required"`
		StepCode       string       `json:"step_code" binding:"required"`
		RawValue       string       `json:"raw_value"`
		Comment        string       `json:"comment"`
		Skip           bool         `json:"skip"`
		IdempotencyKey string       `json:"idempotency_key" binding:"required"`
		Attachments    []attachment `json:"attachments" binding:"dive"`
	}
	return func(c *gin.Context) {
		username, ok := requestUsername(c)
		if !ok {
			return
		}
		runId, err := strconv.Atoi(c.Param("run_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run_id"})
			return
		}
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		in := workflow.SubmitStepInput{
			RunId:          runId,
			Phase:          req.Phase,
			StepCode:       req.StepCode,
			RawValue:       req.RawValue,
			Comment:        req.Comment,
			Skip:           req.Skip,
			IdempotencyKey: req.IdempotencyKey,
			Username:       username,
		}
		for _, a := range req.Attachments {
			in.Attachments = append(in.Attachments, workflow.AttachmentInput{
				FileRef: a.FileRef,
				Kind:    models.AttachmentKind(a.Kind),
			})
		}
		result, err := sm.SubmitStep(c.Request.Context(), in)
		if err != nil {
			mapError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func closeRunHandler(sm *workflow.RunStateMachine) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := requestUsername(c)
		if !ok {
			return
		}
		runId, err := strconv.Atoi(c.Param("run_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run_id"})
			return
		}
		run, err := sm.CloseRun(c.Request.Context(), runId, username)
		if err != nil {
			mapError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"run": run})
	}
}

func returnRunHandler(sm *workflow.RunStateMachine) gin.HandlerFunc {
	type request struct {
		Reason string `json:"reason" binding:"required"`
	}
	return func(c *gin.Context) {
		username, ok := requestUsername(c)
		if !ok {
			return
		}
		runId, err := strconv.Atoi(c.Param("run_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run_id"})
			return
		}
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		run, err := sm.ReturnRun(c.Request.Context(), runId, req.Reason, username)
		if err != nil {
			mapError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"run": run})
	}
}

func runStatusHandler(sm *workflow.RunStateMachine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requestUsername(c); !ok {
			return
		}
		shopId, err := strconv.Atoi(c.Query("shop_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid shop_id"})
			return
		}
		view, err := sm.RunStatus(c.Request.Context(), shopId, c.Query("date"))
		if err != nil {
			mapError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func exportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requestUsername(c); !ok {
			return
		}
		shopId := 0
		if v := c.Query("shop_id"); v != "" && !strings.EqualFold(v, "ALL") {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid shop_id"})
				return
			}
			shopId = n
		}
		dateFrom := c.Query("from")
		dateTo := c.Query("to")
		if dateFrom == "" || dateTo == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required (YYYY-MM-DD)"})
			return
		}

		rows, err := workflow.BuildExportRows(c.Request.Context(), shopId, dateFrom, dateTo)
		if err != nil {
			mapError(c, err)
			return
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=runs_%s_%s.xlsx", dateFrom, dateTo))
		if err := workflow.WriteExportXLSX(rows, c.Writer); err != nil {
			_ = c.Error(err)
		}
	}
}

// authorizeInternal guards the tick/ops endpoints: they are triggered by
// Cloud Scheduler or ops tooling, not end-user sessions. Accepts either a
// short-lived internal-ops JWT (minted with cmd/ops-token) or the static
// shared token for environments that still use one.
func authorizeInternal(c *gin.Context) bool {
	header := strings.TrimSpace(c.GetHeader("x-internal-token"))
	if header == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return false
	}
	if static := strings.TrimSpace(os.Getenv("INTERNAL_OPS_TOKEN")); static != "" && header == static {
		return true
	}
	if _, err := utils.JwtValidateInternal(header); err == nil {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	return false
}

func remindersTickHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authorizeInternal(c) {
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), "tick.reminders")
		defer span.End()
		if err := workflow.TickReminders(ctx, time.Now()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func deltaAlertsTickHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authorizeInternal(c) {
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), "tick.delta_alerts")
		defer span.End()
		if err := workflow.TickDeltaAlerts(ctx, time.Now()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func notificationsReplayHandler() gin.HandlerFunc {
	type request struct {
		RunId int `json:"run_id"`
	}
	return func(c *gin.Context) {
		if !authorizeInternal(c) {
			return
		}
		var req request
		_ = c.ShouldBindJSON(&req)
		n, err := workflow.ReplayDeadNotifications(c.Request.Context(), config.GetDB(), req.RunId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"requeued": n})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := &RateLimiter{limit: limit, window: time.Duration(windowSec) * time.Second}
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.SessionMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	sm := workflow.NewRunStateMachine()

	v1 := r.Group("/v1")
	v1.POST("/runs/start", startRunHandler(sm))
	v1.POST("/runs/assign-role", assignRoleHandler(sm))
	v1.POST("/runs/handover", handoverHandler(sm))
	v1.POST("/runs/:run_id/steps", submitStepHandler(sm))
	v1.POST("/runs/:run_id/close", closeRunHandler(sm))
	v1.POST("/runs/:run_id/return", returnRunHandler(sm))
	v1.GET("/runs/status", runStatusHandler(sm))
	v1.GET("/export", exportHandler())

	// Tick endpoints: externally triggered (Cloud Scheduler), shared token.
	r.POST("/internal/tick/reminders", remindersTickHandler())
	r.POST("/internal/tick/delta-alerts", deltaAlertsTickHandler())
	// Ops tooling: replay notifications that were marked DEAD.
	r.POST("/internal/ops/notifications/replay", notificationsReplayHandler())

	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow disabling migrations
	// on startup and running them as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Start the notification dispatcher (publishes AFTER commit).
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	go workflow.NewNotifyDispatcher(db, logger).Run(dispatcherCtx)

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<minInt(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on :", port)
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelDispatcher()

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	client := rl.client
	if client == nil {
		client = config.GetRedisDB()
	}
	if client == nil {
		c.Next()
		return
	}

	// IP-based rate limiting.
	key := "rate:" + c.ClientIP()

	exists, err := client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
