// Package api exposes the reconciliation service over HTTP.
//
// All routes except /health require an X-User-ID header identifying the
// caller; ownership checks happen in the orchestrator. Unauthorized access
// to another user's session is reported as 404 so the API does not leak
// which session ids exist.
package api

import (
	"net/http"
	"strconv"
	"time"

	"bookkeeping-reconciliation-service/internal/models"
	"bookkeeping-reconciliation-service/internal/reconciler"
	"bookkeeping-reconciliation-service/internal/rules"
	svcerrors "bookkeeping-reconciliation-service/pkg/errors"
	"bookkeeping-reconciliation-service/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const userHeader = "X-User-ID"

// Server wires the orchestrator to HTTP handlers.
type Server struct {
	service *reconciler.Service
	logger  logger.Logger
}

// NewServer creates an HTTP server over the given orchestrator
func NewServer(service *reconciler.Service) *Server {
	return &Server{
		service: service,
		logger:  logger.GetGlobalLogger().WithComponent("api"),
	}
}

// Router builds the gin engine with all routes and middleware attached
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173", "http://localhost:8080"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", userHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	api := router.Group("/api")
	api.Use(requireUser())
	{
		api.POST("/sessions", s.createSession)
		api.GET("/sessions", s.listSessions)
		api.GET("/sessions/:id", s.getSession)
		api.POST("/sessions/:id/reconcile", s.reconcileSession)
		api.POST("/sessions/:id/matches", s.createManualMatch)
		api.GET("/sessions/:id/report", s.getReport)
		api.POST("/rules", s.createRule)
		api.GET("/rules", s.listRules)
		api.POST("/rules/apply/:transactionId", s.applyRules)
	}

	return router
}

// requireUser rejects requests without a caller identity
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(userHeader) == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "missing " + userHeader + " header",
			})
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetHeader(userHeader)
}

type createSessionRequest struct {
	AccountID string `json:"accountId" binding:"required"`
	StartDate string `json:"startDate" binding:"required"`
	EndDate   string `json:"endDate" binding:"required"`
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "startDate must be YYYY-MM-DD"})
		return
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endDate must be YYYY-MM-DD"})
		return
	}
	// Make the range cover the whole end day.
	endDate = endDate.Add(24*time.Hour - time.Second)

	session, err := s.service.CreateSession(c.Request.Context(), req.AccountID, userID(c), startDate, endDate)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (s *Server) listSessions(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	sessions, err := s.service.ListSessions(c.Request.Context(), userID(c), c.Query("accountId"), limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if sessions == nil {
		sessions = []*models.ReconciliationSession{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) getSession(c *gin.Context) {
	session, err := s.service.GetSession(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) reconcileSession(c *gin.Context) {
	session, err := s.service.PerformAutomatedReconciliation(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type createMatchRequest struct {
	BankTransactionID string `json:"bankTransactionId" binding:"required"`
	BookTransactionID string `json:"bookTransactionId" binding:"required"`
	Notes             string `json:"notes"`
}

func (s *Server) createManualMatch(c *gin.Context) {
	var req createMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	match, err := s.service.CreateManualMatch(c.Request.Context(), c.Param("id"), userID(c),
		req.BankTransactionID, req.BookTransactionID, req.Notes)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, match)
}

func (s *Server) getReport(c *gin.Context) {
	report, err := s.service.GenerateReport(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) createRule(c *gin.Context) {
	var rule rules.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.UserID = userID(c)

	created, err := s.service.CreateRule(c.Request.Context(), &rule)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) listRules(c *gin.Context) {
	ruleSet, err := s.service.ListRules(c.Request.Context(), userID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": ruleSet})
}

func (s *Server) applyRules(c *gin.Context) {
	result, err := s.service.ApplyRules(c.Request.Context(), userID(c), c.Param("transactionId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// writeError converts service errors to HTTP responses. Unauthorized maps to
// 404, same as not found.
func (s *Server) writeError(c *gin.Context, err error) {
	serviceErr, ok := svcerrors.AsServiceError(err)
	if !ok {
		s.logger.WithError(err).Error("Unclassified error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	switch serviceErr.Category {
	case svcerrors.CategoryValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": serviceErr.Message, "code": serviceErr.Code})
	case svcerrors.CategoryNotFound, svcerrors.CategoryUnauthorized:
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
	default:
		s.logger.WithError(serviceErr).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": serviceErr.Message, "code": serviceErr.Code})
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	value, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return fallback
	}
	return value
}
