package handlers

import (
	"net/http"
	"sync/atomic"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps are the handles connected after startup.
type Deps struct {
	DB    *gorm.DB
	Audit models.AuditSink
}

// Handler serves the REST endpoints. Until Attach is called every route except
// /healthz answers 503.
type Handler struct {
	logger *logrus.Logger
	deps   atomic.Pointer[Deps]
}

func New(logger *logrus.Logger) *Handler {
	return &Handler{logger: logger}
}

func (h *Handler) Attach(deps Deps) {
	if deps.Audit == nil {
		deps.Audit = models.NoopAuditSink{}
	}
	h.deps.Store(&deps)
}

func (h *Handler) Ready() bool {
	return h.deps.Load() != nil
}

func (h *Handler) ReadinessGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if !h.Ready() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": false, "message": "service not ready"})
			return
		}
		c.Next()
	}
}

func (h *Handler) db() *gorm.DB {
	return h.deps.Load().DB
}

func (h *Handler) audit() models.AuditSink {
	return h.deps.Load().Audit
}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.GET("/financial-summary", h.getFinancialSummary())
	r.GET("/financial-summary/export", h.exportFinancialSummary())
	r.GET("/financial-summary/stored", h.listStoredFinancialSummaries())
	r.POST("/financial-summary/update", h.updateFinancialSummaryFields())

	r.GET("/financial-DB-MillionPlus", h.cityTypeDashboard(models.CityTypeMillionPlus))
	r.GET("/financial-DB-NonMillionPlus", h.cityTypeDashboard(models.CityTypeNonMillion))

	r.POST("/scheme-info/update/:scheme_id", h.correctScheme())
}

func CustomNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "route not found"})
}
