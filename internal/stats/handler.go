package stats

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	v1 "github.com/vigorlab/statistics-service/internal/api/v1"
	apperr "github.com/vigorlab/statistics-service/internal/core/errors"
	"github.com/vigorlab/statistics-service/internal/core/period"
)

// domainSlugs maps URL path segments to domains.
var domainSlugs = map[string]v1.Domain{
	"users":          v1.DomainUser,
	"exercises":      v1.DomainExercise,
	"workouts":       v1.DomainWorkout,
	"training-plans": v1.DomainTrainingPlan,
	"equipment":      v1.DomainEquipment,
}

// Handler exposes every engine under /v1/statistics/<domain>.
type Handler struct {
	engines map[v1.Domain]*Engine
}

func NewHandler(engines map[v1.Domain]*Engine) *Handler {
	return &Handler{engines: engines}
}

// RegisterRoutes mounts the statistics API on the gin router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	grp := r.Group("/v1/statistics")
	for slug, domain := range domainSlugs {
		engine, ok := h.engines[domain]
		if !ok {
			continue
		}
		sub := grp.Group("/" + slug)
		sub.POST("/generate", h.generate(engine))
		sub.GET("/report", h.report(engine))
		sub.GET("", h.list(engine))
		sub.GET("/:id", h.findByID(engine))
		sub.DELETE("/:id", h.remove(engine))
	}
}

func (h *Handler) generate(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req v1.GenerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, apperr.InvalidRequest("invalid request body: %v", err))
			return
		}
		p, date, err := req.Resolve()
		if err != nil {
			writeError(c, apperr.InvalidRequest("%v", err))
			return
		}

		snap, genErr := e.Generate(c.Request.Context(), req.EntityID, p, date)
		if genErr != nil {
			writeError(c, genErr)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

func (h *Handler) report(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := period.Parse(c.Query("period"))
		if err != nil {
			writeError(c, apperr.InvalidRequest("%v", err))
			return
		}
		date, err := v1.ParseDate(c.Query("date"))
		if err != nil {
			writeError(c, apperr.InvalidRequest("%v", err))
			return
		}

		report, repErr := e.Report(c.Request.Context(), p, date)
		if repErr != nil {
			writeError(c, repErr)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func (h *Handler) list(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := queryInt(c, "page", 1)
		limit := queryInt(c, "limit", 10)

		result, err := e.List(c.Request.Context(), page, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (h *Handler) findByID(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := e.FindByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

func (h *Handler) remove(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := e.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func writeError(c *gin.Context, err error) {
	classified := apperr.Classify(err, "internal server error")
	c.JSON(classified.Status, apperr.ErrorResponse{
		ErrorType: classified.Type,
		Message:   classified.Message,
	})
}
