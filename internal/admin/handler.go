package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/workpulse/survey/internal/models"
	"github.com/workpulse/survey/internal/surveys"
	"github.com/workpulse/survey/internal/web"
	"github.com/workpulse/survey/pkg/response"
)

// Summary is the admin view of collected responses.
type Summary struct {
	Total       int64                    `json:"total"`
	Departments []models.DepartmentCount `json:"departments"`
	Recent      []models.SurveyResponse  `json:"recent"`
}

// Handler serves the admin pages. Authentication is enforced by route middleware.
type Handler struct {
	repo        surveys.Repository
	recentLimit int
	loc         *time.Location
	now         func() time.Time
	logger      *zap.Logger
}

// NewHandler creates an admin handler showing the recentLimit newest responses.
func NewHandler(repo surveys.Repository, recentLimit int, loc *time.Location, logger *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{repo: repo, recentLimit: recentLimit, loc: loc, now: time.Now, logger: logger}
}

// Summary handles GET /admin. Every request reads the store afresh.
func (h *Handler) Summary(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := h.repo.Count(ctx)
	if err != nil {
		h.fail(c, "count responses", err)
		return
	}
	departments, err := h.repo.CountByDepartment(ctx)
	if err != nil {
		h.fail(c, "count departments", err)
		return
	}
	recent, err := h.repo.Recent(ctx, h.recentLimit)
	if err != nil {
		h.fail(c, "load recent responses", err)
		return
	}
	for i := range recent {
		recent[i].CreatedAt = recent[i].CreatedAt.In(h.loc)
	}
	if departments == nil {
		departments = []models.DepartmentCount{}
	}
	if recent == nil {
		recent = []models.SurveyResponse{}
	}

	if response.WantsJSON(c) {
		response.OK(c, Summary{Total: total, Departments: departments, Recent: recent})
		return
	}
	c.HTML(http.StatusOK, web.AdminTemplate, web.AdminPage{
		Total:       total,
		Departments: departments,
		Recent:      recent,
		Timezone:    h.loc.String(),
	})
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	h.logger.Error("admin summary", zap.String("op", op), zap.Error(err))
	if response.WantsJSON(c) {
		response.Internal(c, "failed to load survey summary")
		return
	}
	c.HTML(http.StatusInternalServerError, web.ErrorTemplate, web.ErrorPage{
		Status:  http.StatusInternalServerError,
		Message: "The survey summary could not be loaded.",
	})
}
