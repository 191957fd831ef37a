package surveys

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/workpulse/survey/internal/web"
	"github.com/workpulse/survey/pkg/response"
)

const maxFormMemory = 1 << 20

// Handler serves the public survey form and accepts submissions.
type Handler struct {
	repo   Repository
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates a survey handler that stamps responses in loc.
func NewHandler(repo Repository, loc *time.Location, logger *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{repo: repo, loc: loc, now: time.Now, logger: logger}
}

// Form handles GET / and GET /form.
func (h *Handler) Form(c *gin.Context) {
	c.HTML(http.StatusOK, web.FormTemplate, web.NewFormPage(nil, nil, nil))
}

// Success handles GET /success.
func (h *Handler) Success(c *gin.Context) {
	c.HTML(http.StatusOK, web.SuccessTemplate, nil)
}

// Submit handles POST /submit. A stored response redirects to /success with 303.
func (h *Handler) Submit(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.fail(c, http.StatusBadRequest, "could not read the submitted form")
		return
	}
	form := c.Request.PostForm

	resp, err := ParseSubmission(form, h.now().In(h.loc))
	var verr *ValidationError
	if errors.As(err, &verr) {
		h.invalid(c, verr)
		return
	}
	if err != nil {
		h.fail(c, http.StatusBadRequest, "could not read the submitted form")
		return
	}

	id, err := h.repo.Insert(c.Request.Context(), resp)
	if err != nil {
		if errors.As(err, &verr) {
			h.invalid(c, verr)
			return
		}
		h.logger.Error("store survey response", zap.Error(err))
		h.fail(c, http.StatusInternalServerError, "your response could not be saved, please try again later")
		return
	}

	h.logger.Info("survey response stored",
		zap.Int64("id", id),
		zap.String("department", resp.Department),
		zap.Int("obstacles", len(resp.Obstacles)),
	)
	response.SeeOther(c, "/success")
}

func (h *Handler) invalid(c *gin.Context, verr *ValidationError) {
	if response.WantsJSON(c) {
		response.ValidationFailed(c, verr.Fields)
		return
	}
	form := c.Request.PostForm
	values := map[string]string{}
	for _, field := range []string{
		FieldName, FieldDepartment, FieldAge, FieldFutureState, FieldEmotionImpact,
		FieldSolution, FieldHelpChannel, FieldAvoid, FieldPrefer,
	} {
		values[field] = formValue(form, field)
	}
	c.HTML(http.StatusBadRequest, web.FormTemplate, web.NewFormPage(values, formValues(form, FieldObstacles), verr.Fields))
}

func (h *Handler) fail(c *gin.Context, status int, msg string) {
	if response.WantsJSON(c) {
		c.JSON(status, response.Body{Success: false, Error: msg})
		return
	}
	c.HTML(status, web.ErrorTemplate, web.ErrorPage{Status: status, Message: msg})
}
