package surveys

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/workpulse/survey/internal/models"
)

// Form field names accepted by POST /submit.
const (
	FieldName          = "name"
	FieldDepartment    = "department"
	FieldAge           = "age"
	FieldFutureState   = "future_state"
	FieldEmotionImpact = "emotion_impact"
	FieldObstacles     = "obstacles"
	FieldSolution      = "solution"
	FieldHelpChannel   = "help_channel"
	FieldAvoid         = "avoid"
	FieldPrefer        = "prefer"
)

// Input bounds. The binding tags on SubmitRequest carry the same numbers.
const (
	MaxShortLen      = 100
	MaxTextLen       = 2000
	MaxObstacleLen   = 100
	MaxObstacleCount = 20
)

const (
	msgRequired          = "is required"
	msgAge               = "must be a whole number"
	msgObstaclesRequired = "select at least one option"
)

// fieldAliases lists the older single-question form names still accepted.
var fieldAliases = map[string][]string{
	FieldFutureState:   {"future"},
	FieldEmotionImpact: {"emotion"},
	FieldObstacles:     {"obstacles[]"},
}

// SubmitRequest is the form body for POST /submit after trimming and alias folding.
type SubmitRequest struct {
	Name          string   `form:"name" binding:"required,max=100"`
	Department    string   `form:"department" binding:"required,max=100"`
	Age           string   `form:"age" binding:"required,wholenumber"`
	FutureState   string   `form:"future_state" binding:"required,max=2000"`
	EmotionImpact string   `form:"emotion_impact" binding:"required,max=2000"`
	Obstacles     []string `form:"obstacles" binding:"required,min=1,max=20,dive,max=100"`
	Solution      string   `form:"solution" binding:"required,max=2000"`
	HelpChannel   string   `form:"help_channel" binding:"required,max=2000"`
	Avoid         string   `form:"avoid" binding:"required,max=2000"`
	Prefer        string   `form:"prefer" binding:"required,max=2000"`
}

var registerOnce sync.Once

// registerValidations adds the custom tags used by SubmitRequest to gin's validator.
func registerValidations() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("wholenumber", func(fl validator.FieldLevel) bool {
			_, err := strconv.Atoi(fl.Field().String())
			return err == nil
		})
	})
}

// ParseSubmission validates a submitted form and builds the record to store.
// All field problems are reported together in a *ValidationError.
func ParseSubmission(form url.Values, now time.Time) (*models.SurveyResponse, error) {
	registerValidations()

	var req SubmitRequest
	if err := binding.MapFormWithTag(&req, normalizeForm(form), "form"); err != nil {
		return nil, fmt.Errorf("map submission: %w", err)
	}
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		return nil, fieldErrors(err)
	}

	age, err := strconv.Atoi(req.Age)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{FieldAge: msgAge}}
	}
	return &models.SurveyResponse{
		Name:          req.Name,
		Department:    req.Department,
		Age:           age,
		FutureState:   req.FutureState,
		EmotionImpact: req.EmotionImpact,
		Obstacles:     req.Obstacles,
		ObstaclesText: models.JoinObstacles(req.Obstacles),
		Solution:      req.Solution,
		HelpChannel:   req.HelpChannel,
		Avoid:         req.Avoid,
		Prefer:        req.Prefer,
		CreatedAt:     now,
	}, nil
}

// normalizeForm trims values, folds alias names into the canonical fields and drops
// blank or repeated obstacle labels. Blank fields are left out so "required" catches them.
func normalizeForm(form url.Values) map[string][]string {
	out := make(map[string][]string, 10)
	for _, field := range []string{
		FieldName, FieldDepartment, FieldAge, FieldFutureState, FieldEmotionImpact,
		FieldSolution, FieldHelpChannel, FieldAvoid, FieldPrefer,
	} {
		if v := strings.TrimSpace(formValue(form, field)); v != "" {
			out[field] = []string{v}
		}
	}
	if labels := dedupeObstacles(formValues(form, FieldObstacles)); len(labels) > 0 {
		out[FieldObstacles] = labels
	}
	return out
}

// dedupeObstacles trims labels and drops blanks and repeats, keeping first occurrence order.
func dedupeObstacles(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, label := range raw {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

// fieldErrors turns validator output into a ValidationError keyed by form field name.
func fieldErrors(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	var verr ValidationError
	for _, fe := range ves {
		field := formName(fe.StructField())
		if _, seen := verr.Fields[field]; seen {
			continue
		}
		verr.add(field, fieldMessage(field, fe))
	}
	return verr.orNil()
}

func fieldMessage(field string, fe validator.FieldError) string {
	element := strings.Contains(fe.StructField(), "[")
	switch fe.Tag() {
	case "required", "min":
		if field == FieldObstacles {
			return msgObstaclesRequired
		}
		return msgRequired
	case "wholenumber":
		return msgAge
	case "max":
		switch {
		case element:
			return fmt.Sprintf("options must be at most %s characters", fe.Param())
		case fe.Kind() == reflect.Slice:
			return fmt.Sprintf("select at most %s options", fe.Param())
		default:
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
	}
	return "is invalid"
}

// formName maps a SubmitRequest field (or "Obstacles[3]") to its form tag.
func formName(structField string) string {
	if i := strings.IndexByte(structField, '['); i >= 0 {
		structField = structField[:i]
	}
	if f, ok := reflect.TypeOf(SubmitRequest{}).FieldByName(structField); ok {
		if name, _, _ := strings.Cut(f.Tag.Get("form"), ","); name != "" {
			return name
		}
	}
	return strings.ToLower(structField)
}

func formValue(form url.Values, field string) string {
	if v := form.Get(field); v != "" {
		return v
	}
	for _, alias := range fieldAliases[field] {
		if v := form.Get(alias); v != "" {
			return v
		}
	}
	return ""
}

func formValues(form url.Values, field string) []string {
	values := append([]string(nil), form[field]...)
	for _, alias := range fieldAliases[field] {
		values = append(values, form[alias]...)
	}
	return values
}
