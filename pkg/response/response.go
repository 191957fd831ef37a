package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// SeeOther redirects with 303 so the browser re-requests location with GET.
func SeeOther(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// ValidationFailed sends 400 with per-field messages.
func ValidationFailed(c *gin.Context, fields map[string]string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: "validation failed", Fields: fields})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// TooManyRequests sends 429.
func TooManyRequests(c *gin.Context, err string) {
	c.JSON(http.StatusTooManyRequests, Body{Success: false, Error: err})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}

// WantsJSON reports whether the client prefers JSON over HTML.
// Requests without an Accept header get HTML.
func WantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}
