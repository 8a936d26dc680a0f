package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/edunotas/edunotas-api/pkg/errors"
	"github.com/edunotas/edunotas-api/pkg/response"
)

// bindJSON decodes the body into req, writing a validation error on failure.
func bindJSON(c *gin.Context, req interface{}, message string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

// optionalIntQuery parses a non-negative integer query parameter; absent yields nil.
func optionalIntQuery(c *gin.Context, key string) (*int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be a non-negative integer")
	}
	return &v, nil
}
