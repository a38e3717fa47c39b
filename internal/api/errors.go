package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/jsonapi"
)

// Error is a non-2xx backend response.
type Error struct {
	StatusCode int
	Errors     []*jsonapi.ErrorObject
	Message    string
}

func (e *Error) Error() string {
	var parts []string
	for _, obj := range e.Errors {
		if obj == nil {
			continue
		}
		switch {
		case obj.Detail != "":
			parts = append(parts, obj.Detail)
		case obj.Title != "":
			parts = append(parts, obj.Title)
		}
	}
	if len(parts) == 0 && e.Message != "" {
		parts = append(parts, e.Message)
	}
	if len(parts) == 0 {
		parts = append(parts, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api: %d %s", e.StatusCode, strings.Join(parts, "; "))
}

func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsValidation reports whether the backend rejected the request input (bet below minimum, bad tile, ...).
func IsValidation(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnprocessableEntity || apiErr.StatusCode == http.StatusBadRequest
}
