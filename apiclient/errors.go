package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	crowdfund "github.com/goliatone/go-crowdfund"
	goerrors "github.com/goliatone/go-errors"
)

// APIError is the structured error body returned by the platform API.
type APIError struct {
	Status    int    `json:"status,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Message   string `json:"message,omitempty"`
	Title     string `json:"title,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Text())
}

// Text returns the most specific human message in the body.
func (e *APIError) Text() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Message != "":
		return e.Message
	case e.Title != "":
		return e.Title
	default:
		return http.StatusText(e.Status)
	}
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, apiErr); err != nil {
			text := strings.TrimSpace(string(body))
			if len(text) > 200 {
				text = text[:200]
			}
			apiErr.Message = text
		}
	}
	apiErr.Status = status
	return apiErr
}

// normalize maps an API error body to a categorized rich error.
func normalize(apiErr *APIError, path string) *goerrors.Error {
	category := categoryOf(apiErr.Status)

	textCode := apiErr.ErrorCode
	if textCode == "" && crowdfund.IsAccountNotActivated(apiErr) {
		textCode = crowdfund.TextCodeAccountNotActivated
	}

	richErr := goerrors.Wrap(apiErr, category, apiErr.Text()).
		WithCode(apiErr.Status).
		WithMetadata(map[string]any{
			"status":     apiErr.Status,
			"error_code": apiErr.ErrorCode,
			"detail":     apiErr.Detail,
			"message":    apiErr.Message,
			"path":       path,
		})
	if textCode != "" {
		richErr = richErr.WithTextCode(textCode)
	}
	return richErr
}

func categoryOf(status int) goerrors.Category {
	switch {
	case status == http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case status == http.StatusForbidden:
		return goerrors.CategoryAuthz
	case status == http.StatusNotFound:
		return goerrors.CategoryNotFound
	case status == http.StatusConflict:
		return goerrors.CategoryConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return goerrors.CategoryValidation
	case status == http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	default:
		return goerrors.CategoryInternal
	}
}

// StatusOf returns the HTTP status carried by err, 0 when unknown.
func StatusOf(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if status, ok := richErr.Metadata["status"].(int); ok {
			return status
		}
	}
	return 0
}
