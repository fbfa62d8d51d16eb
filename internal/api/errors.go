package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"storefront/pkg/validator"
)

// ErrEmptySearch is returned by Search for a blank term. No request is sent.
var ErrEmptySearch = errors.New("search term is empty")

// ValidationError reports input rejected before any request was sent.
type ValidationError = validator.ValidationError

// RequestFailed describes any failed backend call: transport error, non-2xx
// status or an unreadable body.
type RequestFailed struct {
	Method  string
	Path    string
	Status  int    // 0 when no response arrived
	Message string // server-provided message, if any
	Err     error
}

func (e *RequestFailed) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s %s failed: %s", e.Method, e.Path, msg)
	}
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.Path, e.Status, msg)
}

func (e *RequestFailed) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	var rf *RequestFailed
	return errors.As(err, &rf) && rf.Status == fiber.StatusNotFound
}
