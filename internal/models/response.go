package models

// Response is the envelope every backend endpoint answers with.
type Response[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
}

// OK wraps data in a successful envelope.
func OK[T any](message string, data T) Response[T] {
	return Response[T]{Success: true, Message: message, Data: data}
}

// Fail builds an error envelope.
func Fail(message string, err error) Response[any] {
	r := Response[any]{Success: false, Message: message}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
