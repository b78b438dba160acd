package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go-freelance/internal/model"
)

const defaultRequestTimeout = 30 * time.Second

// Timeout bounds handler run time. Expired requests get a 503 envelope with
// code REQUEST_TIMEOUT. Hijacked connections are not supported behind it.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	body, _ := json.Marshal(model.APIResponse{
		Success: false,
		Code:    "REQUEST_TIMEOUT",
		Message: "Request timed out",
	})

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(body))
	}
}
