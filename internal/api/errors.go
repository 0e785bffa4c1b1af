package api

import (
	"errors"
	"net/http"
	"strings"

	"kikitori/ai"
	"kikitori/audio"
)

// transcribeErrorStatus отображает ошибки конвейера на HTTP статусы
func transcribeErrorStatus(err error) int {
	var (
		unsupported *ai.UnsupportedTierError
		decodeErr   *audio.DecodeError
		loadErr     *ai.ModelLoadError
	)

	switch {
	case errors.As(err, &unsupported):
		return http.StatusForbidden
	case errors.As(err, &decodeErr):
		return http.StatusBadRequest
	case errors.As(err, &loadErr):
		return http.StatusServiceUnavailable
	case strings.Contains(err.Error(), "not found"):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
