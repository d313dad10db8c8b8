package switchboard

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/switchboard/pkg/domain"
)

var (
	// DefaultMaxRequestSize is 32KB.
	DefaultMaxRequestSize = 32 * 1024
	// EnvMaxRequestSize is the environment variable that overrides the default.
	EnvMaxRequestSize = "SWITCHBOARD_MAX_REQUEST_SIZE"
)

var (
	ErrRequestTooLarge = errors.New("request exceeds maximum allowed size")
	ErrInvalidUTF8     = errors.New("request contains invalid UTF-8 sequences")
)

// SanitizeRequest enforces the size limit, validates UTF-8 and strips control characters
// other than newline, tab and carriage return. A limit below 1 selects the default.
// Requests that are blank after cleaning fail with domain.ErrEmptyRequest.
func SanitizeRequest(request string, limit int) (string, error) {
	if limit <= 0 {
		limit = maxRequestSize()
	}
	if len(request) > limit {
		// Rejected rather than truncated so the persisted history matches what the user sent.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrRequestTooLarge, len(request), limit)
	}
	if !utf8.ValidString(request) {
		return "", ErrInvalidUTF8
	}

	clean := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !isSafeControl(r) {
			return -1
		}
		return r
	}, request)

	if strings.TrimSpace(clean) == "" {
		return "", domain.ErrEmptyRequest
	}
	return clean, nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxRequestSize() int {
	if val := os.Getenv(EnvMaxRequestSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxRequestSize
}
