package retry

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"
)

// ThrottleError marks an explicit rate-limit refusal from an external service.
type ThrottleError struct {
	Service    string
	RetryAfter time.Duration
	Err        error
}

func (e *ThrottleError) Error() string {
	msg := "rate limited"
	if e.Service != "" {
		msg = e.Service + ": " + msg
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(", retry after %s", e.RetryAfter)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ThrottleError) Unwrap() error {
	return e.Err
}

var throttlePatterns = []string{
	"429",
	"resource_exhausted",
	"quota exceeded",
	"exceeded your current quota",
	"rate limit",
	"too many requests",
	"retry after",
}

// IsThrottle reports whether err signals a temporary refusal.
func IsThrottle(err error) bool {
	if err == nil {
		return false
	}
	var te *ThrottleError
	if errors.As(err, &te) {
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED") {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range throttlePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

var delayPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)retry(?:ing)? (?:after|in) ([0-9]+(?:\.[0-9]+)?)\s*(ms|s|sec|secs|seconds?|m|min|minutes?)?\b`),
	regexp.MustCompile(`(?i)try again in ([0-9]+(?:\.[0-9]+)?)\s*(ms|s|sec|secs|seconds?|m|min|minutes?)?\b`),
	regexp.MustCompile(`(?i)"?retryDelay"?\s*[:=]\s*"?([0-9]+(?:\.[0-9]+)?)(ms|s|m)?"?`),
}

// SuggestedDelay extracts a server-suggested wait from err, best effort.
func SuggestedDelay(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	var te *ThrottleError
	if errors.As(err, &te) && te.RetryAfter > 0 {
		return te.RetryAfter, true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		for _, detail := range apiErr.Details {
			if raw, ok := detail["retryDelay"].(string); ok {
				if d, ok := parseDelay(raw, ""); ok {
					return d, true
				}
			}
		}
	}

	msg := err.Error()
	for _, re := range delayPatterns {
		m := re.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		unit := ""
		if len(m) > 2 {
			unit = m[2]
		}
		if d, ok := parseDelay(m[1], unit); ok {
			return d, true
		}
	}
	return 0, false
}

func parseDelay(value, unit string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if unit == "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d, d > 0
		}
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	scale := time.Second
	switch strings.ToLower(unit) {
	case "ms":
		scale = time.Millisecond
	case "m", "min", "minute", "minutes":
		scale = time.Minute
	}
	return time.Duration(f * float64(scale)), true
}

// UserMessage renders a terminal error for humans.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if !IsThrottle(err) {
		return fmt.Sprintf("The request failed: %v", err)
	}
	if d, ok := SuggestedDelay(err); ok {
		secs := int((d + time.Second - 1) / time.Second)
		return fmt.Sprintf("The service is rate limited. Please try again in about %d seconds.", secs)
	}
	return "The service is rate limited. Please try again shortly."
}
