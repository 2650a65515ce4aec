package templates

import (
	"fmt"
	"html/template"
	"time"

	"github.com/stepline-ci/stepline/types"
)

// GetTemplateFunc returns the centralized template functions used across the application
func GetTemplateFunc() template.FuncMap {
	return template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			if d < time.Second {
				return fmt.Sprintf("%dms", d.Milliseconds())
			}
			return d.Truncate(time.Millisecond).String()
		},
		"getStatusClass": func(status types.Status) string {
			return getStatusString(status)
		},
		"getStatusText": func(status types.Status) string {
			return getStatusString(status)
		},
	}
}

// getStatusString returns a consistent lowercase status string
func getStatusString(status types.Status) string {
	switch status {
	case types.StatusFailure:
		return "failure"
	case types.StatusWarning:
		return "warning"
	case types.StatusException:
		return "exception"
	default:
		return "success"
	}
}
