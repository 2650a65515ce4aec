package types

// Status represents the outcome classification of an executed step as it
// will be shown on the build waterfall.
type Status string

const (
	// StatusUnknown is the zero value; a presentation without an explicit
	// status is treated as successful when its return code was zero.
	StatusUnknown   Status = ""
	StatusSuccess   Status = "SUCCESS"
	StatusFailure   Status = "FAILURE"
	StatusWarning   Status = "WARNING"
	StatusException Status = "EXCEPTION"
)

// Valid reports whether s is one of the assignable step statuses.
// StatusUnknown is not assignable; it only exists as the unset state.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusWarning, StatusException:
		return true
	}
	return false
}
