// Package exitcodes defines the standard exit codes used by stepline.
package exitcodes

// Exit code constants used by stepline
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when every step succeeded
// * StepFailure (1): Used when one or more steps failed
// * SetupErr (2): Used for setup errors such as an unresolvable recipe or
//   invalid configuration
const (
	Success     = 0 // All steps succeeded
	StepFailure = 1 // Step failures
	SetupErr    = 2 // Setup or configuration errors
)
