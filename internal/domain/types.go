package domain

// LoginStatus represents the outcome of the login flow
type LoginStatus string

const (
	LoginSuccess         LoginStatus = "success"
	LoginNeedsOTP        LoginStatus = "needs_otp"
	LoginFailed          LoginStatus = "failed"
	LoginAlreadyLoggedIn LoginStatus = "already_logged_in"
)

// ActionState represents the tri-state outcome of a site action
type ActionState string

const (
	ActionDone        ActionState = "SUCCESS"
	ActionAlreadyDone ActionState = "ALREADY_DONE"
	ActionFailed      ActionState = "FAILED"
)

// ActionStatus carries the outcome of a check-in or convert attempt
type ActionStatus struct {
	State   ActionState
	Message string
}

// OK returns true unless the action failed. ALREADY_DONE counts as success:
// the site is already in the state the action was trying to reach.
func (s ActionStatus) OK() bool {
	return s.State != ActionFailed
}

// RunStatus represents the execution state of one profile's pipeline run
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)
