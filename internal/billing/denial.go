package billing

import "time"

// Denial reasons surfaced to API callers
const (
	ReasonInvalidKey  = "invalid_credential"
	ReasonInactive    = "subscription_inactive"
	ReasonRateLimited = "rate_limit_exceeded"
)

// Denial is the tagged failure outcome of the gate. It carries enough detail
// for the facade to build the documented 401/402/429 bodies.
type Denial struct {
	Reason       string
	Message      string
	Status       string
	CurrentUsage int
	Limit        int
	Overage      int
	Remaining    int
	DaysLeft     int
	BillingEnd   time.Time
}

func (d *Denial) Error() string {
	return d.Reason + ": " + d.Message
}
