// Package admission decides whether a new connection may join a session.
package admission

// ReasonFull is the rejection reason when the session has no free slot
const ReasonFull = "session full"

// DefaultCapacity is the maximum number of participants, host included
const DefaultCapacity = 4

// Decision is the outcome of an admission check
type Decision struct {
	Approved bool
	Reason   string
}

// Controller approves connections while the session has room
type Controller struct {
	capacity int
}

// NewController creates a Controller; a non-positive capacity uses DefaultCapacity
func NewController(capacity int) *Controller {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Controller{capacity: capacity}
}

// Capacity returns the configured capacity
func (c *Controller) Capacity() int {
	return c.capacity
}

// Decide approves iff connectedCount < capacity
// connectedCount includes the host's own participant.
func (c *Controller) Decide(connectedCount int) Decision {
	if connectedCount >= c.capacity {
		return Decision{Approved: false, Reason: ReasonFull}
	}
	return Decision{Approved: true}
}
