package capture

import "context"

// Status is the camera permission state.
type Status int

const (
	// StatusNotDetermined means access has not been decided yet.
	StatusNotDetermined Status = iota
	// StatusRestricted means the device is unavailable to this process.
	StatusRestricted
	// StatusDenied means access was refused.
	StatusDenied
	// StatusAuthorized means the camera may be opened.
	StatusAuthorized
)

func (s Status) String() string {
	switch s {
	case StatusNotDetermined:
		return "not_determined"
	case StatusRestricted:
		return "restricted"
	case StatusDenied:
		return "denied"
	case StatusAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Authorizer gates session startup.
type Authorizer interface {
	// Status reports the current permission state without side effects.
	Status() Status

	// RequestAccess asks for access and reports whether it was granted.
	RequestAccess(ctx context.Context) (bool, error)
}

// StaticAuthorizer always reports the same status. Synthetic sources use
// StaticAuthorizer(StatusAuthorized).
type StaticAuthorizer Status

// Status implements Authorizer.
func (a StaticAuthorizer) Status() Status { return Status(a) }

// RequestAccess implements Authorizer.
func (a StaticAuthorizer) RequestAccess(context.Context) (bool, error) {
	return Status(a) == StatusAuthorized, nil
}
