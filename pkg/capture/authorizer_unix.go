//go:build unix

package capture

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// DeviceAuthorizer derives the permission state from the device node:
// a missing node is restricted, a node we may not open is denied.
type DeviceAuthorizer struct {
	Path string
}

// Status implements Authorizer.
func (a DeviceAuthorizer) Status() Status {
	if _, err := os.Stat(a.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return StatusRestricted
		}
		return StatusNotDetermined
	}

	err := unix.Access(a.Path, unix.R_OK|unix.W_OK)
	switch {
	case err == nil:
		return StatusAuthorized
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return StatusDenied
	default:
		return StatusNotDetermined
	}
}

// RequestAccess re-checks the node. There is no interactive prompt for
// device nodes; group membership decides.
func (a DeviceAuthorizer) RequestAccess(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return a.Status() == StatusAuthorized, nil
}
