package offline

import "github.com/pkg/errors"

var (
	// ErrCacheMiss is returned when neither the cache nor the network can answer.
	ErrCacheMiss = errors.New("no cached response")
	// ErrInstallFailed wraps the first manifest fetch or store failure of an install.
	ErrInstallFailed = errors.New("install failed")
	// ErrSuperseded is returned by an install that a newer deployment replaced.
	ErrSuperseded = errors.New("superseded by a newer deployment")
	// ErrNoWaitingVersion is returned when there is nothing to promote.
	ErrNoWaitingVersion = errors.New("no waiting version")
	// ErrStaleDeployment is returned when deploying a version older than the active one.
	ErrStaleDeployment = errors.New("deployment is older than the active version")
	// ErrInvalidState is returned for a lifecycle step the current state does not allow.
	ErrInvalidState = errors.New("invalid lifecycle state")
)
