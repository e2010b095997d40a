// Package system provides the wall clock behind the cycle runner.
package system

import "time"

// Clock yields the current time in UTC. Record FirstSeen/LastSeen dates are
// derived from it, so the zone is pinned to keep day boundaries stable
// across deployments.
type Clock struct{}

// New returns the wall clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
