// ABOUTME: Structured decision errors shared by the permission store, engine, and allocator
// ABOUTME: Every rejection carries enough detail for the caller to act on it

package canvas

import (
	"errors"
	"fmt"
)

// Flat error conditions. These are matched with errors.Is.
var (
	// ErrUnauthorized is returned when the caller is not the owner, an
	// allow-listed editor, or the admin where required.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPermissionExpired is returned when a grant exists but its expiry
	// has passed. Owner access is never affected by expiry.
	ErrPermissionExpired = errors.New("permission expired")

	// ErrNoAvailablePositions is returned by the allocator when the scan
	// runs past the end of the grid with no free cell.
	ErrNoAvailablePositions = errors.New("no available positions")

	// ErrInvalidConfigUpdate is returned when a config update fails
	// validation.
	ErrInvalidConfigUpdate = errors.New("invalid configuration update")

	// ErrInsufficientFunds is returned when a fee withdrawal exceeds the
	// collected total.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidPayment is returned by the mint flow when the payment does
	// not match the mint price exactly.
	ErrInvalidPayment = errors.New("invalid payment")
)

// PermissionAlreadyGrantedError is returned when granting edit rights to an
// editor that is already on the allow-list.
type PermissionAlreadyGrantedError struct {
	Editor string
}

func (e *PermissionAlreadyGrantedError) Error() string {
	return fmt.Sprintf("permission already granted to %s", e.Editor)
}

// PermissionNotFoundError is returned when revoking edit rights from an
// editor that is not on the allow-list.
type PermissionNotFoundError struct {
	Editor string
}

func (e *PermissionNotFoundError) Error() string {
	return fmt.Sprintf("permission not found for %s", e.Editor)
}

// InvalidPositionError is returned for positions outside the grid bounds.
type InvalidPositionError struct {
	Position Position
	Max      uint32
}

func (e *InvalidPositionError) Error() string {
	return fmt.Sprintf("invalid position %s: coordinates must be <= %d", e.Position, e.Max)
}

// PositionTakenError is returned when minting a position that is already
// claimed.
type PositionTakenError struct {
	Position Position
}

func (e *PositionTakenError) Error() string {
	return fmt.Sprintf("position %s already taken", e.Position)
}

// RateLimitExceededError is returned when an editor has used up the change
// budget for the current window. RemainingSeconds is the time until the
// window lapses.
type RateLimitExceededError struct {
	RemainingSeconds uint64
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, try again in %d seconds", e.RemainingSeconds)
}

// InsufficientPaymentError is returned when the attached payment does not
// cover the required fee.
type InsufficientPaymentError struct {
	Required uint64
	Sent     uint64
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: required %d, sent %d", e.Required, e.Sent)
}
