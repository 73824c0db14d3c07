package models

import "errors"

// Domain specific errors. Invite outcomes are deliberately distinct so the
// caller can show "already used" vs "revoked" instead of a generic failure.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrValidation      = errors.New("validation failed")

	ErrInvalidAmount = errors.New("km must be greater than zero")
	ErrInvalidMode   = errors.New("mode must be merge or append")

	ErrInviteNotFound = errors.New("invite code does not exist")
	ErrInviteUsed     = errors.New("invite code already used")
	ErrInviteRevoked  = errors.New("invite code revoked")

	ErrRewardNotPending = errors.New("no reward choice is pending")
)
