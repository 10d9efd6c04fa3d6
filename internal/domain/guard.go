package domain

import (
	"time"

	apperrors "github.com/salonsphere/auth-service/pkg/errors"
)

// CheckLock fails with AccountLocked if the user's lock window is still open.
// The error carries the remaining wait rounded up to whole minutes.
func CheckLock(u *User, now time.Time) error {
	if u.LockedUntil == nil || !u.LockedUntil.After(now) {
		return nil
	}
	remaining := u.LockedUntil.Sub(now)
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	return apperrors.AccountLocked(minutes)
}

// CheckStatus fails with AccountDeleted for a soft-deleted user and
// AccountNotActive for any status other than active. A deleted or non-active
// principal must never pass validation regardless of credentials.
func CheckStatus(u *User) error {
	if u.IsDeleted {
		return apperrors.AccountDeleted()
	}
	if u.Status != StatusActive {
		return apperrors.AccountNotActive()
	}
	return nil
}

// ValidateAccount runs CheckLock then CheckStatus. Lock precedes status so a
// locked account reports a precise remaining wait even if it was deactivated
// and later reactivated during the lock window.
func ValidateAccount(u *User, now time.Time) error {
	if err := CheckLock(u, now); err != nil {
		return err
	}
	return CheckStatus(u)
}
