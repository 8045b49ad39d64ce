package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by every operation on a store whose
	// initialization did not complete.
	ErrNotConnected = errors.New("history database not connected")

	// ErrUpgradeFailed matches every *UpgradeError.
	ErrUpgradeFailed = errors.New("history database upgrade failed")

	// ErrNoProteinService is returned by UpdateMetadata when the store was
	// opened without a metadata service.
	ErrNoProteinService = errors.New("no project metadata service configured")

	// ErrInvalidPage is returned by Page for a page number or size below 1.
	ErrInvalidPage = errors.New("invalid page request")

	// ErrInvalidBonusMode is returned by Fetch, Count and Page for a mode
	// outside the defined BonusMode values.
	ErrInvalidBonusMode = errors.New("invalid bonus mode")
)

// UpgradeError reports a migration that was rolled back. The database is
// left at From.
type UpgradeError struct {
	From string
	To   string
	Err  error
}

func (e *UpgradeError) Error() string {
	return fmt.Sprintf("upgrade history database from %s to %s: %v", e.From, e.To, e.Err)
}

func (e *UpgradeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrUpgradeFailed) match any UpgradeError.
func (e *UpgradeError) Is(target error) bool {
	return target == ErrUpgradeFailed
}

// IsUpgradeError reports whether err is or wraps an *UpgradeError.
func IsUpgradeError(err error) bool {
	var ue *UpgradeError
	return errors.As(err, &ue)
}
