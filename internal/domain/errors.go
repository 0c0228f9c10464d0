package domain

import "errors"

var (
	// ErrStateConflict means a compare-and-swap write lost the race: the
	// stored version no longer matches. A second evaluation pass is running
	// where only one is allowed.
	ErrStateConflict = errors.New("state version conflict")

	// ErrEventNotFound means an alert event id has no row in the alert log.
	ErrEventNotFound = errors.New("alert event not found")

	// ErrDeliveryTimeout means the notifier did not answer within its
	// bounded delivery window.
	ErrDeliveryTimeout = errors.New("notification delivery timed out")

	// ErrNotifierUnconfigured means no delivery channel has usable settings.
	ErrNotifierUnconfigured = errors.New("no notification channel configured")
)
