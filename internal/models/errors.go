package models

import "github.com/pkg/errors"

var (
	// ErrProviderUnavailable covers network errors, timeouts and non-2xx answers
	// from a provider. Never fatal for a sync.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrGeocodeUnavailable is absorbed by the resolver, which falls back to coordinates.
	ErrGeocodeUnavailable = errors.New("geocode unavailable")
	// ErrPersistence aborts the current sync; nothing from the batch is committed.
	ErrPersistence = errors.New("persistence failure")
	// ErrConfiguration is reported at startup and never retried.
	ErrConfiguration = errors.New("configuration error")

	ErrSyncTimeout    = errors.New("sync timed out")
	ErrSyncInProgress = errors.New("sync already running for owner")
	ErrOwnerRequired  = errors.New("owner_id is required")
)
