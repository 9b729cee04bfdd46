package domain

import "errors"

var (
	// ErrNotConfigured is returned when a call requires a stored grid config.
	ErrNotConfigured = errors.New("grid not configured")

	// ErrAlreadyConfigured is returned on a second ConfigureGrid call. First call wins.
	ErrAlreadyConfigured = errors.New("grid already configured")

	// ErrAlreadyInitialized is returned when levels already exist.
	ErrAlreadyInitialized = errors.New("levels already initialized")

	// ErrNotInitialized is returned when a call requires levels.
	ErrNotInitialized = errors.New("levels not initialized")

	// ErrNotOwner is returned when the caller lacks owner rights.
	ErrNotOwner = errors.New("caller is not the owner")

	// ErrPaused is returned when a guarded operation runs against a paused engine.
	ErrPaused = errors.New("engine is paused")

	// ErrOracleUnavailable is returned when the requested TWAP window predates
	// the pool's stored observation history. Callers must not substitute a
	// stale or zero price.
	ErrOracleUnavailable = errors.New("oracle unavailable")

	// ErrCooldownActive marks a level skipped because its cooldown window is open.
	ErrCooldownActive = errors.New("cooldown active")

	// ErrSlippageExceeded marks a swap whose realized output fell below the bound.
	ErrSlippageExceeded = errors.New("slippage exceeded")

	// ErrInsufficientBalance marks a level whose order size exceeds custody holdings.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrLevelNotFound is returned for an out-of-range level index.
	ErrLevelNotFound = errors.New("level not found")

	// ErrInvalidAmount is returned for zero or negative deposit/withdraw amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// ConfigError reports which GridConfig field violated an invariant.
// The whole ConfigureGrid call is rejected, no state changes.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "invalid config [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
