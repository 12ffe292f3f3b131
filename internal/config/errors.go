package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers use errors.Is to tell them apart.
var (
	// ErrInvalidRange is returned when the ID bounds are negative or inverted.
	ErrInvalidRange = errors.New("invalid ID range: min must be at least 1 and not above max")

	// ErrInvalidStep is returned when the step is not positive.
	ErrInvalidStep = errors.New("invalid step: must be positive")

	// ErrInvalidDirection is returned for an unknown traversal direction.
	ErrInvalidDirection = errors.New("invalid direction: expected newest-first or oldest-first")

	// ErrUnknownPreset is returned for a preset name not in Presets.
	ErrUnknownPreset = errors.New("unknown preset")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidSaveEvery is returned when the save cadence is not positive.
	ErrInvalidSaveEvery = errors.New("invalid save cadence: must be positive")

	// ErrInvalidDelay is returned when the delay bounds are negative or inverted.
	ErrInvalidDelay = errors.New("invalid inter-batch delay: min must be non-negative and not above max")

	// ErrInvalidRotateEvery is returned when the rotation cadence is negative.
	ErrInvalidRotateEvery = errors.New("invalid rotation cadence: must be non-negative")

	// ErrInvalidMaxRetries is returned when fewer than one attempt is allowed.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be positive")

	// ErrInvalidTimeout is returned when a timeout or base delay is not usable.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRateLimit is returned when the request rate is negative.
	ErrInvalidRateLimit = errors.New("invalid request rate: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidSampleSize is returned when the category sample size is negative.
	ErrInvalidSampleSize = errors.New("invalid category sample size: must be non-negative")

	// ErrConflictingTorModes is returned when --no-tor and --embedded-tor
	// are both set.
	ErrConflictingTorModes = errors.New("conflicting Tor modes: --no-tor and --embedded-tor cannot be used together")

	// ErrInvalidProxyAddress is returned when a proxy or control address
	// is not in host:port form.
	ErrInvalidProxyAddress = errors.New("invalid address: expected host:port")

	// ErrInvalidURLFormat is returned when the article URL format does not
	// contain exactly one %d verb.
	ErrInvalidURLFormat = errors.New("invalid article URL format: must contain exactly one %d")

	// ErrOutputDirNotFound is returned when the output directory is missing.
	ErrOutputDirNotFound = errors.New("output directory not found")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidManifest is returned when a category manifest is not a
	// JSON array of names.
	ErrInvalidManifest = errors.New("invalid category manifest")
)
