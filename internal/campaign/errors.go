package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound         = errors.New("campaign not found")
	ErrInvalidTargeting = errors.New("invalid recipient targeting")
	ErrDispatchInFlight = errors.New("campaign dispatch already in flight")
	ErrTerminalStatus   = errors.New("campaign is in a terminal status")
)
