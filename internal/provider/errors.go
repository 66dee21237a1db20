package provider

import "errors"

// ErrUnknownProvider is returned when Registry.Build is asked for a name
// with no registered factory.
var ErrUnknownProvider = errors.New("unknown_provider")
