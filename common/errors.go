package common

import "errors"

// Error kinds shared by every bridge component. Callers match them with errors.Is;
// components wrap them with context using fmt.Errorf and %w.
var (
	// ErrWrongEntityKind is returned when an entity of an unexpected kind is passed,
	// e.g. subscribing a mesh to the light registry.
	ErrWrongEntityKind = errors.New("wrong entity kind")

	// ErrNotFound is returned when a lookup by external handle or relation key finds nothing.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedVariant is returned for recognized but unimplemented sub-kinds, such as ambient lights.
	ErrUnsupportedVariant = errors.New("unsupported variant")

	// ErrResourceUnavailable is returned when the rendering backend or a pool cannot serve the request.
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrAlreadyTracked is returned when an entity is subscribed twice to the same registry.
	ErrAlreadyTracked = errors.New("entity already tracked")

	// ErrInvalidTransform is returned when the host reports a transform that cannot be converted.
	ErrInvalidTransform = errors.New("invalid transform")
)
