package ecs

import "errors"

var (
	// ErrStaleHandle marks access through an entity whose generation no
	// longer matches its slot. Recoverable: queries simply exclude it.
	ErrStaleHandle = errors.New("stale entity handle")

	// ErrAlreadyRegistered marks a second registration of a component or
	// resource type. A setup error, not a runtime condition.
	ErrAlreadyRegistered = errors.New("already registered")

	// ErrNotRegistered marks an access declaration naming a type that was
	// never registered.
	ErrNotRegistered = errors.New("not registered")
)
