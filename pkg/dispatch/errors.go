package dispatch

import "errors"

var (
	// ErrInvalidCapacity is returned when a queue is built with capacity <= 0.
	ErrInvalidCapacity = errors.New("dispatch: capacity must be positive")

	// ErrQueueFull is returned by Push when capacity live entries are queued.
	ErrQueueFull = errors.New("dispatch: queue is full")

	// ErrEmptyID is returned by Push for a blank item id.
	ErrEmptyID = errors.New("dispatch: item id is empty")

	// ErrInvalidPriority is returned by Push for NaN priorities, which have no order.
	ErrInvalidPriority = errors.New("dispatch: priority is NaN")

	// ErrQueueRequired is returned when a Worker is built without a queue.
	ErrQueueRequired = errors.New("dispatch: queue required")

	// ErrHandlerRequired is returned when a Worker is built without a handler.
	ErrHandlerRequired = errors.New("dispatch: handler required")
)
