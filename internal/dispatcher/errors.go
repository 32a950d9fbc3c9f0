package dispatcher

import "errors"

// Ошибки dispatcher.
var (
	// ErrUnknownEventType — тип события не входит в перечисление.
	ErrUnknownEventType = errors.New("unknown event type")
)
