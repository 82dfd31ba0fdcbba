package engine

import (
	"errors"
	"fmt"
)

// ErrTooManyToolCalls is returned when the model keeps requesting tools past
// the iteration ceiling. The message is safe to show to the end user.
var ErrTooManyToolCalls = errors.New("the assistant made too many tool calls in a row; please try rephrasing your request")

// ProtocolError marks a model reply the loop cannot interpret, such as an
// unexpected stop reason. Never retried.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("model protocol violation: %s", e.Reason)
}
