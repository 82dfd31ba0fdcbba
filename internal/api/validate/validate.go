package validate

import (
	"fmt"
	"regexp"
)

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// UserID must be lowercase letters, digits, underscore or hyphen, 1-40 chars
var userIdRx = regexp.MustCompile(`^[a-z0-9_-]{1,40}$`)

const (
	maxTitleLen    = 200
	maxChatTextLen = 8000
)

// UserID validates a caller-chosen user identifier.
func UserID(v string) error {
	if v == "" {
		return fmt.Errorf("userId is required")
	}
	if !userIdRx.MatchString(v) {
		return fmt.Errorf("userId must match %s", userIdRx.String())
	}
	return nil
}

func Email(v string) error {
	if v == "" {
		return fmt.Errorf("email is required")
	}
	if len(v) > 320 || !emailRx.MatchString(v) {
		return fmt.Errorf("invalid email")
	}
	return nil
}

// Title validates a task, note or project title. Free-form text, bounded.
func Title(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(v) > maxTitleLen {
		return fmt.Errorf("%s exceeds %d characters", field, maxTitleLen)
	}
	return nil
}

// ChatText validates the body of an inbound chat message.
func ChatText(v string) error {
	if v == "" {
		return fmt.Errorf("text is required")
	}
	if len(v) > maxChatTextLen {
		return fmt.Errorf("text exceeds %d characters", maxChatTextLen)
	}
	return nil
}

func NonEmpty(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

func MaxLen(field string, v *string, limit int) error {
	if v == nil {
		return nil
	}
	if len(*v) > limit {
		return fmt.Errorf("%s exceeds %d characters", field, limit)
	}
	return nil
}
