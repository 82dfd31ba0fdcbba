package validate

import (
	"strings"
	"testing"
)

func TestUserID(t *testing.T) {
	valid := []string{"arbor-dev", "u_new", "a", strings.Repeat("x", 40)}
	for _, v := range valid {
		if err := UserID(v); err != nil {
			t.Errorf("UserID(%q) unexpected error: %v", v, err)
		}
	}

	invalid := []string{"", "UPPER", "has space", "dots.bad", strings.Repeat("x", 41)}
	for _, v := range invalid {
		if err := UserID(v); err == nil {
			t.Errorf("UserID(%q) expected error", v)
		}
	}
}

func TestEmail(t *testing.T) {
	valid := []string{"dev@localhost.test", "a.b+c@example.co"}
	for _, v := range valid {
		if err := Email(v); err != nil {
			t.Errorf("Email(%q) unexpected error: %v", v, err)
		}
	}

	invalid := []string{"", "not-an-email", "two@@example.test", "spaced @example.test",
		strings.Repeat("x", 320) + "@example.test"}
	for _, v := range invalid {
		if err := Email(v); err == nil {
			t.Errorf("Email(%q) expected error", v)
		}
	}
}

func TestTitle(t *testing.T) {
	if err := Title("title", "Ship the quarterly report"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Title("title", strings.Repeat("x", maxTitleLen)); err != nil {
		t.Errorf("boundary length rejected: %v", err)
	}

	if err := Title("title", ""); err == nil {
		t.Error("empty title accepted")
	}
	if err := Title("name", ""); err == nil || !strings.Contains(err.Error(), "name") {
		t.Errorf("error should carry the field name, got %v", err)
	}
	if err := Title("title", strings.Repeat("x", maxTitleLen+1)); err == nil {
		t.Error("overlong title accepted")
	}
}

func TestChatText(t *testing.T) {
	if err := ChatText("what's due today?"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ChatText(strings.Repeat("x", maxChatTextLen)); err != nil {
		t.Errorf("boundary length rejected: %v", err)
	}

	if err := ChatText(""); err == nil {
		t.Error("empty text accepted")
	}
	if err := ChatText(strings.Repeat("x", maxChatTextLen+1)); err == nil {
		t.Error("overlong text accepted")
	}
}

func TestNonEmpty(t *testing.T) {
	if err := NonEmpty("status", "todo"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := NonEmpty("status", "")
	if err == nil || !strings.Contains(err.Error(), "status") {
		t.Errorf("error should carry the field name, got %v", err)
	}
}

func TestMaxLen(t *testing.T) {
	if err := MaxLen("displayName", nil, 10); err != nil {
		t.Errorf("nil should pass: %v", err)
	}
	ok := "short"
	if err := MaxLen("displayName", &ok, 10); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	long := strings.Repeat("x", 11)
	if err := MaxLen("displayName", &long, 10); err == nil {
		t.Error("overlong value accepted")
	}
}
