package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindCode(t *testing.T) {
	cases := []struct {
		kind Kind
		code string
	}{
		{BadRequest, "10001"},
		{Unauthorized, "10002"},
		{Forbidden, "10003"},
		{NotFound, "10004"},
		{Internal, "20000"},
	}
	for _, c := range cases {
		if got := c.kind.Code(); got != c.code {
			t.Errorf("%v.Code() = %q, want %q", c.kind, got, c.code)
		}
	}
}

func TestKindOfUnwraps(t *testing.T) {
	base := NotFoundf("chapter %d not found", 99)
	wrapped := fmt.Errorf("download chapter: %w", base)
	if KindOf(wrapped) != NotFound {
		t.Errorf("KindOf(wrapped) = %v, want NotFound", KindOf(wrapped))
	}
}

func TestKindOfDefaultsInternal(t *testing.T) {
	if KindOf(errors.New("plain")) != Internal {
		t.Error("KindOf(plain error) should default to Internal")
	}
}
