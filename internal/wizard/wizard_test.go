package wizard

import "testing"

func TestNotEmpty(t *testing.T) {
	t.Parallel()

	if err := notEmpty(""); err == nil {
		t.Error("notEmpty(\"\") = nil, want error")
	}
	if err := notEmpty("x"); err != nil {
		t.Errorf("notEmpty(\"x\") = %v, want nil", err)
	}
}
