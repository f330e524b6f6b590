package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestCodedErrorMessage(t *testing.T) {
	err := New(CodeLinkOpenFailed, "cannot open /dev/serial0")
	want := "link.open_failed: cannot open /dev/serial0"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("permission denied")
	err := Wrap(CodeLinkOpenFailed, "cannot open /dev/serial0", cause)

	if !stderrors.Is(err, cause) {
		t.Fatalf("wrapped cause not reachable via errors.Is")
	}
	if GetCode(err) != CodeLinkOpenFailed {
		t.Fatalf("GetCode = %q", GetCode(err))
	}
}

func TestGetCodeThroughWrapping(t *testing.T) {
	inner := New(CodeSessionExited, "shell exited")
	outer := fmt.Errorf("host loop: %w", inner)

	if GetCode(outer) != CodeSessionExited {
		t.Fatalf("GetCode through fmt wrapping = %q", GetCode(outer))
	}
	if !HasCode(outer, CodeSessionExited) {
		t.Fatalf("HasCode missed wrapped code")
	}
}

func TestGetCodeFallback(t *testing.T) {
	if GetCode(stderrors.New("plain")) != CodeUnknown {
		t.Fatalf("plain error should map to %s", CodeUnknown)
	}
	if GetCode(nil) != "" {
		t.Fatalf("nil error should map to empty code")
	}
}
