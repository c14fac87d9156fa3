package vzgpu

import (
	"errors"
	"testing"
)

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindNone:               "none",
		KindInitFailure:        "init_failure",
		KindResourceInvalid:    "resource_invalid",
		KindSwapchainOutOfDate: "swapchain_out_of_date",
		KindSwapchainInvalid:   "swapchain_invalid",
		KindOOM:                "oom",
		KindTransferFailure:    "transfer_failure",
		KindQueueFull:          "queue_full",
		KindValidation:         "validation",
		KindUnsupported:        "unsupported",
		Kind(99):                "none",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestNewErrFormatsMessage(t *testing.T) {
	err := newErr(KindOOM, "wanted %d bytes, had %d", 128, 64)
	if err.Kind != KindOOM {
		t.Errorf("expected KindOOM, got %v", err.Kind)
	}
	if err.Msg != "wanted 128 bytes, had 64" {
		t.Errorf("unexpected message: %q", err.Msg)
	}
	want := "vzgpu: oom: wanted 128 bytes, had 64"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorIsMatchesOnKind(t *testing.T) {
	a := newErr(KindUnsupported, "operation A")
	b := newErr(KindUnsupported, "operation B")
	c := newErr(KindOOM, "out of memory")

	if !errors.Is(a, b) {
		t.Errorf("expected two KindUnsupported errors to match via errors.Is")
	}
	if errors.Is(a, c) {
		t.Errorf("expected KindUnsupported and KindOOM to not match")
	}
}

func TestErrUnsupportedIsSentinel(t *testing.T) {
	if !errors.Is(ErrUnsupported, newErr(KindUnsupported, "anything")) {
		t.Errorf("expected ErrUnsupported to match any KindUnsupported error")
	}
}

func TestRecoverErrCapturesPanicValue(t *testing.T) {
	run := func() (err error) {
		defer recoverErr(&err)
		panic(newErr(KindValidation, "bad state"))
	}
	err := run()
	if err == nil {
		t.Fatalf("expected recoverErr to capture the panic as an error")
	}
	var ve *Error
	if !errors.As(err, &ve) || ve.Kind != KindValidation {
		t.Errorf("expected a *Error with KindValidation, got %v", err)
	}
}

func TestRecoverErrCapturesNonErrorPanic(t *testing.T) {
	run := func() (err error) {
		defer recoverErr(&err)
		panic("plain string panic")
	}
	err := run()
	if err == nil || err.Error() != "plain string panic" {
		t.Errorf("expected wrapped plain string panic, got %v", err)
	}
}

func TestOrPanicRunsFinalizersBeforePanicking(t *testing.T) {
	var ran bool
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected orPanic to panic on non-nil error")
		}
		if !ran {
			t.Fatalf("expected finalizer to run before panic propagated")
		}
	}()
	orPanic(newErr(KindOOM, "boom"), func() { ran = true })
}

func TestOrPanicNoopOnNilError(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("expected no panic for nil error, got %v", r)
		}
	}()
	orPanic(nil)
}
