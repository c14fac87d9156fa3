// Package vzgpu implements the GPU resource and execution substrate: a
// typed handle registry over Vulkan primitives, a multi-queue command
// scheduler, an asynchronous transfer subsystem, and the swapchain-
// driven canvas render loop that drives it.
package vzgpu

import (
	"errors"
	"fmt"
	"runtime"

	vk "github.com/vulkan-go/vulkan"
)

// Kind identifies one of the error classes from spec §7. Recoverable
// kinds are folded back into object status and/or re-queued events;
// KindInitFailure is fatal at App/Device creation.
type Kind int

const (
	KindNone Kind = iota
	KindInitFailure
	KindResourceInvalid
	KindSwapchainOutOfDate
	KindSwapchainInvalid
	KindOOM
	KindTransferFailure
	KindQueueFull
	KindValidation
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindInitFailure:
		return "init_failure"
	case KindResourceInvalid:
		return "resource_invalid"
	case KindSwapchainOutOfDate:
		return "swapchain_out_of_date"
	case KindSwapchainInvalid:
		return "swapchain_invalid"
	case KindOOM:
		return "oom"
	case KindTransferFailure:
		return "transfer_failure"
	case KindQueueFull:
		return "queue_full"
	case KindValidation:
		return "validation"
	case KindUnsupported:
		return "unsupported"
	default:
		return "none"
	}
}

// Error is the one error type every fallible operation in this module
// returns; no exceptions, matching spec §7's propagation policy.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("vzgpu: %s: %s", e.Kind, e.Msg) }

func newErr(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ErrUnsupported is returned by operations the spec explicitly marks as
// unimplemented rather than guessed (e.g. Dat.Resize with
// Count > 1, spec §9 Open Questions).
var ErrUnsupported = newErr(KindUnsupported, "operation not supported")

// Is lets errors.Is match against the sentinel Kind values above.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func isVkError(ret vk.Result) bool { return ret != vk.Success }

// newVkError wraps a non-success vk.Result with the call site, in the
// teacher's runtime.Caller idiom (teacher's errors.go newError).
func newVkError(ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	pc, file, line, ok := runtime.Caller(1)
	if !ok {
		return newErr(KindInitFailure, "vulkan result %d", ret)
	}
	fn := runtime.FuncForPC(pc)
	return newErr(KindInitFailure, "vulkan result %d at %s (%s:%d)", ret, fn.Name(), file, line)
}

// orPanic panics on a non-nil error, after running any cleanup
// finalizers. Reserved for init-time invariants the spec treats as
// fatal (§7 "fatal errors during App init abort").
func orPanic(err error, finalizers ...func()) {
	if err != nil {
		for _, fn := range finalizers {
			fn()
		}
		panic(err)
	}
}

// recoverErr turns a panic into *err, in the teacher's checkErr idiom,
// for call sites that must present a normal error return to their
// caller instead of propagating a panic.
func recoverErr(err *error) {
	if v := recover(); v != nil {
		switch e := v.(type) {
		case error:
			*err = e
		default:
			*err = fmt.Errorf("%v", v)
		}
	}
}
