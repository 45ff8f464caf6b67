package errorsx

import (
	"errors"
	"fmt"
)

type reasoned struct {
	reason ReasonCode
	err    error
}

func (e *reasoned) Error() string {
	return fmt.Sprintf("%s: %v", e.reason, e.err)
}

func (e *reasoned) Unwrap() error { return e.err }

// Wrap tags err with a reason code. The first reason sticks: wrapping an
// already reasoned error returns it unchanged, so the innermost failure
// site decides how the error is classified.
func Wrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	var re *reasoned
	if errors.As(err, &re) {
		return err
	}
	return &reasoned{reason: reason, err: err}
}

// Reason returns the code attached to err, or ReasonUnknown.
func Reason(err error) ReasonCode {
	var re *reasoned
	if errors.As(err, &re) {
		return re.reason
	}
	return ReasonUnknown
}

func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}

// Fatal reports whether the error is fatal for a conversation session.
// Permission and transport failures always tear the session down; chunk
// decode and one-shot generation failures are contained.
func Fatal(err error) bool {
	switch Reason(err) {
	case ReasonMicPermission, ReasonMicRead, ReasonLiveConnect, ReasonLiveRecv:
		return true
	default:
		return false
	}
}
