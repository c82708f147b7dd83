// Package errs defines the typed error kinds used throughout the wallet
// core. Errors are classified, not exceptional: callers switch on Kind
// rather than string-matching messages.
package errs

import "fmt"

// Kind classifies a core error for programmatic handling.
type Kind string

const (
	KindSerializationChecksumFail Kind = "SERIALIZATION_CHECKSUM_FAIL"
	KindSerializationVersionMismatch Kind = "SERIALIZATION_VERSION_MISMATCH"
	KindTransferSubmitUnknown Kind = "TRANSFER_SUBMIT_UNKNOWN"
	KindTransferSubmitPosix Kind = "TRANSFER_SUBMIT_POSIX"
	KindAttributeRequired Kind = "ATTRIBUTE_REQUIRED_BUT_NOT_PROVIDED"
	KindAttributeMismatched Kind = "ATTRIBUTE_MISMATCHED_TYPE"
	KindAttributeRelationship Kind = "ATTRIBUTE_RELATIONSHIP_INCONSISTENCY"
	KindSweepInvalidArgs Kind = "SWEEP_INVALID_ARGS"
	KindSweepInvalidKey Kind = "SWEEP_INVALID_KEY"
	KindSweepUnsupportedCurrency Kind = "SWEEP_UNSUPPORTED_CURRENCY"
	KindSweepInsufficientFunds Kind = "SWEEP_INSUFFICIENT_FUNDS"
	KindSweepNoTransfersFound Kind = "SWEEP_NO_TRANSFERS_FOUND"
	KindSweepUnableToSweep Kind = "SWEEP_UNABLE_TO_SWEEP"
	KindFileServiceImpl Kind = "FILE_SERVICE_IMPL"
	KindFileServiceUnix Kind = "FILE_SERVICE_UNIX"
	KindFileServiceEntity Kind = "FILE_SERVICE_ENTITY"
	KindFileServiceSdb Kind = "FILE_SERVICE_SDB"
	KindDisconnectRequested Kind = "DISCONNECT_REQUESTED"
	KindDisconnectUnknown Kind = "DISCONNECT_UNKNOWN"
	KindDisconnectPosix Kind = "DISCONNECT_POSIX"
	KindUnsupported Kind = "UNSUPPORTED"
)

// CoreError is a typed error carrying a Kind plus the underlying cause.
type CoreError struct {
	Kind Kind
	Err error
}

func (e *CoreError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CoreError) Unwrap() error { return e.Err }

// New builds a CoreError of the given kind wrapping err (err may be nil).
func New(kind Kind, err error) *CoreError {
	return &CoreError{Kind: kind, Err: err}
}

// Newf builds a CoreError of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *CoreError {
	return &CoreError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err is a CoreError of the given kind.
func Is(err error, kind Kind) bool {
	ce, ok := err.(*CoreError)
	if !ok {
		return false
	}
	return ce.Kind == kind
}

// ErrUnsupported is returned when a chain does not implement a requested
// entity kind or operation.
var ErrUnsupported = New(KindUnsupported, fmt.Errorf("operation unsupported for this chain"))
