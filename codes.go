package accrs

import "fmt"

// Code is the accrs error domain type.
//
// Every fallible operation in this module reports one of these codes. They're
// organized into three numeric bands:
//
//	0          success
//	[1, 100]   failures
//	[101, 200] warnings and recoverable situations
//
// A Code implements error, so callers check specific conditions with
// [errors.Is]:
//
//	b, err := raw.Search(id)
//	if errors.Is(err, ErrBufferNotFound) { ... }
//
// Recoverable codes always propagate to the caller unchanged. Failure-band
// codes reported from deep inside a writer critical section (a comp tier that
// cannot take a sweep's migration, a codec that won't round-trip) indicate a memory accounting or
// configuration problem that the cache cannot limp past; those paths panic
// instead of returning.
type Code int

// Band thresholds.
const (
	failureThreshold = 100
	warningThreshold = 200
)

// Success and failure band.
const (
	OK          Code = 0
	ErrGeneric  Code = 1
	ErrNoMemory Code = 2
	ErrBadArgs  Code = 3
)

// Warning and recoverable band.
const (
	ErrTryAgain                  Code = 101
	ErrBufferNotFound            Code = 120
	ErrBufferIsVictimized        Code = 121
	ErrBufferAlreadyExists       Code = 122
	ErrBufferMissingData         Code = 123
	ErrBufferAlreadyCompressed   Code = 124
	ErrBufferAlreadyDecompressed Code = 125
	ErrBufferCompressionProblem  Code = 126
	ErrBufferMissingAPin         Code = 127
	ErrBufferIsDirty             Code = 128
	ErrBufferPoofed              Code = 129
	ErrListCannotBalance         Code = 140
	ErrListRemoval               Code = 141
)

// Assert the interface is actually implemented.
var _ error = Code(0)

// Error implements error.
func (c Code) Error() string {
	switch c {
	case OK:
		return "ok"
	case ErrGeneric:
		return "generic failure"
	case ErrNoMemory:
		return "out of memory"
	case ErrBadArgs:
		return "bad arguments"
	case ErrTryAgain:
		return "try again"
	case ErrBufferNotFound:
		return "buffer not found"
	case ErrBufferIsVictimized:
		return "buffer is victimized"
	case ErrBufferAlreadyExists:
		return "buffer already exists"
	case ErrBufferMissingData:
		return "buffer missing data"
	case ErrBufferAlreadyCompressed:
		return "buffer already compressed"
	case ErrBufferAlreadyDecompressed:
		return "buffer already decompressed"
	case ErrBufferCompressionProblem:
		return "buffer compression problem"
	case ErrBufferMissingAPin:
		return "buffer missing a pin"
	case ErrBufferIsDirty:
		return "buffer is dirty"
	case ErrBufferPoofed:
		return "buffer poofed"
	case ErrListCannotBalance:
		return "list cannot balance"
	case ErrListRemoval:
		return "list removal failed"
	}
	return fmt.Sprintf("unknown code %d", int(c))
}

// Failure reports whether the code is in the failure band.
func (c Code) Failure() bool { return c > OK && c <= failureThreshold }

// Recoverable reports whether the code is in the warning/recoverable band.
func (c Code) Recoverable() bool { return c > failureThreshold && c <= warningThreshold }
