package accrs

import "unsafe"

// BufferOverhead is the fixed per-buffer bookkeeping cost charged against a
// list's memory budget in addition to the payload length.
//
// The lock pool keeps sync primitives out of this figure; what remains is the
// struct itself. Payload backing arrays are accounted separately via
// data_length/comp_length.
const BufferOverhead = int64(unsafe.Sizeof(Buffer{}))
