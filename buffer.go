package duplexrpc

import "bytes"

// readInt32LE reads a little-endian signed 32-bit integer from the first
// four bytes of b. Callers must ensure len(b) >= 4.
func readInt32LE(b []byte) int32 {
	return int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

// concatBytes appends b onto a fresh copy of a, leaving both inputs
// untouched.
func concatBytes(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// splitAt splits b into the first n bytes and the remainder. Callers must
// ensure len(b) >= n.
func splitAt(b []byte, n int) (head, tail []byte) {
	return b[:n:n], b[n:]
}

// splitBeforeByte splits b at the first occurrence of sentinel, excluding
// it from head. found is false if sentinel does not occur, in which case
// head is all of b.
func splitBeforeByte(b []byte, sentinel byte) (head, tail []byte, found bool) {
	idx := bytes.IndexByte(b, sentinel)
	if idx < 0 {
		return b, nil, false
	}
	return b[:idx], b[idx:], true
}

// splitAfterByte splits b at the first occurrence of sentinel, including it
// in head. found is false if sentinel does not occur, in which case head is
// all of b.
func splitAfterByte(b []byte, sentinel byte) (head, tail []byte, found bool) {
	idx := bytes.IndexByte(b, sentinel)
	if idx < 0 {
		return b, nil, false
	}
	return b[:idx+1], b[idx+1:], true
}
