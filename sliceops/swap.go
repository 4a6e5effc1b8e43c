package sliceops

// SwapBuf returns a reversed copy of in. Addresses and UUIDs travel
// little-endian on air but are printed most significant byte first.
func SwapBuf(in []byte) []byte {
	a := make([]byte, 0, len(in))
	a = append(a, in...)
	for i := len(a)/2 - 1; i >= 0; i-- {
		opp := len(a) - 1 - i
		a[i], a[opp] = a[opp], a[i]
	}

	return a
}

// Clone returns a copy of in that shares no memory with it. A nil slice
// stays nil.
func Clone(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
