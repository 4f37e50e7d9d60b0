package utils

// SeqNumDelta returns the signed distance from prev to cur on the u8
// sequence cycle, in the range (-128, 128]. A positive result means cur is
// ahead of prev; a negative result means cur moved backwards, which a
// decoder treats as lost synchronization. The window of 128 keeps the
// comparison correct on both edges of the wrap.
func SeqNumDelta(cur, prev uint8) int {
	d := int(cur) - int(prev)
	if d > 128 {
		d -= 256
	} else if d <= -128 {
		d += 256
	}
	return d
}
