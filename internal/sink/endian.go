package sink

// SwapOrder returns a copy of buf with every width-byte element reversed,
// converting between little- and big-endian.
func SwapOrder(buf []byte, width int) []byte {
	out := make([]byte, len(buf))
	if width <= 1 {
		copy(out, buf)
		return out
	}
	for i := 0; i+width <= len(buf); i += width {
		for j := 0; j < width; j++ {
			out[i+j] = buf[i+width-1-j]
		}
	}
	return out
}
