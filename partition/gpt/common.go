package gpt

// GPT stores the first three fields of a GUID little-endian, uuid expects them big-endian
func bytesToUUIDBytes(in []byte) []byte {
	b := make([]byte, 0, 16)
	b = append(b, in[3], in[2], in[1], in[0], in[5], in[4], in[7], in[6])
	b = append(b, in[8:16]...)
	return b
}

// check if a byte slice is all zeroes
func zeroMatch(b []byte) bool {
	for _, val := range b {
		if val != 0 {
			return false
		}
	}
	return true
}
