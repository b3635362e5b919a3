package storage

import "encoding/hex"

func hexEncode32(h [32]byte) string {
	return hex.EncodeToString(h[:])
}

func hexDecode32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}
