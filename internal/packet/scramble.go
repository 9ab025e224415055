package packet

// Scramble reversibly XORs data in place with a per-peer key, repeating
// the key as needed. It is a no-op on an empty key. Called from Encode
// only when the encrypted flag bit is set (spec.md §4.1: "Scrambling...
// is skipped when the encryption bit is clear").
func Scramble(data []byte, key []byte) {
	if len(key) == 0 {
		return
	}
	for i := range data {
		data[i] ^= key[i%len(key)]
	}
}

// Unscramble is identical to Scramble (XOR is its own inverse); it
// exists as a distinct name for readability at call sites.
func Unscramble(data []byte, key []byte) { Scramble(data, key) }
