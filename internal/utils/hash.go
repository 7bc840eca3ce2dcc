package utils

import "hash/fnv"

// Fingerprint hashes parts with a NUL separator so ("ab","c") and ("a","bc") differ.
func Fingerprint(parts ...string) uint64 {
	h := fnv.New64a()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.Write([]byte(p))
	}
	return h.Sum64()
}
