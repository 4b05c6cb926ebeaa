package project

import "crypto/sha256"

// Digest is the fixed-size content hash used to key build artifacts.
type Digest [32]byte

// Combine folds several digests into one: H(first || rest...). Callers must
// pass rest in a deterministic order.
func Combine(first Digest, rest ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(first[:])
	for _, d := range rest {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}
