package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("refund", "charged twice"), Fingerprint("refund", "charged twice"))
	assert.NotEqual(t, Fingerprint("ab", "c"), Fingerprint("a", "bc"))
	assert.NotEqual(t, Fingerprint("abc"), Fingerprint("ab", "c"))
}
