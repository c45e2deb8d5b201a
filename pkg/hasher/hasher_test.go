package hasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateSHA256FromBytes(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", CalculateSHA256FromBytes(nil))
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("https://i.ibb.co/abc/1.jpg")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Fingerprint("  HTTPS://i.ibb.co/abc/1.jpg "))
	assert.Equal(t, a, Fingerprint("https://i.ibb.co.com/abc/1.jpg"))
	assert.NotEqual(t, a, Fingerprint("https://i.ibb.co/abc/2.jpg"))
	assert.Empty(t, Fingerprint("   "))
}
