package fingerprint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-cloud/regwatch/internal/fingerprint"
)

func TestOf(t *testing.T) {
	t.Parallel()

	// sha256("") is a well-known constant.
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", fingerprint.Of(""))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", fingerprint.Of("abc"))
	assert.Len(t, fingerprint.Of("Règlement sur le recyclage des produits de la criminalité"), 64)
}

func TestOf_Stable(t *testing.T) {
	t.Parallel()

	text := "Money services businesses must report large cash transactions."
	assert.Equal(t, fingerprint.Of(text), fingerprint.Of(text))
	assert.NotEqual(t, fingerprint.Of(text), fingerprint.Of(text+"."))
}
