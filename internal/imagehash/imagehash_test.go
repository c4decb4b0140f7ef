package imagehash

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	for _, hash := range []uint64{0, 1, 5, 0xDEADBEEFCAFEF00D, math.MaxUint64} {
		token := EncodeToken(hash)
		assert.Len(t, token, TokenLength)

		got, err := DecodeToken(token)
		require.NoError(t, err)
		assert.Equal(t, hash, got)
	}
}

func TestDecodeTokenRejectsBadInput(t *testing.T) {
	_, err := DecodeToken("not base64 !!")
	assert.Error(t, err)

	// Valid base64 but wrong bit length
	_, err = DecodeToken("AAAA")
	assert.Error(t, err)
}

func TestDistance(t *testing.T) {
	a := EncodeToken(0b1011)
	b := EncodeToken(0b0001)

	d, err := Distance(a, a)
	require.NoError(t, err)
	assert.Equal(t, 0, d)

	d, err = Distance(a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, d)

	// Symmetric
	rev, err := Distance(b, a)
	require.NoError(t, err)
	assert.Equal(t, d, rev)

	_, err = Distance(a, "bogus")
	assert.Error(t, err)
}

func TestFingerprintDeterministic(t *testing.T) {
	data := testPNG(t, 64, 48)

	token1, encoded, err := Fingerprint(data)
	require.NoError(t, err)
	assert.Len(t, token1, TokenLength)
	assert.NotEmpty(t, encoded)

	token2, _, err := Fingerprint(data)
	require.NoError(t, err)
	assert.Equal(t, token1, token2)

	// The token must decode back to a real 64-bit hash
	_, err = DecodeToken(token1)
	require.NoError(t, err)
}

func TestFingerprintRejectsGarbage(t *testing.T) {
	_, _, err := Fingerprint([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestTokenFromURL(t *testing.T) {
	token := EncodeToken(0xABCDEF)

	got, ok := TokenFromURL("https://img.example.org/events/2026-06-01-sommerfest/" + token + ".jpg")
	require.True(t, ok)
	assert.Equal(t, token, got)

	_, ok = TokenFromURL("https://img.example.org/events/foo/cover.jpg")
	assert.False(t, ok)

	_, ok = TokenFromURL("://bad url")
	assert.False(t, ok)
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
