// Package imagehash computes perceptual fingerprints for event flyer
// images. A fingerprint is a 64-bit perceptual hash packed into a fixed
// length URL-safe token, so it can live inside a storage key or URL path
// segment. Two images are considered the same photo when the Hamming
// distance between their fingerprints is at most DefaultThreshold.
package imagehash

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math/bits"
	"net/url"
	"path"
	"strings"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
)

const (
	// Bounding box for stored images. Images are scaled down to fit,
	// never upscaled.
	maxWidth  = 1280
	maxHeight = 1280

	jpegQuality = 85

	// TokenLength is the length of an encoded fingerprint token
	// (8 bytes, base64 without padding).
	TokenLength = 11

	// DefaultThreshold is the Hamming distance at or below which two
	// fingerprints count as the same photo.
	DefaultThreshold = 5
)

// Fingerprint downscales the image to fit the bounding box, re-encodes it
// as JPEG and computes its perceptual hash token. It returns the token
// together with the re-encoded bytes ready for upload.
func Fingerprint(data []byte) (string, []byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("decode image: %w", err)
	}

	// Fit never upscales: smaller images pass through at original size
	fitted := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	hash, err := goimagehash.PerceptionHash(fitted)
	if err != nil {
		return "", nil, fmt.Errorf("perceptual hash: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, fitted, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return EncodeToken(hash.GetHash()), buf.Bytes(), nil
}

// EncodeToken packs a 64-bit hash into its fixed-length printable token.
func EncodeToken(hash uint64) string {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], hash)
	return base64.RawURLEncoding.EncodeToString(raw[:])
}

// DecodeToken is the exact inverse of EncodeToken. It fails when the
// token does not decode to 64 bits.
func DecodeToken(token string) (uint64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("decode fingerprint token %q: %w", token, err)
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("fingerprint token %q: want 64 bits, got %d bytes", token, len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

// Distance returns the Hamming distance between two fingerprint tokens.
func Distance(a, b string) (int, error) {
	x, err := DecodeToken(a)
	if err != nil {
		return 0, err
	}
	y, err := DecodeToken(b)
	if err != nil {
		return 0, err
	}
	return bits.OnesCount64(x ^ y), nil
}

// TokenFromURL extracts the fingerprint token embedded in a stored image
// URL. Stored images live under ".../{slug}/{token}.jpg"; the second
// return value is false when the URL carries no decodable token.
func TokenFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	base := path.Base(u.Path)
	token := strings.TrimSuffix(base, path.Ext(base))
	if len(token) != TokenLength {
		return "", false
	}
	if _, err := DecodeToken(token); err != nil {
		return "", false
	}
	return token, true
}
