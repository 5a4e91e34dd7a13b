package imaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataURIRoundTrip(t *testing.T) {
	original := []byte{0x00, 0x01, 0xFF, 0xFE, 0x7F, 0x80, 0x0A}

	uri := EncodeDataURI(original, "image/jpeg")
	assert.Contains(t, uri, "data:image/jpeg;base64,")

	decoded, contentType, err := DecodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)
	assert.Equal(t, original, decoded)
}

func TestDecodeDataURIRejectsMalformedInput(t *testing.T) {
	for _, uri := range []string{
		"",
		"http://example.com/image.png",
		"data:image/png",
		"data:image/png,rawpayload",
		"data:image/png;base64,!!!not-base64!!!",
	} {
		_, _, err := DecodeDataURI(uri)
		assert.Error(t, err, "uri %q", uri)
	}
}

func TestEncodeDataURIDefaultsContentType(t *testing.T) {
	uri := EncodeDataURI([]byte("x"), "")
	assert.Contains(t, uri, "data:application/octet-stream;base64,")
}
