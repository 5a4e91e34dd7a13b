package imaging

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DataURI encodes the artifact as a base64 data URI, the portable text form
// used for session persistence and previews.
func (a *Artifact) DataURI() string {
	return EncodeDataURI(a.Data, a.ContentType)
}

// EncodeDataURI encodes raw bytes as a data URI with the given media type.
func EncodeDataURI(data []byte, contentType string) string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI decodes a base64 data URI back into raw bytes and the media
// type. The decode is exact: bytes survive an encode/decode cycle
// unchanged.
func DecodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URI: missing payload")
	}
	contentType, isB64 := strings.CutSuffix(meta, ";base64")
	if !isB64 {
		return nil, "", fmt.Errorf("malformed data URI: not base64")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decoding data URI payload: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}
