package store

import (
	"encoding/json"
	"net/http"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Bodies are stored zstd-compressed by the SQL drivers. Both coders are safe
// for concurrent EncodeAll/DecodeAll use.
var (
	bodyEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	bodyDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// CompressBody compresses a response body for storage.
func CompressBody(body []byte) []byte {
	return bodyEncoder.EncodeAll(body, make([]byte, 0, len(body)/2))
}

// DecompressBody restores a body written by CompressBody.
func DecompressBody(data []byte) ([]byte, error) {
	body, err := bodyDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress body")
	}
	return body, nil
}

// EncodeHeader serializes a header map as JSON.
func EncodeHeader(h http.Header) (string, error) {
	if h == nil {
		h = http.Header{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode header")
	}
	return string(b), nil
}

// DecodeHeader parses a header written by EncodeHeader.
func DecodeHeader(s string) (http.Header, error) {
	h := http.Header{}
	if s == "" {
		return h, nil
	}
	if err := json.Unmarshal([]byte(s), &h); err != nil {
		return nil, errors.Wrap(err, "failed to decode header")
	}
	return h, nil
}
