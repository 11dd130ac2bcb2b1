package client

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Request body encodings. The names double as Content-Encoding values.
const (
	EncodingIdentity = ""
	EncodingGzip     = "gzip"
	EncodingZstd     = "zstd"
	EncodingSnappy   = "snappy"
)

// ErrUnknownEncoding is returned for an encoding name the client cannot
// produce.
var ErrUnknownEncoding = errors.New("unknown content encoding")

// ValidEncoding reports whether name is a supported body encoding.
func ValidEncoding(name string) bool {
	switch name {
	case EncodingIdentity, EncodingGzip, EncodingZstd, EncodingSnappy:
		return true
	}
	return false
}

// encodeBody compresses body with the named encoding. Snappy uses the block
// format, as Prometheus remote write does.
func encodeBody(name string, body []byte) ([]byte, error) {
	switch name {
	case EncodingIdentity:
		return body, nil

	case EncodingGzip:
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(body); err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		if err := gw.Close(); err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return buf.Bytes(), nil

	case EncodingZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd body: %w", err)
		}
		defer func() { _ = enc.Close() }()
		return enc.EncodeAll(body, make([]byte, 0, len(body)/2)), nil

	case EncodingSnappy:
		return snappy.Encode(nil, body), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
}
