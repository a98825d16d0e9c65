package cache

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/vmihailenco/msgpack/v5"
)

// Serializer converts application values to and from the storable byte form
// used by both tiers. Implementations must be safe for concurrent use.
type Serializer interface {
	// Encode converts a value to its storable form.
	Encode(val any) ([]byte, error)
	// Decode reads a storable form back into out, which must be a pointer.
	Decode(data []byte, out any) error
}

type msgpackSerializer struct{}

// NewMsgpackSerializer returns the default Serializer, which stores values
// as msgpack.
func NewMsgpackSerializer() Serializer {
	return msgpackSerializer{}
}

func (msgpackSerializer) Encode(val any) ([]byte, error) {
	return msgpack.Marshal(val)
}

func (msgpackSerializer) Decode(data []byte, out any) error {
	return msgpack.Unmarshal(data, out)
}

type gzipSerializer struct {
	inner Serializer
}

// NewGzipSerializer wraps another Serializer with gzip compression. Worth it
// for wide map tiles and aggregate snapshots, which compress well; small
// payloads may grow slightly.
func NewGzipSerializer(inner Serializer) Serializer {
	if inner == nil {
		inner = NewMsgpackSerializer()
	}
	return gzipSerializer{inner: inner}
}

func (s gzipSerializer) Encode(val any) ([]byte, error) {
	data, err := s.inner.Encode(val)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s gzipSerializer) Decode(data []byte, out any) error {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return err
	}
	return s.inner.Decode(raw, out)
}
