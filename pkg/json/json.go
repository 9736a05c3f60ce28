// Package json provides JSON serialization backed by goccy/go-json with
// pooled buffers. It is used to decode query envelopes and raw cells and to
// encode JSON-lines output.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// RawMessage is a raw encoded JSON value
type RawMessage = gojson.RawMessage

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// NewDecoder returns a decoder reading from r
func NewDecoder(r io.Reader) *gojson.Decoder {
	return gojson.NewDecoder(r)
}

// Decode reads a single JSON document from r into v
func Decode(r io.Reader, v interface{}) error {
	return gojson.NewDecoder(r).Decode(v)
}

// LinesEncoder writes one JSON document per line
type LinesEncoder struct {
	w   io.Writer
	buf *bytes.Buffer
	enc *gojson.Encoder
}

// NewLinesEncoder creates a JSON-lines encoder writing to w
func NewLinesEncoder(w io.Writer) *LinesEncoder {
	buf := GetBuffer()
	enc := gojson.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &LinesEncoder{w: w, buf: buf, enc: enc}
}

// Encode writes v followed by a newline
func (le *LinesEncoder) Encode(v interface{}) error {
	le.buf.Reset()
	if err := le.enc.Encode(v); err != nil {
		return err
	}
	_, err := le.w.Write(le.buf.Bytes())
	return err
}

// Close releases the pooled buffer
func (le *LinesEncoder) Close() error {
	if le.buf != nil {
		PutBuffer(le.buf)
		le.buf = nil
	}
	return nil
}
