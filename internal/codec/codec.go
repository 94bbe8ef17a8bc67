// Package codec streams documents to and from storage, optionally through
// a gzip stage. It is grounded on the teacher's util.NewJSONDecoder
// convention (decode with json.Number so large ids don't lose precision)
// and on bundle/bundle.go's direct use of the standard library's
// compress/gzip for streaming compression — the teacher never reaches for
// a third-party gzip implementation for this concern, so neither do we.
package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
)

// Codec reads and writes JSON documents, transparently gzip-compressing
// the payload when Compress is set.
type Codec struct {
	Compress bool
}

// New returns a Codec configured for the given compression mode.
func New(compress bool) *Codec {
	return &Codec{Compress: compress}
}

// Encode marshals v, gzip-compressing it first if the codec is configured
// to do so, and returns the bytes ready to be written to storage.
func (c *Codec) Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.WriteTo(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo streams v's JSON encoding to w, through gzip when Compress is
// set. Every written file round-trips exactly through Decode/ReadFrom.
func (c *Codec) WriteTo(w io.Writer, v interface{}) error {
	if !c.Compress {
		enc := json.NewEncoder(w)
		return enc.Encode(v)
	}
	gw := gzip.NewWriter(w)
	enc := json.NewEncoder(gw)
	if err := enc.Encode(v); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}

// Decode unmarshals bytes previously produced by Encode into v. Numbers
// decode as json.Number so callers can distinguish integral ids from
// floating point user data without precision loss.
func (c *Codec) Decode(bs []byte, v interface{}) error {
	return c.ReadFrom(bytes.NewReader(bs), v)
}

// ReadFrom decodes a document streamed from r, gunzipping first when
// Compress is set.
func (c *Codec) ReadFrom(r io.Reader, v interface{}) error {
	if !c.Compress {
		dec := json.NewDecoder(r)
		dec.UseNumber()
		return dec.Decode(v)
	}
	gr, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gr.Close()
	dec := json.NewDecoder(gr)
	dec.UseNumber()
	return dec.Decode(v)
}

// Normalize converts json.Number leaves (and nested maps/slices containing
// them) into int64 when the number is integral, or float64 otherwise, so
// in-memory documents never carry json.Number values once loaded.
func Normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	default:
		return v
	}
}
