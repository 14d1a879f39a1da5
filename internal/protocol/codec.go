package protocol

import (
	"encoding/gob"
	"fmt"
	"io"
)

// Encoder writes a gob stream of messages. Gob values are self-delimiting, so a
// single encoder/decoder pair per connection frames the TCP byte stream.
type Encoder struct {
	enc *gob.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: gob.NewEncoder(w)}
}

func (e *Encoder) WriteRequest(r ClientRequest) error {
	if err := e.enc.Encode(&r); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return nil
}

func (e *Encoder) WriteMessage(m ServerMessage) error {
	if err := e.enc.Encode(&m); err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return nil
}

type Decoder struct {
	dec *gob.Decoder
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: gob.NewDecoder(r)}
}

// ReadRequest returns io.EOF unwrapped when the peer closes cleanly.
func (d *Decoder) ReadRequest() (ClientRequest, error) {
	var r ClientRequest
	if err := d.dec.Decode(&r); err != nil {
		if err == io.EOF {
			return r, err
		}
		return r, fmt.Errorf("decode request: %w", err)
	}
	return r, nil
}

func (d *Decoder) ReadMessage() (ServerMessage, error) {
	var m ServerMessage
	if err := d.dec.Decode(&m); err != nil {
		if err == io.EOF {
			return m, err
		}
		return m, fmt.Errorf("decode message: %w", err)
	}
	return m, nil
}
