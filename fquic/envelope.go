package fquic

import (
	"errors"
	"fmt"

	"github.com/golang/snappy"
)

// Envelope header values.
const (
	envelopeRaw    byte = 0
	envelopeSnappy byte = 1
)

// encodeEnvelope returns a new datagram holding p.
// With compress set, the snappy encoding is used
// only if it is strictly smaller than the raw frame.
func encodeEnvelope(p []byte, compress bool) []byte {
	if compress {
		buf := make([]byte, 1+snappy.MaxEncodedLen(len(p)))
		enc := snappy.Encode(buf[1:], p)
		if len(enc) < len(p) {
			buf[0] = envelopeSnappy
			return buf[:1+len(enc)]
		}
	}

	out := make([]byte, 1+len(p))
	out[0] = envelopeRaw
	copy(out[1:], p)
	return out
}

// decodeEnvelope returns the frame carried in datagram d.
// The result may alias d.
func decodeEnvelope(d []byte, maxPayload int) ([]byte, error) {
	if len(d) == 0 {
		return nil, errors.New("empty datagram")
	}

	body := d[1:]
	switch d[0] {
	case envelopeRaw:
		if len(body) > maxPayload {
			return nil, fmt.Errorf("raw frame of %d bytes exceeds limit %d", len(body), maxPayload)
		}
		return body, nil

	case envelopeSnappy:
		n, err := snappy.DecodedLen(body)
		if err != nil {
			return nil, fmt.Errorf("failed to read snappy length: %w", err)
		}
		if n > maxPayload {
			return nil, fmt.Errorf("compressed frame of %d bytes exceeds limit %d", n, maxPayload)
		}
		out, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode snappy frame: %w", err)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unknown envelope type 0x%02x", d[0])
	}
}
