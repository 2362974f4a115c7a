package ceremony

import (
	"encoding/binary"
	"fmt"
)

// cborDecoder reads the small subset of CBOR (RFC 8949) the WebAuthn
// attestation object and COSE public keys actually use: unsigned/negative
// integers, byte strings, text strings, arrays, and maps keyed by either
// integers (COSE) or text (attestation object). There is no third-party
// CBOR library anywhere in the retrieval pack (go-webauthn, the one
// candidate, was deliberately not wired — see DESIGN.md), so this reads the
// fixed, well-specified wire grammar directly.
type cborDecoder struct {
	data []byte
	pos  int
}

func newCBORDecoder(data []byte) *cborDecoder {
	return &cborDecoder{data: data}
}

// decodeValue reads one CBOR data item, returning it as one of: uint64,
// int64, []byte, string, []interface{}, or map[interface{}]interface{}.
func (d *cborDecoder) decodeValue() (interface{}, error) {
	if d.pos >= len(d.data) {
		return nil, fmt.Errorf("cbor: unexpected end of input")
	}

	initial := d.data[d.pos]
	major := initial >> 5
	info := initial & 0x1f
	d.pos++

	switch major {
	case 0: // unsigned int
		n, err := d.readUint(info)
		if err != nil {
			return nil, err
		}
		return n, nil
	case 1: // negative int: value is -(n+1)
		n, err := d.readUint(info)
		if err != nil {
			return nil, err
		}
		return -1 - int64(n), nil
	case 2: // byte string
		n, err := d.readUint(info)
		if err != nil {
			return nil, err
		}
		return d.readBytes(int(n))
	case 3: // text string
		n, err := d.readUint(info)
		if err != nil {
			return nil, err
		}
		b, err := d.readBytes(int(n))
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case 4: // array
		n, err := d.readUint(info)
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, n)
		for i := range out {
			v, err := d.decodeValue()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case 5: // map
		n, err := d.readUint(info)
		if err != nil {
			return nil, err
		}
		out := make(map[interface{}]interface{}, n)
		for i := uint64(0); i < n; i++ {
			key, err := d.decodeValue()
			if err != nil {
				return nil, err
			}
			val, err := d.decodeValue()
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
		return out, nil
	case 7: // simple/float
		switch info {
		case 20:
			return false, nil
		case 21:
			return true, nil
		case 22, 23:
			return nil, nil
		default:
			return nil, fmt.Errorf("cbor: unsupported simple value %d", info)
		}
	default:
		return nil, fmt.Errorf("cbor: unsupported major type %d", major)
	}
}

// readUint decodes the argument that follows a major-type byte, per the
// CBOR additional-information encoding rules.
func (d *cborDecoder) readUint(info byte) (uint64, error) {
	switch {
	case info < 24:
		return uint64(info), nil
	case info == 24:
		b, err := d.readBytes(1)
		if err != nil {
			return 0, err
		}
		return uint64(b[0]), nil
	case info == 25:
		b, err := d.readBytes(2)
		if err != nil {
			return 0, err
		}
		return uint64(binary.BigEndian.Uint16(b)), nil
	case info == 26:
		b, err := d.readBytes(4)
		if err != nil {
			return 0, err
		}
		return uint64(binary.BigEndian.Uint32(b)), nil
	case info == 27:
		b, err := d.readBytes(8)
		if err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint64(b), nil
	default:
		return 0, fmt.Errorf("cbor: unsupported additional info %d", info)
	}
}

func (d *cborDecoder) readBytes(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.data) {
		return nil, fmt.Errorf("cbor: truncated input")
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// decodeCBOR decodes exactly one top-level CBOR item from data, erroring if
// trailing bytes are not consumed — attestation objects and COSE keys are
// each a single map with no trailer.
func decodeCBOR(data []byte) (interface{}, error) {
	d := newCBORDecoder(data)
	v, err := d.decodeValue()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, fmt.Errorf("cbor: trailing bytes after top-level item")
	}
	return v, nil
}

// cborMapGetString looks up a text-string key in a decoded CBOR map.
func cborMapGetString(m map[interface{}]interface{}, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// cborMapGetBytes looks up a text-string key holding a byte string.
func cborMapGetBytes(m map[interface{}]interface{}, key string) ([]byte, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

// cborMapGetInt looks up an integer-keyed entry (COSE keys are always
// integers, but the decoder's major-0/major-1 split means a positive key
// decodes as uint64 and a negative one as int64 — this compares by value,
// not by the map's dynamic key type).
func cborMapGetInt(m map[interface{}]interface{}, key int64) (interface{}, bool) {
	for k, v := range m {
		if n, ok := toInt64(k); ok && n == key {
			return v, true
		}
	}
	return nil, false
}
