package duplexrpc

import "github.com/crtv-io/duplexrpc/codec"

// bsonDecoder implements the BSON length-prefix framing mode of §4.D:
// every frame begins with a little-endian signed 32-bit byte length,
// inclusive of itself.
type bsonDecoder struct {
	buf    []byte
	maxLen int64
	codec  codec.Codec
}

func newBSONDecoder(c codec.Codec, maxLen int64) *bsonDecoder {
	return &bsonDecoder{codec: c, maxLen: maxLen}
}

func (d *bsonDecoder) Feed(chunk []byte) []item {
	d.buf = concatBytes(d.buf, chunk)

	var items []item
	for len(d.buf) >= 4 {
		// Widen to int64 before comparing so a length peek can never wrap
		// around when max_len is set near math.MaxInt32.
		l := int64(readInt32LE(d.buf[:4]))

		if l < 5 {
			items = append(items, item{parseErr: &ParseError{
				Kind:          ErrInvalidFraming,
				Bytes:         append([]byte(nil), d.buf...),
				Irrecoverable: true,
			}})
			return items
		}
		if l > d.maxLen {
			items = append(items, item{parseErr: &ParseError{
				Kind:          ErrExceedsMaxLength,
				Bytes:         append([]byte(nil), d.buf...),
				Irrecoverable: true,
			}})
			return items
		}
		if int64(len(d.buf)) < l {
			break
		}

		frame, rest := splitAt(d.buf, int(l))
		d.buf = rest

		msg, err := d.codec.Decode(frame)
		if err != nil {
			items = append(items, item{parseErr: &ParseError{
				Kind:          ErrInvalidBSON,
				Bytes:         frame,
				Cause:         err,
				Irrecoverable: true,
			}})
			return items
		}
		items = append(items, item{message: msg})
	}
	return items
}

func (d *bsonDecoder) Drain() []item {
	if len(d.buf) == 0 {
		return nil
	}
	return []item{{parseErr: &ParseError{Kind: ErrTrailingGarbage, Bytes: d.buf}}}
}
