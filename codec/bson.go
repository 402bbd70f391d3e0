package codec

import "github.com/juju/mgo/v3/bson"

// BSON encodes and decodes messages as BSON documents. Marshal already
// prefixes the document with its own little-endian length, so a BSON frame
// produced here needs no additional framing on the wire.
type BSON struct{}

// NewBSON returns a ready-to-use BSON codec.
func NewBSON() BSON { return BSON{} }

func (BSON) Encode(msg map[string]interface{}) ([]byte, error) {
	return bson.Marshal(msg)
}

func (BSON) Decode(b []byte) (map[string]interface{}, error) {
	var msg map[string]interface{}
	if err := bson.Unmarshal(b, &msg); err != nil {
		return nil, err
	}
	return msg, nil
}
