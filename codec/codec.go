// Package codec implements the wire encodings for duplexrpc: BSON (via
// github.com/juju/mgo/v3/bson) and JSON (via encoding/json). Both operate on
// a plain map[string]interface{} representation of a decoded message,
// matching the heterogeneous-map data model described by the protocol.
package codec

// Codec turns a message map into wire bytes and back. Implementations must
// round-trip a well-formed map, modulo the usual JSON/BSON type coercions
// (e.g. JSON numbers decode as float64).
type Codec interface {
	Encode(msg map[string]interface{}) ([]byte, error)
	Decode(b []byte) (map[string]interface{}, error)
}
