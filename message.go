package duplexrpc

import "strconv"

// idKind tags which of the JSON-RPC id's three shapes — or the absence of
// an id key entirely — a Message ID carries.
type idKind int

const (
	idUndefined idKind = iota
	idNull
	idString
	idNumber
)

// ID is a JSON-RPC 2.0 message id: a string, an integer, or null. The zero
// value is undefined, meaning no id key was present at all (as on a
// notification).
type ID struct {
	kind idKind
	str  string
	num  int64
}

func undefinedID() ID      { return ID{kind: idUndefined} }
func nullID() ID           { return ID{kind: idNull} }
func stringID(s string) ID { return ID{kind: idString, str: s} }
func numberID(n int64) ID  { return ID{kind: idNumber, num: n} }

func (id ID) IsNull() bool      { return id.kind == idNull }
func (id ID) IsString() bool    { return id.kind == idString }
func (id ID) IsNumber() bool    { return id.kind == idNumber }
func (id ID) IsUndefined() bool { return id.kind == idUndefined }

// String renders the id for logging. It is not the wire representation.
func (id ID) String() string {
	switch id.kind {
	case idString:
		return id.str
	case idNumber:
		return strconv.FormatInt(id.num, 10)
	case idNull:
		return "null"
	default:
		return "<undefined>"
	}
}

// wireValue returns the value to place under the "id" key when encoding.
func (id ID) wireValue() interface{} {
	switch id.kind {
	case idString:
		return id.str
	case idNumber:
		return id.num
	default:
		return nil
	}
}

// idFromWire converts a decoded "id" value into an ID. Anything that isn't
// a string, an integer-ish number, or null is reported as undefined so the
// caller can treat the message as a schema error.
func idFromWire(v interface{}) ID {
	switch val := v.(type) {
	case nil:
		return nullID()
	case string:
		return stringID(val)
	case int:
		return numberID(int64(val))
	case int32:
		return numberID(int64(val))
	case int64:
		return numberID(val)
	case float64:
		if float64(int64(val)) != val {
			return undefinedID()
		}
		return numberID(int64(val))
	default:
		return undefinedID()
	}
}

// errorObject is the decoded form of a message's "error" key.
type errorObject struct {
	Code    int
	Message string
	Data    interface{}
}

func parseErrorObject(v interface{}) (*errorObject, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	code, hasCode := toInt(m["code"])
	msg, hasMsg := m["message"].(string)
	if !hasCode || !hasMsg {
		return nil, false
	}
	return &errorObject{Code: code, Message: msg, Data: m["data"]}, true
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// toParams coerces the decoded "params" value into a positional slice.
// Non-array params are silently treated as empty rather than rejected —
// see DESIGN.md for why this leniency, inherited from the source
// implementation, is kept.
func toParams(v interface{}) []interface{} {
	arr, _ := v.([]interface{})
	return arr
}
