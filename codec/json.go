package codec

import "encoding/json"

// KeyFn transforms an object key as it is decoded off the wire. The default
// (nil KeyFn) leaves keys untouched.
type KeyFn func(string) string

// JSON encodes and decodes messages as UTF-8 JSON values. It carries no
// framing of its own; framing is layered on top by the frameless or
// RFC-7464 stream decoders.
type JSON struct {
	KeyFn KeyFn
}

// NewJSON returns a JSON codec that applies keyFn to every decoded object
// key, recursively. A nil keyFn leaves keys as-is.
func NewJSON(keyFn KeyFn) JSON {
	return JSON{KeyFn: keyFn}
}

func (c JSON) Encode(msg map[string]interface{}) ([]byte, error) {
	return json.Marshal(msg)
}

func (c JSON) Decode(b []byte) (map[string]interface{}, error) {
	var msg map[string]interface{}
	if err := json.Unmarshal(b, &msg); err != nil {
		return nil, err
	}
	return ApplyKeyFn(msg, c.KeyFn), nil
}

// ApplyKeyFn walks m recursively, rewriting every object key with fn. A nil
// fn returns m unchanged.
func ApplyKeyFn(m map[string]interface{}, fn KeyFn) map[string]interface{} {
	if fn == nil {
		return m
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[fn(k)] = applyKeyFnValue(v, fn)
	}
	return out
}

func applyKeyFnValue(v interface{}, fn KeyFn) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		return ApplyKeyFn(vv, fn)
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, e := range vv {
			out[i] = applyKeyFnValue(e, fn)
		}
		return out
	default:
		return v
	}
}
