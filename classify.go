package duplexrpc

// classifiedKind is one of the six partitions a decoded message can fall
// into per §3's classification invariants.
type classifiedKind int

const (
	kindRequest classifiedKind = iota
	kindNotification
	kindSuccess
	kindError
	kindNilIDError
	kindSchemaError
)

// classified is the tagged-variant view of a decoded message after
// classify has run. Only the fields relevant to Kind are populated.
type classified struct {
	kind   classifiedKind
	id     ID
	method string
	params []interface{}
	result interface{}
	err    *errorObject
	raw    map[string]interface{}
}

// classify is a pure function implementing the classification invariants
// of §3: every decoded message matches exactly one of request,
// notification, success-response, error-response, nil-id error-response,
// or schema-error.
func classify(msg map[string]interface{}, protocolTag string) classified {
	c := classified{raw: msg}

	tag, _ := msg[protocolTag].(string)
	if tag != "2.0" {
		return schemaError(msg)
	}

	methodVal, hasMethod := msg["method"]
	method, methodIsString := methodVal.(string)
	idVal, hasID := msg["id"]
	_, hasResult := msg["result"]
	errVal, hasErrorKey := msg["error"]

	switch {
	case hasMethod && methodIsString && hasID:
		id := idFromWire(idVal)
		if id.IsUndefined() {
			return schemaError(msg)
		}
		c.kind = kindRequest
		c.id = id
		c.method = method
		c.params = toParams(msg["params"])
		return c

	case hasMethod && methodIsString && !hasID:
		c.kind = kindNotification
		c.method = method
		c.params = toParams(msg["params"])
		return c

	case hasID && hasResult && !hasErrorKey:
		id := idFromWire(idVal)
		if id.IsNull() || id.IsUndefined() {
			return schemaError(msg)
		}
		c.kind = kindSuccess
		c.id = id
		c.result = msg["result"]
		return c

	case hasID && hasErrorKey && !hasResult:
		errObj, ok := parseErrorObject(errVal)
		if !ok {
			return schemaError(msg)
		}
		id := idFromWire(idVal)
		if id.IsUndefined() {
			return schemaError(msg)
		}
		if id.IsNull() {
			c.kind = kindNilIDError
		} else {
			c.kind = kindError
		}
		c.id = id
		c.err = errObj
		return c

	default:
		return schemaError(msg)
	}
}

func schemaError(msg map[string]interface{}) classified {
	c := classified{kind: kindSchemaError, raw: msg}
	if m, ok := msg["method"].(string); ok {
		c.method = m
	}
	if idVal, ok := msg["id"]; ok {
		c.id = idFromWire(idVal)
	} else {
		c.id = undefinedID()
	}
	return c
}
