package duplexrpc

import (
	"fmt"
	"reflect"
)

// Func adapts a plain Go function into a Handler, applying inbound params
// to it positionally the way §4.G describes: arity mismatches become
// ErrorInvalidParams instead of panicking, and a trailing error return
// value (if present and non-nil) becomes an ErrorServer response.
//
// fn may take any number of parameters and return zero, one, or two
// values (result, error). It panics if fn is not a function.
func Func(fn interface{}) Handler {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		panic("duplexrpc: Func requires a function value")
	}

	return HandlerFunc(func(w ResponseWriter, r *Request) {
		args, err := bindArgs(ft, r.Params)
		if err != nil {
			w.WriteError(ErrorInvalidParams, fmt.Errorf("method %s: %w", r.Method, err))
			return
		}

		results := fv.Call(args)
		writeFuncResult(w, results)
	})
}

func bindArgs(ft reflect.Type, params []interface{}) ([]reflect.Value, error) {
	numIn := ft.NumIn()
	variadic := ft.IsVariadic()

	if variadic {
		if len(params) < numIn-1 {
			return nil, fmt.Errorf("expects at least %d argument(s), got %d", numIn-1, len(params))
		}
	} else if len(params) != numIn {
		return nil, fmt.Errorf("expects %d argument(s), got %d", numIn, len(params))
	}

	args := make([]reflect.Value, len(params))
	for i, p := range params {
		var target reflect.Type
		if variadic && i >= numIn-1 {
			target = ft.In(numIn - 1).Elem()
		} else {
			target = ft.In(i)
		}
		v, err := convertParam(p, target)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}

func convertParam(v interface{}, target reflect.Type) (reflect.Value, error) {
	if target.Kind() == reflect.Interface && target.NumMethod() == 0 {
		if v == nil {
			return reflect.Zero(target), nil
		}
		return reflect.ValueOf(v), nil
	}
	if v == nil {
		return reflect.Zero(target), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(target) {
		return rv, nil
	}
	if target.Kind() == reflect.Slice && rv.Kind() == reflect.Slice {
		return convertSlice(rv, target)
	}
	if rv.Type().ConvertibleTo(target) && isConvertibleKind(rv.Kind()) && isConvertibleKind(target.Kind()) {
		return rv.Convert(target), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, target)
}

// convertSlice converts a decoded []interface{} (the only slice shape a
// codec ever produces for params) into a concrete element type, e.g.
// []int or []string, element by element.
func convertSlice(rv reflect.Value, target reflect.Type) (reflect.Value, error) {
	elemType := target.Elem()
	out := reflect.MakeSlice(target, rv.Len(), rv.Len())
	for i := 0; i < rv.Len(); i++ {
		ev, err := convertParam(rv.Index(i).Interface(), elemType)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(ev)
	}
	return out, nil
}

func isConvertibleKind(k reflect.Kind) bool {
	switch k {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Bool:
		return true
	default:
		return false
	}
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func writeFuncResult(w ResponseWriter, results []reflect.Value) {
	switch len(results) {
	case 0:
		w.WriteMessage(nil)
	case 1:
		if results[0].Type().Implements(errorType) {
			if errv, _ := results[0].Interface().(error); errv != nil {
				w.WriteError(ErrorServer, errv)
				return
			}
			w.WriteMessage(nil)
			return
		}
		w.WriteMessage(results[0].Interface())
	default:
		last := results[len(results)-1]
		if last.Type().Implements(errorType) {
			if errv, _ := last.Interface().(error); errv != nil {
				w.WriteError(ErrorServer, errv)
				return
			}
			if len(results) == 2 {
				w.WriteMessage(results[0].Interface())
				return
			}
			vals := make([]interface{}, len(results)-1)
			for i := range vals {
				vals[i] = results[i].Interface()
			}
			w.WriteMessage(vals)
			return
		}
		vals := make([]interface{}, len(results))
		for i := range vals {
			vals[i] = results[i].Interface()
		}
		w.WriteMessage(vals)
	}
}
