package evbus

import (
	"fmt"
	"reflect"
	"strings"
)

// MethodMapper enumerates the candidate methods Attach considers on a
// source type. The bus owns validation; a mapper only decides which
// methods are visible to the scan.
type MethodMapper func(t reflect.Type) []reflect.Method

// DeclaredMethods is the default MethodMapper: every exported method in
// the type's method set, in reflect order.
func DeclaredMethods(t reflect.Type) []reflect.Method {
	methods := make([]reflect.Method, 0, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		methods = append(methods, t.Method(i))
	}
	return methods
}

// Attach scans the source value's method set for subscriber methods:
// exported methods whose name starts with the bus marker prefix, taking
// exactly one parameter assignable to the bus root type and returning
// nothing. Each one becomes a subscription for its parameter type, all
// represented by a single handle with the source as origin.
//
// A marked method with the wrong shape fails the whole call; nothing is
// registered. Zero marked methods is not an error: Attach returns a nil
// handle.
func (b *Bus[E]) Attach(source any) (*Handle, error) {
	if source == nil {
		return nil, ErrNilSource
	}

	rv := reflect.ValueOf(source)
	rt := rv.Type()

	var entries []batchEntry
	for _, m := range b.mapper(rt) {
		if !strings.HasPrefix(m.Name, b.marker) {
			continue
		}

		// Method came from the type, so In(0) is the receiver.
		mt := m.Type
		if mt.NumOut() != 0 {
			return nil, fmt.Errorf("%w: %s.%s must not return values", ErrInvalidSubscriber, rt, m.Name)
		}
		if mt.NumIn() != 2 {
			return nil, fmt.Errorf("%w: %s.%s must take exactly one parameter", ErrInvalidSubscriber, rt, m.Name)
		}
		paramType := mt.In(1)
		if !paramType.AssignableTo(b.root) {
			return nil, fmt.Errorf("%w: %s.%s parameter %s is not assignable to %s",
				ErrInvalidSubscriber, rt, m.Name, paramType, b.root)
		}

		bound := rv.Method(m.Index)
		entries = append(entries, batchEntry{
			eventType: paramType,
			invoke: func(event any) {
				bound.Call([]reflect.Value{reflect.ValueOf(event)})
			},
			cfg: SubscriberConfig{Origin: source},
		})
	}

	if len(entries) == 0 {
		return nil, nil
	}
	return b.subscribeBatch(entries), nil
}

// AttachFuncs registers a set of named functions under one origin. It is
// the free-function counterpart of Attach for subscribers that are not
// methods: names without the marker prefix are skipped, the rest must be
// funcs taking exactly one parameter assignable to the bus root type and
// returning nothing. Validation failures fail the whole call atomically.
// Zero marked names returns a nil handle and no error.
func (b *Bus[E]) AttachFuncs(origin any, fns map[string]any) (*Handle, error) {
	if origin == nil {
		return nil, ErrNilSource
	}

	var entries []batchEntry
	for name, f := range fns {
		if !strings.HasPrefix(name, b.marker) {
			continue
		}

		ft := reflect.TypeOf(f)
		if ft == nil || ft.Kind() != reflect.Func {
			return nil, fmt.Errorf("%w: %q is not a func", ErrInvalidSubscriber, name)
		}
		if ft.NumOut() != 0 {
			return nil, fmt.Errorf("%w: %q must not return values", ErrInvalidSubscriber, name)
		}
		if ft.NumIn() != 1 {
			return nil, fmt.Errorf("%w: %q must take exactly one parameter", ErrInvalidSubscriber, name)
		}
		paramType := ft.In(0)
		if !paramType.AssignableTo(b.root) {
			return nil, fmt.Errorf("%w: %q parameter %s is not assignable to %s",
				ErrInvalidSubscriber, name, paramType, b.root)
		}

		fv := reflect.ValueOf(f)
		entries = append(entries, batchEntry{
			eventType: paramType,
			invoke: func(event any) {
				fv.Call([]reflect.Value{reflect.ValueOf(event)})
			},
			cfg: SubscriberConfig{Origin: origin},
		})
	}

	if len(entries) == 0 {
		return nil, nil
	}
	return b.subscribeBatch(entries), nil
}
