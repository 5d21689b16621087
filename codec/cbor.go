// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package codec

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/joeycumines/go-coop/value"
)

// CBOR wraps any CBOR-marshalable Go value as userdata. Each instantiation
// must be registered, once, with [RegisterCBOR].
type CBOR[T any] struct {
	V T
}

var (
	cborEncMode cbor.EncMode
	cborNames   sync.Map // reflect.Type -> string
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	cborEncMode = em
}

// RegisterCBOR registers CBOR[T] under name. Decoding yields a CBOR[T].
func RegisterCBOR[T any](name string) {
	if _, loaded := cborNames.LoadOrStore(reflect.TypeFor[CBOR[T]](), name); loaded {
		panic(fmt.Sprintf(`codec: cbor type %v already registered`, reflect.TypeFor[T]()))
	}
	RegisterType(name, func(payload []byte) (value.Value, error) {
		var v CBOR[T]
		if err := cbor.Unmarshal(payload, &v.V); err != nil {
			return nil, err
		}
		return v, nil
	})
}

// CodecName returns the registered name, or the empty string.
func (x CBOR[T]) CodecName() string {
	if name, ok := cborNames.Load(reflect.TypeFor[CBOR[T]]()); ok {
		return name.(string)
	}
	return ``
}

// MarshalCodec encodes V using canonical CBOR.
func (x CBOR[T]) MarshalCodec() ([]byte, error) {
	return cborEncMode.Marshal(x.V)
}
