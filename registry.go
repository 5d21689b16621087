// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"fmt"
	"sync"

	"github.com/joeycumines/go-coop/codec"
)

// funcs maps names to fiber bodies, for every runtime in the process.
var funcs struct {
	sync.RWMutex
	m map[string]Body
}

// Register makes body available to [Runtime.SpawnFunc], and to
// [Runtime.SpawnThread], under name. It is intended to be called from init
// functions, and panics if name is empty, or already registered.
func Register(name string, body Body) {
	if name == `` || body == nil {
		panic(`coop: invalid function registration`)
	}
	funcs.Lock()
	defer funcs.Unlock()
	if _, ok := funcs.m[name]; ok {
		panic(fmt.Sprintf(`coop: function %q already registered`, name))
	}
	if funcs.m == nil {
		funcs.m = make(map[string]Body)
	}
	funcs.m[name] = body
}

// Registered reports whether a function is registered under name.
func Registered(name string) bool {
	_, err := lookupFunc(name)
	return err == nil
}

func lookupFunc(name string) (Body, error) {
	funcs.RLock()
	body, ok := funcs.m[name]
	funcs.RUnlock()
	if !ok {
		return nil, fmt.Errorf(`%w: function %q`, ErrNotFound, name)
	}
	return body, nil
}

// decodeOptions restricts decoded functions to registered ones.
var decodeOptions = []codec.Option{codec.WithFuncs(Registered)}
