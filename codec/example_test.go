// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package codec_test

import (
	"fmt"

	"github.com/joeycumines/go-coop/codec"
	"github.com/joeycumines/go-coop/value"
)

func ExampleEncode() {
	t := value.NewTable()
	_ = t.Set(`n`, int64(1))
	_ = t.Set(`self`, t)

	data, err := codec.Encode(`hello`, t)
	if err != nil {
		panic(err)
	}

	vals, err := codec.Decode(data)
	if err != nil {
		panic(err)
	}
	fmt.Println(vals[0])
	decoded := vals[1].(*value.Table)
	fmt.Println(decoded != t, decoded.Get(`self`) == decoded, decoded.Get(`n`))

	_, err = codec.Encode(func() {})
	fmt.Println(err != nil)

	// Output:
	// hello
	// true true 1
	// true
}
