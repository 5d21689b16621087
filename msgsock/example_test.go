// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package msgsock_test

import (
	"fmt"

	"github.com/joeycumines/go-coop/msgsock"
)

func Example() {
	ctx := msgsock.NewContext()
	defer ctx.Close()

	pull, err := ctx.Socket(msgsock.Pull)
	if err != nil {
		panic(err)
	}
	if err := pull.Bind(`inproc://example`); err != nil {
		panic(err)
	}

	push, err := ctx.Socket(msgsock.Push)
	if err != nil {
		panic(err)
	}
	if err := push.Connect(`inproc://example`); err != nil {
		panic(err)
	}

	if err := push.TrySend([]byte(`hello`), []byte(`world`)); err != nil {
		panic(err)
	}
	fmt.Println(pull.Poll() == msgsock.PollIn)

	msg, err := pull.TryRecv()
	if err != nil {
		panic(err)
	}
	fmt.Printf("%s %s\n", msg[0], msg[1])

	_, err = pull.TryRecv()
	fmt.Println(err)

	// Output:
	// true
	// hello world
	// msgsock: resource temporarily unavailable
}
