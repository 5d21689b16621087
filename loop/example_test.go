// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loop_test

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-coop/loop"
)

func ExampleLoop_Do() {
	l, err := loop.New()
	if err != nil {
		panic(err)
	}
	defer l.Close()

	timer := l.NewTimer(func() { fmt.Println(`timer fired`) })

	_, err = l.Do(func() (any, error) {
		// runs on its own goroutine
		return 6 * 7, nil
	}, func(result any, err error) {
		// runs on the loop goroutine
		fmt.Println(`result:`, result, err)
		_ = timer.Start(time.Millisecond, 0)
	})
	if err != nil {
		panic(err)
	}

	alive, err := l.Run(loop.RunDefault)
	fmt.Println(`alive:`, alive, err)

	// Output:
	// result: 42 <nil>
	// timer fired
	// alive: false <nil>
}
