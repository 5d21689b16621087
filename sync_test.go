// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package coop

import (
	"errors"
	"fmt"
	"testing"

	"github.com/joeycumines/go-coop/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCond_broadcastFifo(t *testing.T) {
	rt := newTestRuntime(t)
	c := NewCond()
	var (
		order []int
		got   [][]value.Value
	)
	for i := range 3 {
		spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
			vals, err := c.Wait(task)
			if err != nil {
				return nil, err
			}
			order = append(order, i)
			got = append(got, vals)
			vals[0] = nil
			return nil, nil
		})
	}
	var woken int
	spawn(t, rt, func(*Task, ...value.Value) ([]value.Value, error) {
		woken = c.Broadcast(`v`)
		return nil, nil
	})

	require.NoError(t, rt.Run())
	assert.Equal(t, 3, woken)
	assert.Equal(t, []int{0, 1, 2}, order)
	assert.Equal(t, [][]value.Value{{nil}, {nil}, {nil}}, got)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.Broadcast())
}

func TestCond_signal(t *testing.T) {
	rt := newTestRuntime(t)
	c := NewCond()

	// nobody waiting, so the signal is lost
	assert.False(t, c.Signal(`lost`))

	var got []value.Value
	for range 2 {
		spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
			vals, err := c.Wait(task)
			if err != nil {
				return nil, err
			}
			got = append(got, vals...)
			return nil, nil
		})
	}
	require.NoError(t, rt.Run())
	assert.Equal(t, 2, c.Len())

	assert.True(t, c.Signal(`a`))
	require.NoError(t, rt.Run())
	assert.Equal(t, []value.Value{`a`}, got)
	assert.Equal(t, 1, c.Len())

	assert.True(t, c.Signal(`b`, `c`))
	require.NoError(t, rt.Run())
	assert.Equal(t, []value.Value{`a`, `b`, `c`}, got)
}

func TestCond_alreadyWaiting(t *testing.T) {
	rt := newTestRuntime(t)
	c := NewCond()
	task := spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
		_, err := c.Wait(task)
		return nil, err
	})
	require.NoError(t, rt.Run())
	_, err := NewCond().Wait(task)
	assert.ErrorIs(t, err, ErrAlreadyWaiting)
	assert.Equal(t, 1, c.Len())
}

func TestChannel_rendezvous(t *testing.T) {
	rt := newTestRuntime(t)
	ch := NewChannel()
	var puts []error
	spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
		for i := range 3 {
			puts = append(puts, ch.Put(task, int64(i+1)))
		}
		return nil, nil
	})
	var got []value.Value
	spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
		for range 3 {
			vals, err := ch.Get(task)
			if err != nil {
				return nil, err
			}
			got = append(got, vals...)
		}
		return nil, nil
	})
	require.NoError(t, rt.Run())
	assert.Equal(t, []value.Value{int64(1), int64(2), int64(3)}, got)
	assert.Equal(t, []error{nil, nil, nil}, puts)
	assert.Equal(t, 0, ch.Pending())
	assert.Equal(t, 0, ch.Waiting())
}

func TestChannel_rendezvousGroups(t *testing.T) {
	rt := newTestRuntime(t)
	ch := NewChannel()
	for _, vals := range [][]value.Value{
		{int64(1), int64(2), int64(3)},
		{int64(4), int64(5)},
	} {
		spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
			return nil, ch.Put(task, vals...)
		})
	}
	require.NoError(t, rt.Scheduler().RunLoop())
	require.Equal(t, 2, ch.Pending())

	var got [][]value.Value
	spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
		for range 2 {
			vals, err := ch.Get(task)
			if err != nil {
				return nil, err
			}
			got = append(got, vals)
		}
		return nil, nil
	})
	require.NoError(t, rt.Run())
	assert.Equal(t, [][]value.Value{
		{int64(1), int64(2), int64(3)},
		{int64(4), int64(5)},
	}, got)
	assert.Equal(t, 0, ch.Pending())
}

func TestChannel_tryOps(t *testing.T) {
	rt := newTestRuntime(t)
	ch := NewChannel()

	assert.False(t, ch.TryPut(`x`))
	_, ok := ch.TryGet()
	assert.False(t, ok)

	var got []value.Value
	spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
		vals, err := ch.Get(task)
		got = vals
		return nil, err
	})
	putter := spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
		return nil, ch.Put(task, `offered`)
	})
	require.NoError(t, rt.Scheduler().RunOnce())
	assert.Equal(t, 1, ch.Waiting())
	assert.True(t, ch.TryPut(`direct`))
	require.NoError(t, rt.Run())
	assert.Equal(t, []value.Value{`direct`}, got)

	assert.False(t, putter.Closed())
	assert.Equal(t, 1, ch.Pending())
	vals, ok := ch.TryGet()
	require.True(t, ok)
	assert.Equal(t, []value.Value{`offered`}, vals)
	require.NoError(t, rt.Run())
	assert.True(t, putter.Closed())
	assert.NoError(t, putter.Err())
}

func TestQueue_capacity(t *testing.T) {
	rt := newTestRuntime(t)
	q, err := NewQueue(2)
	require.NoError(t, err)

	var produced int
	producer := spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
		for i := range 5 {
			if err := q.Put(task, int64(i)); err != nil {
				return nil, err
			}
			produced++
		}
		return nil, nil
	})
	require.NoError(t, rt.Run())
	assert.Equal(t, 2, produced)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 2, q.Cap())
	assert.True(t, q.Full())
	assert.Equal(t, FlagStarted|FlagWaiting, producer.Flags())

	var got []value.Value
	spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
		for range 5 {
			if q.Len() > q.Cap() {
				return nil, ErrQueueSize
			}
			vals, err := q.Get(task)
			if err != nil {
				return nil, err
			}
			got = append(got, vals...)
		}
		return nil, nil
	})
	require.NoError(t, rt.Run())
	assert.Equal(t, []value.Value{int64(0), int64(1), int64(2), int64(3), int64(4)}, got)
	assert.Equal(t, 5, produced)
	assert.True(t, producer.Closed())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_producerConsumer(t *testing.T) {
	rt := newTestRuntime(t)
	q, err := NewQueue(1)
	require.NoError(t, err)

	var got []value.Value
	consumer := spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
		for {
			vals, err := q.Get(task)
			if errors.Is(err, ErrClosed) {
				return []value.Value{`drained`}, nil
			}
			if err != nil {
				return nil, err
			}
			got = append(got, vals...)
		}
	})
	spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
		for i := range 3 {
			if err := q.Put(task, int64(i+1)); err != nil {
				return nil, err
			}
		}
		q.Close()
		return nil, nil
	})

	require.NoError(t, rt.Run())
	assert.Equal(t, []value.Value{int64(1), int64(2), int64(3)}, got)
	assert.Equal(t, []value.Value{`drained`}, consumer.Results())
}

func TestQueue_handoffToWaitingGetter(t *testing.T) {
	rt := newTestRuntime(t)
	q, err := NewQueue(4)
	require.NoError(t, err)

	var (
		events []string
		got    []value.Value
	)
	spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
		vals, err := q.Get(task)
		got = vals
		events = append(events, `get`)
		return nil, err
	})
	require.NoError(t, rt.Scheduler().RunLoop())

	spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
		if err := q.Put(task, int64(1), int64(2), int64(3)); err != nil {
			return nil, err
		}
		events = append(events, fmt.Sprintf(`put len=%d`, q.Len()))
		return nil, nil
	})
	spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
		_, ok := q.TryGet()
		events = append(events, fmt.Sprintf(`other ok=%t`, ok))
		return nil, nil
	})

	require.NoError(t, rt.Run())
	require.Len(t, got, 3)
	assert.Equal(t, []value.Value{int64(1), int64(2), int64(3)}, got)
	assert.Equal(t, []string{`put len=0`, `other ok=false`, `get`}, events)
}

func TestQueue_offer(t *testing.T) {
	q, err := NewQueue(2)
	require.NoError(t, err)

	assert.True(t, q.Offer(`a`))
	assert.True(t, q.Offer(`b`))
	assert.False(t, q.Offer(`c`))
	assert.Equal(t, 3, q.Len())
	assert.True(t, q.Full())

	for _, want := range []value.Value{`a`, `b`, `c`} {
		vals, ok := q.TryGet()
		require.True(t, ok)
		assert.Equal(t, []value.Value{want}, vals)
	}
	_, ok := q.TryGet()
	assert.False(t, ok)
	assert.False(t, q.Full())
}

func TestQueue_close(t *testing.T) {
	rt := newTestRuntime(t)
	q, err := NewQueue(1)
	require.NoError(t, err)
	require.True(t, q.Offer(`held`))

	var errs []error
	for range 2 {
		spawn(t, rt, func(task *Task, _ ...value.Value) ([]value.Value, error) {
			errs = append(errs, q.Put(task, `blocked`))
			return nil, nil
		})
	}
	require.NoError(t, rt.Run())

	q.Close()
	q.Close()
	require.NoError(t, rt.Run())
	assert.Equal(t, []error{ErrClosed, ErrClosed}, errs)
	assert.False(t, q.Offer(`late`))

	// held values may still be taken
	vals, err := q.Get(rt.Main())
	require.NoError(t, err)
	assert.Equal(t, []value.Value{`held`}, vals)
	_, err = q.Get(rt.Main())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, q.Put(rt.Main(), `x`), ErrClosed)
}

func TestNewQueue_invalidSize(t *testing.T) {
	_, err := NewQueue(0)
	assert.ErrorIs(t, err, ErrQueueSize)
}
