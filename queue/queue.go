// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package queue implements an intrusive, doubly-linked FIFO queue.
//
// Nodes are embedded in the structs they link, so linking and unlinking
// never allocate. A node belongs to at most one [List] at a time: pushing a
// node that is already linked panics, and [Node.Remove] is idempotent, so a
// double remove is harmless.
//
// The zero value of both [List] and [Node] is ready to use.
//
// Lists are NOT safe for concurrent use.
package queue

import (
	"iter"
)

type (
	// Node is an intrusive list link. Value is a back-pointer to the
	// struct the node is embedded in, set via [Node.Init] or directly.
	Node[T any] struct {
		next  *Node[T]
		prev  *Node[T]
		list  *List[T]
		Value T
	}

	// List is the head of an intrusive queue.
	List[T any] struct {
		root Node[T]
		len  int
	}
)

// Init sets the node's back-pointer, and returns the node.
// It panics if the node is linked.
func (n *Node[T]) Init(value T) *Node[T] {
	if n.list != nil {
		panic(`queue: init of linked node`)
	}
	n.next = nil
	n.prev = nil
	n.Value = value
	return n
}

// Linked returns true if the node is currently in a list.
func (n *Node[T]) Linked() bool {
	return n.list != nil
}

// List returns the list the node is linked into, or nil.
func (n *Node[T]) List() *List[T] {
	return n.list
}

// Remove unlinks the node from whichever list holds it, returning false if
// it was not linked.
func (n *Node[T]) Remove() bool {
	if n.list == nil {
		return false
	}
	n.list.remove(n)
	return true
}

// Init empties the list. Any nodes still linked are detached.
func (l *List[T]) Init() *List[T] {
	for n := l.root.next; n != nil && n != &l.root; {
		next := n.next
		n.next, n.prev, n.list = nil, nil, nil
		n = next
	}
	l.root.next = &l.root
	l.root.prev = &l.root
	l.len = 0
	return l
}

func (l *List[T]) lazyInit() {
	if l.root.next == nil {
		l.root.next = &l.root
		l.root.prev = &l.root
	}
}

// Len returns the number of linked nodes.
func (l *List[T]) Len() int { return l.len }

// Empty returns true if the list has no nodes.
func (l *List[T]) Empty() bool { return l.len == 0 }

// Front returns the head node, or nil.
func (l *List[T]) Front() *Node[T] {
	if l.len == 0 {
		return nil
	}
	return l.root.next
}

// Back returns the tail node, or nil.
func (l *List[T]) Back() *Node[T] {
	if l.len == 0 {
		return nil
	}
	return l.root.prev
}

// PushBack links n at the tail.
func (l *List[T]) PushBack(n *Node[T]) {
	l.lazyInit()
	l.insert(n, l.root.prev)
}

// PushFront links n at the head.
func (l *List[T]) PushFront(n *Node[T]) {
	l.lazyInit()
	l.insert(n, &l.root)
}

// PopFront unlinks and returns the head node, or nil if empty.
func (l *List[T]) PopFront() *Node[T] {
	n := l.Front()
	if n != nil {
		l.remove(n)
	}
	return n
}

// Remove unlinks n, if it is linked into l, returning true if it was.
func (l *List[T]) Remove(n *Node[T]) bool {
	if n.list != l {
		return false
	}
	l.remove(n)
	return true
}

// All iterates values from head to tail. The node currently yielded may be
// removed during iteration.
func (l *List[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		if l.len == 0 {
			return
		}
		for n := l.root.next; n != &l.root; {
			next := n.next
			if !yield(n.Value) {
				return
			}
			n = next
		}
	}
}

func (l *List[T]) insert(n, at *Node[T]) {
	if n.list != nil {
		panic(`queue: node already linked`)
	}
	n.prev = at
	n.next = at.next
	at.next.prev = n
	at.next = n
	n.list = l
	l.len++
}

func (l *List[T]) remove(n *Node[T]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.next = nil
	n.prev = nil
	n.list = nil
	l.len--
}
