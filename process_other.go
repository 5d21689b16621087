// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build !unix

package coop

import (
	"os"
)

func signalName(*os.ProcessState) (string, bool) { return ``, false }
