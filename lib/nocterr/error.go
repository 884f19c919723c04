// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package nocterr defines the error taxonomy shared by every layer of
// NoctFS, the way lib/binstruct/errors.go defines one small typed
// error per failure mode instead of returning bare fmt.Errorf values.
package nocterr

import (
	"errors"
	"fmt"
)

// Kind classifies a NoctFS error the way a caller is expected to
// react to it.
type Kind int

const (
	// IO is a device read/write/seek failure.
	IO Kind = iota
	// BadSignature is a mount of a device whose magic doesn't match.
	BadSignature
	// OutOfSpace is an allocator failing to satisfy a request.
	OutOfSpace
	// NotFound is a directory lookup that didn't find the requested entity.
	NotFound
	// InvalidArgument covers unsupported parameters and misuse, such
	// as an out-of-range block address or an unsupported block size.
	InvalidArgument
	// Corrupt is on-disk data that fails to parse or violates a
	// structural invariant (bad flag bits, a header_size that would
	// run past the end of the directory's byte stream, invalid UTF-8
	// in a name).
	Corrupt
)

func (k Kind) String() string {
	switch k {
	case IO:
		return "IO"
	case BadSignature:
		return "BadSignature"
	case OutOfSpace:
		return "OutOfSpace"
	case NotFound:
		return "NotFound"
	case InvalidArgument:
		return "InvalidArgument"
	case Corrupt:
		return "Corrupt"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a NoctFS-level error: a Kind for callers to switch on, the
// operation that failed, and (optionally) the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("noctfs: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("noctfs: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error. err may be nil when the failure has no
// underlying cause to wrap (e.g. BadSignature).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a NoctFS error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
