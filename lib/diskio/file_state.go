// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package diskio

import "io"

// Whence selects the reference point for Device.Seek, mirroring the
// io.Seek* constants without committing callers to the io package's
// int-typed whence.
type Whence int

const (
	SeekStart Whence = iota
	SeekCurrent
	SeekEnd
)

// Device is the byte-addressable stream the rest of NoctFS is built
// on: read/write/seek at a single cursor, plus a flush for whatever
// durability the host offers. It is the only I/O primitive any layer
// above it is allowed to use.
//
// A Read or Write that returns less than len(p) is retried internally
// until it completes or returns an error; callers never see a short
// count.
type Device interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Seek(offset int64, whence Whence) (int64, error)
	Flush() error
}

type syncer interface {
	Sync() error
}

// statefulFile adapts a File[int64] (addressed ReadAt/WriteAt) into a
// Device (cursor-addressed Read/Write/Seek), the way a real block
// device is usually exposed to programs as a stateful file descriptor
// even though the underlying medium is randomly addressable.
type statefulFile struct {
	inner File[int64]
	pos   int64
}

var (
	_ File[int64] = (*statefulFile)(nil)
	_ Device      = (*statefulFile)(nil)
)

// NewStatefulFile wraps a File[int64] with a seek cursor, turning it
// into a Device.
func NewStatefulFile(file File[int64]) *statefulFile {
	return &statefulFile{inner: file}
}

func (sf *statefulFile) Name() string                              { return sf.inner.Name() }
func (sf *statefulFile) Size() int64                                { return sf.inner.Size() }
func (sf *statefulFile) Close() error                               { return sf.inner.Close() }
func (sf *statefulFile) ReadAt(dat []byte, off int64) (int, error)  { return sf.inner.ReadAt(dat, off) }
func (sf *statefulFile) WriteAt(dat []byte, off int64) (int, error) { return sf.inner.WriteAt(dat, off) }

// Read reads len(p) bytes starting at the cursor, retrying internally
// on short reads, and advances the cursor by the amount read.
func (sf *statefulFile) Read(p []byte) (n int, err error) {
	for n < len(p) {
		nn, err := sf.inner.ReadAt(p[n:], sf.pos+int64(n))
		n += nn
		if err != nil {
			sf.pos += int64(n)
			return n, err
		}
		if nn == 0 {
			sf.pos += int64(n)
			return n, io.ErrNoProgress
		}
	}
	sf.pos += int64(n)
	return n, nil
}

func (sf *statefulFile) ReadByte() (byte, error) {
	var dat [1]byte
	_, err := sf.Read(dat[:])
	return dat[0], err
}

// Write writes len(p) bytes starting at the cursor, retrying
// internally on short writes, and advances the cursor by the amount
// written.
func (sf *statefulFile) Write(p []byte) (n int, err error) {
	for n < len(p) {
		nn, err := sf.inner.WriteAt(p[n:], sf.pos+int64(n))
		n += nn
		if err != nil {
			sf.pos += int64(n)
			return n, err
		}
		if nn == 0 {
			sf.pos += int64(n)
			return n, io.ErrNoProgress
		}
	}
	sf.pos += int64(n)
	return n, nil
}

func (sf *statefulFile) Seek(offset int64, whence Whence) (int64, error) {
	var base int64
	switch whence {
	case SeekStart:
		base = 0
	case SeekCurrent:
		base = sf.pos
	case SeekEnd:
		base = sf.inner.Size()
	default:
		return sf.pos, io.ErrUnexpectedEOF
	}
	pos := base + offset
	if pos < 0 {
		return sf.pos, io.ErrUnexpectedEOF
	}
	sf.pos = pos
	return sf.pos, nil
}

// Flush syncs the underlying file if it supports it; otherwise it is
// a no-op (NoctFS has no write-back cache of its own to flush).
func (sf *statefulFile) Flush() error {
	if s, ok := sf.inner.(syncer); ok {
		return s.Sync()
	}
	return nil
}
