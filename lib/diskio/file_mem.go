// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package diskio

import "io"

// MemFile is an in-memory File[int64], standing in for a real block
// device in tests. Writes past the current end grow the buffer, the
// way a sparse regular file would; there is no sparseness tracking,
// NoctFS never relies on reading back zeros from an unwritten gap
// without having formatted the whole device first.
type MemFile struct {
	name string
	buf  []byte
}

var _ File[int64] = (*MemFile)(nil)

// NewMemFile returns a MemFile pre-sized to size bytes, all zero.
func NewMemFile(name string, size int64) *MemFile {
	return &MemFile{name: name, buf: make([]byte, size)}
}

func (f *MemFile) Name() string { return f.name }
func (f *MemFile) Size() int64  { return int64(len(f.buf)) }
func (f *MemFile) Close() error { return nil }

func (f *MemFile) ReadAt(dat []byte, off int64) (int, error) {
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if off >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(dat, f.buf[off:])
	if n < len(dat) {
		return n, io.EOF
	}
	return n, nil
}

func (f *MemFile) WriteAt(dat []byte, off int64) (int, error) {
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	end := off + int64(len(dat))
	if end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	n := copy(f.buf[off:end], dat)
	return n, nil
}
