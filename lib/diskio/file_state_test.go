// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package diskio_test

import (
	"bytes"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"

	"git.lukeshu.com/noctfs/lib/diskio"
)

type byteReaderWithName struct {
	*bytes.Reader
	name string
}

func (r byteReaderWithName) Name() string { return r.name }
func (r byteReaderWithName) Close() error { return nil }
func (r byteReaderWithName) WriteAt([]byte, int64) (int, error) {
	panic("not implemented")
}

func FuzzStatefulReader(f *testing.F) {
	f.Fuzz(func(t *testing.T, content []byte) {
		t.Logf("content=%q", content)
		var file diskio.File[int64] = byteReaderWithName{
			Reader: bytes.NewReader(content),
			name:   t.Name(),
		}
		reader := diskio.NewStatefulFile(file)
		if err := iotest.TestReader(reader, content); err != nil {
			t.Error(err)
		}
	})
}

func TestStatefulFileWriteReadSeek(t *testing.T) {
	mem := diskio.NewMemFile(t.Name(), 16)
	dev := diskio.NewStatefulFile(mem)

	n, err := dev.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	pos, err := dev.Seek(0, diskio.SeekStart)
	require.NoError(t, err)
	require.Equal(t, int64(0), pos)

	buf := make([]byte, 5)
	n, err = dev.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))

	pos, err = dev.Seek(3, diskio.SeekCurrent)
	require.NoError(t, err)
	require.Equal(t, int64(8), pos)

	pos, err = dev.Seek(0, diskio.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, mem.Size(), pos)

	require.NoError(t, dev.Flush())
}

func TestStatefulFileWriteGrowsDevice(t *testing.T) {
	mem := diskio.NewMemFile(t.Name(), 4)
	dev := diskio.NewStatefulFile(mem)

	_, err := dev.Seek(2, diskio.SeekStart)
	require.NoError(t, err)
	_, err = dev.Write([]byte("XYZ"))
	require.NoError(t, err)
	require.Equal(t, int64(5), mem.Size())
}
