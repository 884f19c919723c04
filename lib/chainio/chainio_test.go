// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package chainio_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.lukeshu.com/noctfs/lib/chainio"
	"git.lukeshu.com/noctfs/lib/chainmap"
	"git.lukeshu.com/noctfs/lib/diskio"
)

const testBlockSize = 16

func newTestChainIO(t *testing.T, blockCount uint32) *chainio.ChainIO {
	t.Helper()
	mapBytes := int64(blockCount) * 8
	dataBytes := int64(blockCount) * testBlockSize
	mem := diskio.NewMemFile(t.Name(), mapBytes+dataBytes)
	dev := diskio.NewStatefulFile(mem)
	m := &chainmap.Chainmap{Dev: dev, Base: 0, Count: blockCount}
	return &chainio.ChainIO{Dev: dev, Map: m, DataZone: mapBytes, BlockSize: testBlockSize}
}

func TestWriteReadRoundTrip(t *testing.T) {
	c := newTestChainIO(t, 8)

	head, ok, err := c.Map.Allocate(3)
	require.NoError(t, err)
	require.True(t, ok)

	data := []byte("Ninja-go!\n")
	n, err := c.Write(head, data, 10)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	buf := make([]byte, len(data))
	n, err = c.Read(head, buf, 10)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, buf)
}

func TestReadWriteSpansMultipleBlocks(t *testing.T) {
	c := newTestChainIO(t, 8)

	head, ok, err := c.Map.Allocate(3)
	require.NoError(t, err)
	require.True(t, ok)

	data := make([]byte, testBlockSize*2+4)
	for i := range data {
		data[i] = byte(i)
	}
	n, err := c.Write(head, data, 3)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	buf := make([]byte, len(data))
	n, err = c.Read(head, buf, 3)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, buf)
}

func TestReadPastChainIsTruncated(t *testing.T) {
	c := newTestChainIO(t, 8)

	head, ok, err := c.Map.Allocate(1)
	require.NoError(t, err)
	require.True(t, ok)

	buf := make([]byte, testBlockSize*3)
	n, err := c.Read(head, buf, 0)
	require.NoError(t, err)
	require.Equal(t, testBlockSize, n)
}

func TestSkipPastChainIsNoop(t *testing.T) {
	c := newTestChainIO(t, 8)

	head, ok, err := c.Map.Allocate(1)
	require.NoError(t, err)
	require.True(t, ok)

	buf := make([]byte, 4)
	n, err := c.Read(head, buf, uint64(testBlockSize*5))
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestResizeGrowsChainForWrite(t *testing.T) {
	c := newTestChainIO(t, 16)

	head, ok, err := c.Map.Allocate(1)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.Resize(head, testBlockSize*3))
	n, err := c.Map.Len(head)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	data := make([]byte, testBlockSize*3)
	for i := range data {
		data[i] = byte(i)
	}
	_, err = c.Write(head, data, 0)
	require.NoError(t, err)

	full, err := c.ReadFull(head)
	require.NoError(t, err)
	require.Equal(t, data, full)
}
