// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package chainmap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.lukeshu.com/noctfs/lib/chainmap"
	"git.lukeshu.com/noctfs/lib/diskio"
	"git.lukeshu.com/noctfs/lib/noctvol"
)

func newTestMap(t *testing.T, count uint32) *chainmap.Chainmap {
	t.Helper()
	mem := diskio.NewMemFile(t.Name(), int64(count)*8)
	dev := diskio.NewStatefulFile(mem)
	m := &chainmap.Chainmap{Dev: dev, Base: 0, Count: count}
	// Block 0 is reserved, the way Format reserves it on a real volume.
	require.NoError(t, m.SetNext(0, noctvol.End))
	return m
}

func TestAllocateContiguousFreeBlocks(t *testing.T) {
	m := newTestMap(t, 8)

	head, ok, err := m.Allocate(3)
	require.NoError(t, err)
	require.True(t, ok)

	blocks, err := m.Chain(head)
	require.NoError(t, err)
	require.Len(t, blocks, 3)
}

func TestAllocateFailsOutOfSpace(t *testing.T) {
	m := newTestMap(t, 4)

	_, _, err := m.Allocate(5)
	require.Error(t, err)
}

func TestAllocateZeroIsNoop(t *testing.T) {
	m := newTestMap(t, 4)

	head, ok, err := m.Allocate(0)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, noctvol.BlockAddr(0), head)
}

func TestFreeZeroesEveryBlock(t *testing.T) {
	m := newTestMap(t, 8)

	head, ok, err := m.Allocate(3)
	require.NoError(t, err)
	require.True(t, ok)
	blocks, err := m.Chain(head)
	require.NoError(t, err)

	require.NoError(t, m.Free(head))

	for _, b := range blocks {
		next, err := m.GetNext(b)
		require.NoError(t, err)
		require.Equal(t, noctvol.Free, next)
	}
}

func TestExtendAppendsBlocks(t *testing.T) {
	m := newTestMap(t, 8)

	head, ok, err := m.Allocate(2)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, m.Extend(head, 2))

	n, err := m.Len(head)
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestShrinkDropsTrailingBlocks(t *testing.T) {
	m := newTestMap(t, 8)

	head, ok, err := m.Allocate(4)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, m.Shrink(head, 2))

	n, err := m.Len(head)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestShrinkByFullLengthFreesChain(t *testing.T) {
	m := newTestMap(t, 8)

	head, ok, err := m.Allocate(3)
	require.NoError(t, err)
	require.True(t, ok)
	blocks, err := m.Chain(head)
	require.NoError(t, err)

	require.NoError(t, m.Shrink(head, len(blocks)))

	for _, b := range blocks {
		next, err := m.GetNext(b)
		require.NoError(t, err)
		require.Equal(t, noctvol.Free, next)
	}
}

func TestShrinkPastLengthIsIgnored(t *testing.T) {
	m := newTestMap(t, 8)

	head, ok, err := m.Allocate(2)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, m.Shrink(head, 10))

	n, err := m.Len(head)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestResizeGrowsAndShrinks(t *testing.T) {
	m := newTestMap(t, 8)

	head, ok, err := m.Allocate(2)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, m.Resize(head, 5))
	n, err := m.Len(head)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	require.NoError(t, m.Resize(head, 1))
	n, err = m.Len(head)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestAllocateBytesRoundsUp(t *testing.T) {
	m := newTestMap(t, 8)

	head, ok, err := m.AllocateBytes(1025, 512)
	require.NoError(t, err)
	require.True(t, ok)

	n, err := m.Len(head)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestGetNextOutOfRange(t *testing.T) {
	m := newTestMap(t, 4)

	_, err := m.GetNext(noctvol.BlockAddr(99))
	require.Error(t, err)
}

func TestSetNextOutOfRangeIsNoop(t *testing.T) {
	m := newTestMap(t, 4)

	require.NoError(t, m.SetNext(noctvol.BlockAddr(99), noctvol.End))
}
