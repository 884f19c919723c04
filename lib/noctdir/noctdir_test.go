// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package noctdir_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"git.lukeshu.com/noctfs/lib/chainio"
	"git.lukeshu.com/noctfs/lib/chainmap"
	"git.lukeshu.com/noctfs/lib/diskio"
	"git.lukeshu.com/noctfs/lib/noctdir"
	"git.lukeshu.com/noctfs/lib/noctvol"
)

const testBlockSize = 64

func newTestDir(t *testing.T, blockCount uint32) *noctdir.Dir {
	t.Helper()
	mapBytes := int64(blockCount) * 8
	dataBytes := int64(blockCount) * testBlockSize
	mem := diskio.NewMemFile(t.Name(), mapBytes+dataBytes)
	dev := diskio.NewStatefulFile(mem)
	m := &chainmap.Chainmap{Dev: dev, Base: 0, Count: blockCount}
	require.NoError(t, m.SetNext(0, noctvol.End))
	cio := &chainio.ChainIO{Dev: dev, Map: m, BlockSize: testBlockSize, DataZone: mapBytes}
	return &noctdir.Dir{IO: cio}
}

func newRootBlock(t *testing.T, d *noctdir.Dir) noctvol.BlockAddr {
	t.Helper()
	root, ok, err := d.IO.Map.Allocate(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, d.SeedSelfEntries(root, root))
	return root
}

func TestSeedSelfEntriesListsDotAndDotDot(t *testing.T) {
	d := newTestDir(t, 32)
	root := newRootBlock(t, d)

	entries, err := d.List(root)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, ".", entries[0].Name)
	require.Equal(t, root, entries[0].StartBlock)
	require.Equal(t, "..", entries[1].Name)
	require.Equal(t, root, entries[1].StartBlock)
}

func TestCreateFileAppearsInListing(t *testing.T) {
	d := newTestDir(t, 32)
	root := newRootBlock(t, d)

	e, err := d.CreateFile(root, "Test.txt")
	require.NoError(t, err)
	require.Equal(t, uint64(0), e.Size)

	entries, err := d.List(root)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "Test.txt", entries[2].Name)
}

func TestCreateDirectorySeedsChild(t *testing.T) {
	d := newTestDir(t, 32)
	root := newRootBlock(t, d)

	child, err := d.CreateDirectory(root, "sub")
	require.NoError(t, err)
	require.True(t, child.IsDirectory())

	childEntries, err := d.List(child.StartBlock)
	require.NoError(t, err)
	require.Len(t, childEntries, 2)
	require.Equal(t, child.StartBlock, childEntries[0].StartBlock)
	require.Equal(t, root, childEntries[1].StartBlock)
}

func TestDeleteFileRemovesRecordAndFreesChain(t *testing.T) {
	d := newTestDir(t, 32)
	root := newRootBlock(t, d)

	e, err := d.CreateFile(root, "gone.txt")
	require.NoError(t, err)

	require.NoError(t, d.DeleteFile(root, e))

	entries, err := d.List(root)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	next, err := d.IO.Map.GetNext(e.StartBlock)
	require.NoError(t, err)
	require.Equal(t, noctvol.Free, next)
}

func TestDeleteFileOnDirectoryIsNoop(t *testing.T) {
	d := newTestDir(t, 32)
	root := newRootBlock(t, d)

	child, err := d.CreateDirectory(root, "sub")
	require.NoError(t, err)

	require.NoError(t, d.DeleteFile(root, child))

	entries, err := d.List(root)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestManySubdirectoriesGrowChainAndAllListed(t *testing.T) {
	d := newTestDir(t, 256)
	root := newRootBlock(t, d)

	for i := 0; i < 50; i++ {
		_, err := d.CreateDirectory(root, fmt.Sprintf("dir%08d", i))
		require.NoError(t, err)
	}

	entries, err := d.List(root)
	require.NoError(t, err)
	require.Len(t, entries, 52)

	seen := make(map[string]bool)
	for _, e := range entries[2:] {
		seen[e.Name] = true
		childEntries, err := d.List(e.StartBlock)
		require.NoError(t, err)
		require.Len(t, childEntries, 2)
		require.Equal(t, root, childEntries[1].StartBlock)
	}
	require.Len(t, seen, 50)
}

func TestOverwriteEntityHeaderUpdatesSize(t *testing.T) {
	d := newTestDir(t, 32)
	root := newRootBlock(t, d)

	e, err := d.CreateFile(root, "grow.txt")
	require.NoError(t, err)

	updated := e
	updated.Size = 42
	require.NoError(t, d.OverwriteEntityHeader(root, e, updated))

	got, _, found, err := d.FindEntityByStartBlock(root, e.StartBlock)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(42), got.Size)
}

func TestFindEntityByRawEqualityStopsMatchingAfterUpdate(t *testing.T) {
	d := newTestDir(t, 32)
	root := newRootBlock(t, d)

	e, err := d.CreateFile(root, "shifts.txt")
	require.NoError(t, err)

	_, found, err := d.FindEntityByRawEquality(root, e)
	require.NoError(t, err)
	require.True(t, found)

	updated := e
	updated.Size = 7
	require.NoError(t, d.OverwriteEntityHeader(root, e, updated))

	_, found, err = d.FindEntityByRawEquality(root, e)
	require.NoError(t, err)
	require.False(t, found, "raw-equality lookup must go stale once a field changes, which is why start_block lookups are used internally")
}

func TestFindFreeSlotGrowsChainWhenFull(t *testing.T) {
	d := newTestDir(t, 256)
	root := newRootBlock(t, d)

	before, err := d.IO.Map.Len(root)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := d.CreateFile(root, fmt.Sprintf("f%03d.txt", i))
		require.NoError(t, err)
	}

	after, err := d.IO.Map.Len(root)
	require.NoError(t, err)
	require.Greater(t, after, before)

	entries, err := d.List(root)
	require.NoError(t, err)
	require.Len(t, entries, 12)
}
