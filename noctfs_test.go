// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package noctfs_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"git.lukeshu.com/noctfs"
	"git.lukeshu.com/noctfs/lib/diskio"
	"git.lukeshu.com/noctfs/lib/nocterr"
	"git.lukeshu.com/noctfs/lib/noctvol"
)

func newDevice(t *testing.T, size int64) diskio.Device {
	t.Helper()
	mem := diskio.NewMemFile(t.Name(), size)
	return diskio.NewStatefulFile(mem)
}

// TestFormatProducesScenarioS1Layout checks the literal byte layout
// from a 1MiB device formatted with sector_size=512, block_size=512.
func TestFormatProducesScenarioS1Layout(t *testing.T) {
	dev := newDevice(t, 1<<20)

	_, err := noctfs.Format(dev, noctfs.FormatOptions{SectorSize: 512, BlockSize: 512})
	require.NoError(t, err)

	_, err = dev.Seek(0, diskio.SeekStart)
	require.NoError(t, err)
	var boot [512]byte
	_, err = dev.Read(boot[:])
	require.NoError(t, err)

	require.Equal(t, []byte("NoctFS__"), boot[3:11])
	require.Equal(t, []byte{0x00, 0x02}, boot[11:13])
	require.Equal(t, []byte{0x00, 0x02, 0x00, 0x00}, boot[13:17])
	require.Equal(t, []byte{0x00, 0x08, 0x00, 0x00}, boot[17:21])
	require.Equal(t, uint64(1), readU64(boot[21:29]))

	entry0 := readChainEntry(t, dev, 512, 0)
	entry1 := readChainEntry(t, dev, 512, 1)
	require.Equal(t, uint64(noctvol.End), entry0)
	require.Equal(t, uint64(noctvol.End), entry1)
}

func readU64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func readChainEntry(t *testing.T, dev diskio.Device, base int64, idx int) uint64 {
	t.Helper()
	_, err := dev.Seek(base+int64(idx)*8, diskio.SeekStart)
	require.NoError(t, err)
	var buf [8]byte
	_, err = dev.Read(buf[:])
	require.NoError(t, err)
	return readU64(buf[:])
}

// TestMountRejectsUnformattedDevice covers P3: mounting a zeroed
// device fails with BadSignature.
func TestMountRejectsUnformattedDevice(t *testing.T) {
	dev := newDevice(t, 1<<16)

	_, err := noctfs.Mount(dev)
	require.Error(t, err)
	require.True(t, nocterr.Is(err, nocterr.BadSignature))
}

func TestFormatThenMountSucceeds(t *testing.T) {
	dev := newDevice(t, 1<<20)

	_, err := noctfs.Format(dev, noctfs.FormatOptions{})
	require.NoError(t, err)

	fs, err := noctfs.Mount(dev)
	require.NoError(t, err)
	require.Equal(t, noctfs.DefaultBlockSize, fs.Superblock().BlockSize)
}

// TestRootDirectoryHasDotAndDotDot covers S2.
func TestRootDirectoryHasDotAndDotDot(t *testing.T) {
	dev := newDevice(t, 1<<20)
	fs, err := noctfs.Format(dev, noctfs.FormatOptions{})
	require.NoError(t, err)

	root := fs.GetRootEntity()
	entries, err := fs.ListDirectory(root.StartBlock)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, ".", entries[0].Name)
	require.Equal(t, noctvol.BlockAddr(1), entries[0].StartBlock)
	require.Equal(t, "..", entries[1].Name)
	require.Equal(t, noctvol.BlockAddr(1), entries[1].StartBlock)
}

// TestCreateWriteReadFile covers S3.
func TestCreateWriteReadFile(t *testing.T) {
	dev := newDevice(t, 1<<20)
	fs, err := noctfs.Format(dev, noctfs.FormatOptions{SectorSize: 512, BlockSize: 512})
	require.NoError(t, err)
	root := fs.GetRootEntity()

	e, err := fs.CreateFile(root.StartBlock, "Test.txt")
	require.NoError(t, err)
	require.Equal(t, noctvol.BlockAddr(2), e.StartBlock)
	require.Equal(t, uint64(0), e.Size)

	updated, err := fs.WriteFile(root.StartBlock, e, []byte("Ninja-go!\n"), 10)
	require.NoError(t, err)
	require.Equal(t, uint64(20), updated.Size)

	buf := make([]byte, 32)
	n, err := fs.ReadFile(updated, buf, 10)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 10)
	require.Equal(t, "Ninja-go!\n", string(buf[:10]))

	stored, found, err := fs.FindEntityByStartBlock(root.StartBlock, e.StartBlock)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(20), stored.Size)
}

// TestFiftySubdirectories covers S5.
func TestFiftySubdirectories(t *testing.T) {
	dev := newDevice(t, 4<<20)
	fs, err := noctfs.Format(dev, noctfs.FormatOptions{})
	require.NoError(t, err)
	root := fs.GetRootEntity()

	for i := 0; i < 50; i++ {
		_, err := fs.CreateDirectory(root.StartBlock, fmt.Sprintf("dir-%07d", i))
		require.NoError(t, err)
	}

	entries, err := fs.ListDirectory(root.StartBlock)
	require.NoError(t, err)
	require.Len(t, entries, 52)

	for _, e := range entries[2:] {
		childEntries, err := fs.ListDirectory(e.StartBlock)
		require.NoError(t, err)
		require.Len(t, childEntries, 2)
		require.Equal(t, root.StartBlock, childEntries[1].StartBlock)
	}
}

// TestLargeFileWriteReadRoundTrip covers S6: write past 1MiB with a
// small block size, verify length and both the original and a later
// overlapping write read back correctly.
func TestLargeFileWriteReadRoundTrip(t *testing.T) {
	dev := newDevice(t, 3<<20)
	fs, err := noctfs.Format(dev, noctfs.FormatOptions{BlockSize: 4096})
	require.NoError(t, err)
	root := fs.GetRootEntity()

	e, err := fs.CreateFile(root.StartBlock, "big.bin")
	require.NoError(t, err)

	size := 1<<20 + 37
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	updated, err := fs.WriteFile(root.StartBlock, e, data, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(size), updated.Size)

	buf := make([]byte, size)
	n, err := fs.ReadFile(updated, buf, 0)
	require.NoError(t, err)
	require.Equal(t, size, n)
	require.Equal(t, data, buf)

	patch := make([]byte, 100)
	for i := range patch {
		patch[i] = byte(0xAA)
	}
	updated, err = fs.WriteFile(root.StartBlock, updated, patch, 1_048_500)
	require.NoError(t, err)

	tail := make([]byte, 100)
	_, err = fs.ReadFile(updated, tail, 1_048_500)
	require.NoError(t, err)
	require.Equal(t, patch, tail)

	head := make([]byte, 1000)
	_, err = fs.ReadFile(updated, head, 0)
	require.NoError(t, err)
	require.Equal(t, data[:1000], head)
}

// TestDeleteFileRestoresChainmap covers P7.
func TestDeleteFileRestoresChainmap(t *testing.T) {
	dev := newDevice(t, 1<<20)
	fs, err := noctfs.Format(dev, noctfs.FormatOptions{SectorSize: 512, BlockSize: 512})
	require.NoError(t, err)
	root := fs.GetRootEntity()

	before := snapshotChainmap(t, dev, 512, 2048)

	e, err := fs.CreateFile(root.StartBlock, "transient.txt")
	require.NoError(t, err)
	require.NoError(t, fs.DeleteFile(root.StartBlock, e))

	after := snapshotChainmap(t, dev, 512, 2048)
	require.Equal(t, before, after)

	entries, err := fs.ListDirectory(root.StartBlock)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func snapshotChainmap(t *testing.T, dev diskio.Device, base int64, count int) []uint64 {
	t.Helper()
	out := make([]uint64, count)
	for i := 0; i < count; i++ {
		out[i] = readChainEntry(t, dev, base, i)
	}
	return out
}
