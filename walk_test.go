// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package noctfs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"git.lukeshu.com/noctfs"
)

func TestScanBlocksFindsNoProblemsOnAFreshFilesystem(t *testing.T) {
	dev := newDevice(t, 1<<20)
	fs, err := noctfs.Format(dev, noctfs.FormatOptions{SectorSize: 512, BlockSize: 512})
	require.NoError(t, err)

	root := fs.GetRootEntity()
	_, err = fs.CreateFile(root.StartBlock, "a")
	require.NoError(t, err)
	_, err = fs.CreateDirectory(root.StartBlock, "b")
	require.NoError(t, err)

	report, err := fs.ScanBlocks(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Leaked)
	require.Empty(t, report.CrossLinked)
	require.LessOrEqual(t, report.Allocated, report.TotalBlocks)
}

func TestFsckScanFlagIsAdditive(t *testing.T) {
	dev := newDevice(t, 1<<20)
	fs, err := noctfs.Format(dev, noctfs.FormatOptions{SectorSize: 512, BlockSize: 512})
	require.NoError(t, err)

	fsckReport, err := fs.Fsck()
	require.NoError(t, err)
	require.Empty(t, fsckReport.Problems)

	scanReport, err := fs.ScanBlocks(context.Background())
	require.NoError(t, err)
	require.Empty(t, scanReport.Leaked)
}
