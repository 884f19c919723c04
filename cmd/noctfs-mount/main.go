// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Command noctfs-mount mounts a NoctFS image read-write over FUSE, the
// way btrfs-mount mounts a btrfs image, but without the subvolume
// machinery NoctFS doesn't have.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/sirupsen/logrus"

	"git.lukeshu.com/noctfs"
	"git.lukeshu.com/noctfs/lib/diskio"
)

func main() {
	ctx := context.Background()
	logger := logrus.New()
	ctx = dlog.WithLogger(ctx, dlog.WrapLogrus(logger))

	grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
		EnableSignalHandling: true,
	})
	grp.Go("main", func(ctx context.Context) error {
		if len(os.Args) != 3 {
			return fmt.Errorf("usage: %s IMAGE MOUNTPOINT", os.Args[0])
		}
		return Main(ctx, os.Args[1], os.Args[2])
	})
	if err := grp.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "%v: error: %v\n", os.Args[0], err)
		os.Exit(1)
	}
}

// Main opens imgfilename read-write, mounts it at mountpoint, and
// blocks until the mount is torn down (either by unmount(8) or by ctx
// being cancelled).
func Main(ctx context.Context, imgfilename, mountpoint string) (err error) {
	maybeSetErr := func(_err error) {
		if _err != nil && err == nil {
			err = _err
		}
	}

	f, ferr := os.OpenFile(imgfilename, os.O_RDWR, 0o644)
	if ferr != nil {
		return ferr
	}
	defer func() {
		maybeSetErr(f.Close())
	}()

	dev := diskio.NewStatefulFile(&diskio.OSFile[int64]{File: f})
	fs, err := noctfs.Mount(dev)
	if err != nil {
		return err
	}

	deviceName := imgfilename
	if abs, aerr := filepath.Abs(imgfilename); aerr == nil {
		deviceName = abs
	}

	srv := &noctFS{
		FS:         fs,
		DeviceName: deviceName,
		Mountpoint: mountpoint,
	}
	return srv.Run(ctx)
}
