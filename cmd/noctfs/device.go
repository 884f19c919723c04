// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"
	"strings"

	"git.lukeshu.com/noctfs"
	"git.lukeshu.com/noctfs/lib/diskio"
	"git.lukeshu.com/noctfs/lib/entity"
	"git.lukeshu.com/noctfs/lib/noctvol"
)

func openDevice(path string, flag int) (diskio.Device, func() error, error) {
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, nil, err
	}
	osFile := &diskio.OSFile[int64]{File: f}
	return diskio.NewStatefulFile(osFile), f.Close, nil
}

func mountDevice(path string) (*noctfs.Filesystem, func() error, error) {
	dev, closeFn, err := openDevice(path, os.O_RDWR)
	if err != nil {
		return nil, nil, err
	}
	fs, err := noctfs.Mount(dev)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return fs, closeFn, nil
}

// resolvePath walks a "/"-separated path from the filesystem root,
// returning the resolved entity and the start_block of its containing
// directory (the root itself has no container, so the root's
// containing "directory" is reported as the root's own start_block,
// mirroring the root entity's synthetic "." record).
func resolvePath(fs *noctfs.Filesystem, path string) (e entity.Entity, parentStart noctvol.BlockAddr, err error) {
	root := fs.GetRootEntity()
	cur := root
	parent := root.StartBlock

	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		entries, err := fs.ListDirectory(cur.StartBlock)
		if err != nil {
			return entity.Entity{}, 0, err
		}
		found := false
		for _, child := range entries {
			if child.Name == part {
				parent = cur.StartBlock
				cur = child
				found = true
				break
			}
		}
		if !found {
			return entity.Entity{}, 0, fmt.Errorf("%s: no such file or directory", path)
		}
	}
	return cur, parent, nil
}
