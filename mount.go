// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package noctfs

import (
	"git.lukeshu.com/noctfs/lib/diskio"
	"git.lukeshu.com/noctfs/lib/nocterr"
)

// Mount reads and validates the boot sector of dev, returning a
// Filesystem handle on success. Fails with BadSignature if the
// filesystem_codename doesn't match, or IO on a read failure.
func Mount(dev diskio.Device) (*Filesystem, error) {
	if _, err := dev.Seek(0, diskio.SeekStart); err != nil {
		return nil, nocterr.New(nocterr.IO, "noctfs.Mount", err)
	}
	var raw [bootSectorSize]byte
	if _, err := dev.Read(raw[:]); err != nil {
		return nil, nocterr.New(nocterr.IO, "noctfs.Mount", err)
	}
	sb, err := decodeBootSector(raw)
	if err != nil {
		return nil, err
	}
	return newFilesystem(dev, sb), nil
}
