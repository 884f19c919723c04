// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package noctfs

import (
	"git.lukeshu.com/noctfs/lib/entity"
	"git.lukeshu.com/noctfs/lib/noctvol"
)

// ReadFile reads len(buf) bytes of e's content starting at offset,
// delegating to Chain I/O over e.StartBlock. A request range that
// runs past the end of the chain is silently truncated; the returned
// count reflects how much was actually copied.
func (fs *Filesystem) ReadFile(e entity.Entity, buf []byte, offset uint64) (int, error) {
	return fs.chainio.Read(e.StartBlock, buf, offset)
}

// WriteFile writes buf into e's content starting at offset, resizing
// e's chain to fit the new end-of-file if necessary, then updates the
// directory record in dirStart with the new size.
func (fs *Filesystem) WriteFile(dirStart noctvol.BlockAddr, e entity.Entity, buf []byte, offset uint64) (entity.Entity, error) {
	end := offset + uint64(len(buf))
	if err := fs.chainio.Resize(e.StartBlock, end); err != nil {
		return entity.Entity{}, err
	}
	if _, err := fs.chainio.Write(e.StartBlock, buf, offset); err != nil {
		return entity.Entity{}, err
	}

	updated := e
	updated.Size = end

	if err := fs.dir.OverwriteEntityHeader(dirStart, e, updated); err != nil {
		return entity.Entity{}, err
	}
	return updated, nil
}
