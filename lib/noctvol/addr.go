// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package noctvol defines the block-address space of a NoctFS data
// zone, the way lib/btrfsvol defines btrfs's physical/logical address
// spaces: a distinct numeric type with its own Format method, rather
// than passing raw uint64s around.
package noctvol

import (
	"fmt"

	"git.lukeshu.com/noctfs/lib/fmtutil"
)

// BlockAddr names a block within the data zone, or one of the two
// sentinel values Free and End.
type BlockAddr uint64

const (
	// Free marks a chainmap entry as not part of any chain.
	Free BlockAddr = 0
	// End terminates a chain; it is also stored at Chainmap[0],
	// permanently, since block 0 is reserved.
	End BlockAddr = 0xFFFF_FFFF_FFFF_FFFF
)

func (a BlockAddr) String() string {
	switch a {
	case Free:
		return "free"
	case End:
		return "end"
	default:
		return fmt.Sprintf("%#x", uint64(a))
	}
}

func (a BlockAddr) Format(f fmt.State, verb rune) {
	fmtutil.FormatHexStringer(a, uint64(a), f, verb)
}

// IsReal reports whether a names an actual block in the data zone,
// as opposed to one of the two sentinels.
func (a BlockAddr) IsReal() bool {
	return a != Free && a != End
}
