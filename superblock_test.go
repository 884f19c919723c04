// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package noctfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.lukeshu.com/noctfs/lib/nocterr"
)

func TestBootSectorPreservesBootCodeAroundHeader(t *testing.T) {
	var template [bootSectorSize]byte
	for i := range template {
		template[i] = byte(i)
	}

	sb := Superblock{
		SectorSize:      512,
		BlockSize:       4096,
		BlockMapCount:   10,
		FirstRootEntity: 1,
	}

	raw, err := encodeBootSector(sb, template)
	require.NoError(t, err)

	assert.Equal(t, template[:headerOffset], raw[:headerOffset])
	assert.Equal(t, template[headerOffset+headerSize:], raw[headerOffset+headerSize:])

	got, err := decodeBootSector(raw)
	require.NoError(t, err)
	assert.Equal(t, sb, got)
}

func TestDecodeBootSectorRejectsBadMagic(t *testing.T) {
	var raw [bootSectorSize]byte
	_, err := decodeBootSector(raw)
	require.Error(t, err)
	assert.True(t, nocterr.Is(err, nocterr.BadSignature))
}
