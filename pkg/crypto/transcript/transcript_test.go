// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package transcript

import (
	"bytes"
	"crypto"
	"testing"
)

func TestCloneIndependence(t *testing.T) {
	h := New(crypto.SHA256)
	h.Write([]byte("client hello"))

	clone, ok := h.Clone()
	if !ok {
		t.Fatal("Clone not supported by crypto.SHA256 implementation")
	}
	if !bytes.Equal(h.Sum(), clone.Sum()) {
		t.Fatal("clone diverged from source before any further writes")
	}

	h.Write([]byte("server hello"))
	if bytes.Equal(h.Sum(), clone.Sum()) {
		t.Fatal("writes to source leaked into clone")
	}

	clone.Write([]byte("server hello"))
	if !bytes.Equal(h.Sum(), clone.Sum()) {
		t.Fatal("source and clone diverged after an identical write")
	}
}

func TestReplaceWithMessageHash(t *testing.T) {
	original := New(crypto.SHA256)
	original.Write([]byte("first client hello"))
	ch1Hash := original.Sum()

	replayed := New(crypto.SHA256)
	replayed.ReplaceWithMessageHash(ch1Hash)
	if replayed.Size() != 32 {
		t.Fatalf("unexpected digest size: %d", replayed.Size())
	}
}
