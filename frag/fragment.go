// Package frag implements the reliable fragmenter/defragmenter of
// spec.md §4.8: splitting an outbound wire message into transport-MTU
// sized pieces tagged `"?OTR|" sender "|" receiver "," K "," N ","
// piece ","`, and reassembling them on the way in. One Defragmenter
// context belongs to exactly one (sender_tag, receiver_tag) pair, the
// way the teacher keeps one ratchet state per peer.
package frag

import (
	"fmt"

	"otrng/otrerr"
	"otrng/wire"
)

// headerLen is the fixed overhead of one piece's framing, not
// counting the payload: "?OTR|" + 8 hex + "|" + 8 hex + "," + 5 hex +
// "," + 5 hex + "," + "," = 5+8+1+8+1+5+1+5+2.
const headerLen = 5 + 8 + 1 + 8 + 1 + 5 + 1 + 5 + 2

// MaxPieces is the largest fragment count the wire format's 5-hex K/N
// fields can express (spec.md §4.8: "1 ≤ K ≤ N ≤ 0xFFFF").
const MaxPieces = 0xFFFF

// Fragment splits message into transport-MTU-sized pieces addressed
// to the given instance tags. If message already fits in one piece
// under mms, Fragment still returns the standard N=1 framing; the
// caller doesn't need to special-case small messages.
func Fragment(mms int, sender, receiver wire.InstanceTag, message []byte) ([]string, error) {
	chunkSize := mms - headerLen
	if chunkSize <= 0 {
		return nil, otrerr.Fatal
	}

	total := (len(message)-1)/chunkSize + 1
	if total > MaxPieces {
		return nil, otrerr.Fatal
	}

	pieces := make([]string, 0, total)
	for k := 1; k <= total; k++ {
		start := (k - 1) * chunkSize
		end := start + chunkSize
		if end > len(message) {
			end = len(message)
		}
		piece := fmt.Sprintf("?OTR|%08x|%08x,%05x,%05x,%s,", uint32(sender), uint32(receiver), k, total, message[start:end])
		pieces = append(pieces, piece)
	}
	return pieces, nil
}
