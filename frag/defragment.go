package frag

import (
	"strconv"
	"strings"

	"otrng/otrerr"
	"otrng/wire"
)

// Status is the reassembly state of one Defragmenter, per spec.md
// §4.8's fragmentation-context data model.
type Status int

const (
	StatusUnfragmented Status = iota
	StatusIncomplete
	StatusComplete
)

// Defragmenter reassembles the pieces of one (sender_tag,
// receiver_tag) pair. A conversation owns exactly one, per spec.md
// §3's lifecycle note; pieces from a different tag pair belong to a
// different Defragmenter and never interact with this one.
type Defragmenter struct {
	sender, receiver wire.InstanceTag
	total            int
	lastSeen         int
	buf              []byte
	status           Status
}

// New returns an idle Defragmenter scoped to one tag pair.
func New(sender, receiver wire.InstanceTag) *Defragmenter {
	return &Defragmenter{sender: sender, receiver: receiver, status: StatusUnfragmented}
}

// Status reports the current reassembly state.
func (d *Defragmenter) Status() Status { return d.status }

// Feed processes one inbound string, which may be a complete
// unfragmented message (no "?OTR|" prefix) or one piece of a
// fragmented message. It returns the reassembled payload and true
// once the final piece lands; otherwise it returns (nil, false) while
// more pieces are awaited.
func (d *Defragmenter) Feed(message string) ([]byte, bool, error) {
	if !strings.HasPrefix(message, "?OTR|") {
		d.reset()
		d.status = StatusUnfragmented
		return []byte(message), true, nil
	}

	sender, receiver, k, n, piece, err := parsePiece(message)
	if err != nil {
		d.reset()
		return nil, false, err
	}
	if sender != d.sender || receiver != d.receiver {
		return nil, false, otrerr.Malformed
	}

	d.status = StatusIncomplete

	switch {
	case k == 1:
		// Q1: the reassembly accumulator resets to a freshly allocated
		// empty buffer on the first piece of a run, never a retained one.
		d.buf = append([]byte{}, piece...)
		d.total = n
		d.lastSeen = 1
	case n == d.total && k == d.lastSeen+1:
		d.buf = append(d.buf, piece...)
		d.lastSeen = k
	default:
		d.reset()
		return nil, false, otrerr.Malformed
	}

	if d.total > 0 && d.lastSeen == d.total {
		d.status = StatusComplete
		out := d.buf
		d.reset()
		return out, true, nil
	}
	return nil, false, nil
}

func (d *Defragmenter) reset() {
	// Q1: always a fresh empty buffer, never a shared/retained one.
	d.buf = []byte{}
	d.total = 0
	d.lastSeen = 0
	d.status = StatusUnfragmented
}

// parsePiece splits one "?OTR|sender|receiver,K,N,piece," frame.
// Q2: the trailing comma is required; its absence is Malformed.
func parsePiece(message string) (sender, receiver wire.InstanceTag, k, n int, piece string, err error) {
	rest := strings.TrimPrefix(message, "?OTR|")

	barIdx := strings.IndexByte(rest, '|')
	if barIdx == -1 {
		return 0, 0, 0, 0, "", otrerr.Malformed
	}
	senderHex, rest := rest[:barIdx], rest[barIdx+1:]

	fields := strings.SplitN(rest, ",", 4)
	if len(fields) != 4 {
		return 0, 0, 0, 0, "", otrerr.Malformed
	}
	receiverHex, kHex, nHex, tail := fields[0], fields[1], fields[2], fields[3]

	if !strings.HasSuffix(tail, ",") {
		return 0, 0, 0, 0, "", otrerr.Malformed
	}
	piece = tail[:len(tail)-1]

	senderVal, err1 := strconv.ParseUint(senderHex, 16, 32)
	receiverVal, err2 := strconv.ParseUint(receiverHex, 16, 32)
	kVal, err3 := strconv.ParseUint(kHex, 16, 32)
	nVal, err4 := strconv.ParseUint(nHex, 16, 32)
	if len(senderHex) != 8 || len(receiverHex) != 8 || len(kHex) != 5 || len(nHex) != 5 {
		return 0, 0, 0, 0, "", otrerr.Malformed
	}
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return 0, 0, 0, 0, "", otrerr.Malformed
	}
	if kVal < 1 || kVal > nVal || nVal > MaxPieces {
		return 0, 0, 0, 0, "", otrerr.Malformed
	}

	return wire.InstanceTag(senderVal), wire.InstanceTag(receiverVal), int(kVal), int(nVal), piece, nil
}
