package conversation

import "strings"

// MessageKind is the result of classifying one inbound string, probed
// in the fixed order spec.md §4.9 gives.
type MessageKind int

const (
	KindFragment MessageKind = iota
	KindEncoded
	KindQuery
	KindWhitespaceTagged
	KindPlaintext
)

// whitespaceBase is the 16-byte base tag every whitespace-tagged
// message starts with, followed by one 8-byte tag per advertised
// version.
var whitespaceBase = []byte{0x20, 0x09, 0x20, 0x20, 0x09, 0x09, 0x09, 0x09, 0x20, 0x09, 0x20, 0x09, 0x20, 0x09, 0x20, 0x20}

var whitespaceTagV3 = []byte{0x20, 0x20, 0x09, 0x09, 0x20, 0x09, 0x20, 0x20}
var whitespaceTagV4 = []byte{0x20, 0x20, 0x09, 0x09, 0x20, 0x20, 0x09, 0x09}

// Classify probes message in the order spec.md §4.9 fixes: fragment,
// base64-encoded, query, whitespace-tagged, plaintext.
func Classify(message string) MessageKind {
	switch {
	case strings.HasPrefix(message, "?OTR|"):
		return KindFragment
	case strings.HasPrefix(message, "?OTR:") && strings.HasSuffix(message, "."):
		return KindEncoded
	case strings.HasPrefix(message, "?OTRv"):
		return KindQuery
	case strings.Contains(message, string(whitespaceBase)):
		return KindWhitespaceTagged
	default:
		return KindPlaintext
	}
}

// BuildQuery renders the "?OTRv<versions>? " query tag S1 names,
// advertising every version the policy allows.
func BuildQuery(policy Policy, message string) string {
	var versions string
	if policy.Has(AllowV3) {
		versions += "3"
	}
	if policy.Has(AllowV4) {
		versions += "4"
	}
	return "?OTRv" + versions + "? " + message
}

// ParseQueryVersions extracts the version digits from a "?OTRv...?"
// query tag.
func ParseQueryVersions(message string) []int {
	if !strings.HasPrefix(message, "?OTRv") {
		return nil
	}
	rest := message[len("?OTRv"):]
	closing := strings.IndexByte(rest, '?')
	if closing < 0 {
		return nil
	}
	rest = rest[:closing]

	var versions []int
	for _, c := range rest {
		if c == '3' {
			versions = append(versions, 3)
		}
		if c == '4' {
			versions = append(versions, 4)
		}
	}
	return versions
}

// BuildWhitespaceTag renders the base tag plus one 8-byte tag per
// policy-allowed version (v3 before v4, matching S2's ordering),
// followed by message, exactly as spec.md §8's S2 vector shows.
func BuildWhitespaceTag(policy Policy, message string) []byte {
	out := append([]byte{}, whitespaceBase...)
	if policy.Has(AllowV3) {
		out = append(out, whitespaceTagV3...)
	}
	if policy.Has(AllowV4) {
		out = append(out, whitespaceTagV4...)
	}
	return append(out, []byte(message)...)
}

// ParseWhitespaceVersions reports which versions a whitespace-tagged
// message advertises, by scanning for each version's tag immediately
// following the base tag.
func ParseWhitespaceVersions(message string) []int {
	idx := strings.Index(message, string(whitespaceBase))
	if idx < 0 {
		return nil
	}
	rest := message[idx+len(whitespaceBase):]
	var versions []int
	for len(rest) >= 8 {
		tag := rest[:8]
		switch tag {
		case string(whitespaceTagV3):
			versions = append(versions, 3)
		case string(whitespaceTagV4):
			versions = append(versions, 4)
		default:
			return versions
		}
		rest = rest[8:]
	}
	return versions
}

// StripWhitespaceTag removes the base tag and every per-version tag
// from message, returning the human-readable remainder that is still
// delivered to the host even while the tag triggers an AKE.
func StripWhitespaceTag(message string) string {
	idx := strings.Index(message, string(whitespaceBase))
	if idx < 0 {
		return message
	}
	rest := message[idx+len(whitespaceBase):]
	for len(rest) >= 8 {
		tag := rest[:8]
		if tag != string(whitespaceTagV3) && tag != string(whitespaceTagV4) {
			break
		}
		rest = rest[8:]
	}
	return message[:idx] + rest
}

// NegotiateVersion picks the running version per spec.md §4.9: 4 iff
// both sides allow it, else 3 iff both allow it, else 0 (NONE,
// ignored).
func NegotiateVersion(policy Policy, peerVersions []int) int {
	peerHas := func(v int) bool {
		for _, p := range peerVersions {
			if p == v {
				return true
			}
		}
		return false
	}
	if policy.Has(AllowV4) && peerHas(4) {
		return 4
	}
	if policy.Has(AllowV3) && peerHas(3) {
		return 3
	}
	return 0
}
