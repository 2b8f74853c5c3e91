package conversation

import (
	"encoding/base64"
	"strings"

	"otrng/otrerr"
)

// wrapEncoded renders a serialized wire message as the "?OTR:<base64>."
// transport envelope is-encoded classification looks for.
func wrapEncoded(raw []byte) string {
	return "?OTR:" + base64.StdEncoding.EncodeToString(raw) + "."
}

// unwrapEncoded reverses wrapEncoded, failing closed on a malformed
// envelope.
func unwrapEncoded(message string) ([]byte, error) {
	body := strings.TrimPrefix(message, "?OTR:")
	body = strings.TrimSuffix(body, ".")
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, otrerr.Malformed
	}
	return raw, nil
}
