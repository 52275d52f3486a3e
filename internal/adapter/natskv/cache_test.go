package natskv

import (
	"regexp"
	"testing"
)

var kvKeyPattern = regexp.MustCompile(`^[-/_=.a-zA-Z0-9]+$`)

func TestEncodeKeyIsValidKVKey(t *testing.T) {
	keys := []string{
		"parent/biz-1",
		"support/user@example.com",
		"rep-business/rep with spaces",
		"business:ünïcode",
	}
	seen := map[string]string{}
	for _, k := range keys {
		enc := EncodeKey(k)
		if !kvKeyPattern.MatchString(enc) {
			t.Errorf("EncodeKey(%q) = %q is not a valid KV key", k, enc)
		}
		if prev, dup := seen[enc]; dup {
			t.Errorf("EncodeKey collision between %q and %q", prev, k)
		}
		seen[enc] = k
	}
}
