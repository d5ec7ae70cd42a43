package narcache

import (
	"fmt"
	"path"
	"strings"

	"zombiezen.com/go/nix/nixbase32"
)

// Store-path basenames start with a 32 character nixbase32 digest.
const storeHashLen = 32

const nixBase32Alphabet = "0123456789abcdfghijklmnpqrsvwxyz"

// IsStoreHash reports whether s is a valid store-path hash: exactly 32
// characters from the Nix base32 alphabet.
func IsStoreHash(s string) bool {
	if len(s) != storeHashLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(nixBase32Alphabet, rune(s[i])) {
			return false
		}
	}
	return true
}

// HashFromName extracts the store-path hash from a store path or
// basename such as "s66mzxpvicwk07gjbjfw9izjfa797vsw-hello-2.12.1".
func HashFromName(name string) (string, error) {
	base := path.Base(strings.TrimRight(name, "/"))
	if len(base) < storeHashLen {
		return "", fmt.Errorf("store path name %q too short for a hash", name)
	}
	hash := base[:storeHashLen]
	if !IsStoreHash(hash) {
		return "", fmt.Errorf("store path name %q has no valid hash prefix", name)
	}
	return hash, nil
}

// FormatHash renders a raw digest as a narinfo hash field value,
// "sha256:<nixbase32>".
func FormatHash(sum []byte) string {
	return "sha256:" + nixbase32.EncodeToString(sum)
}

// sha256 digests encode to 52 nixbase32 characters.
var sha256EncodedLen = nixbase32.EncodedLen(32)

// validHashField reports whether s is a well-formed narinfo hash field
// ("sha256:" plus a nixbase32 digest of the right length).
func validHashField(s string) bool {
	rest, ok := strings.CutPrefix(s, "sha256:")
	if !ok || len(rest) != sha256EncodedLen {
		return false
	}
	for i := 0; i < len(rest); i++ {
		if !strings.ContainsRune(nixBase32Alphabet, rune(rest[i])) {
			return false
		}
	}
	return true
}
