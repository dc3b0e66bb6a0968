// Package auth implements the PLAIN and MYSQL41 authentication exchanges as
// explicit state machines driven by frames the session package reads off the
// wire, plus the MYSQL41 scramble primitive both mechanisms' test vectors are
// defined against.
//
// Grounded on server/auth/password_validator.go's double-SHA1 construction
// for the general shape (stage1/stage2 SHA1 hashing, XOR combine, uppercase
// hex encoding); the exact combination order follows this protocol's own
// worked test vector rather than that file's classic-protocol formula — see
// DESIGN.md's C4 entry.
package auth

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// Scramble computes the MYSQL41 challenge response for salt (the 20-byte
// server-issued AuthenticateContinue auth_data) and password, returning the
// uppercase hex encoding of:
//
//	sha1(sha1(password)) XOR sha1(salt || sha1(sha1(password)))
//
// An empty password yields an empty string per the handshake's "no
// credential" convention.
func Scramble(salt []byte, password string) string {
	if password == "" {
		return ""
	}
	stage1 := sha1Sum([]byte(password))
	stage2 := sha1Sum(stage1[:])

	combined := make([]byte, 0, len(salt)+len(stage2))
	combined = append(combined, salt...)
	combined = append(combined, stage2[:]...)
	challengeHash := sha1Sum(combined)

	xored := make([]byte, len(stage2))
	for i := range stage2 {
		xored[i] = stage2[i] ^ challengeHash[i]
	}
	return strings.ToUpper(hex.EncodeToString(xored))
}

func sha1Sum(b []byte) [sha1.Size]byte { return sha1.Sum(b) }
