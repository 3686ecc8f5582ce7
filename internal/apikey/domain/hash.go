package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// KeyPrefix marks every issued key so leaked secrets are easy to grep for.
const KeyPrefix = "vg_"

// HashAPIKey hashes the raw API key using the same strategy as key creation.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// LooksLikeKey rejects bearer tokens that were never issued by this service.
func LooksLikeKey(raw string) bool {
	return strings.HasPrefix(raw, KeyPrefix) && len(raw) > len(KeyPrefix)
}
