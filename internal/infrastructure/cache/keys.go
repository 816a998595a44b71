package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"

	"github.com/unisight/backend/internal/domain/portal"
)

// identifierHashLen is how many hex characters of the identifier
// fingerprint make it into the key. 16 keeps keys short while making
// collisions within one user's namespace practically impossible.
const identifierHashLen = 16

// Key builds the cache key for a user-scoped snapshot:
// "{category}:{username}" or "{category}:{username}:{h}" where h is
// the first 16 hex chars of the MD5 of the identifier. The same
// (category, username, identifier) always produces the same key.
func Key(category portal.Category, username string, identifier ...string) string {
	key := string(category) + ":" + username
	if len(identifier) > 0 && identifier[0] != "" {
		key += ":" + fingerprint(identifier[0])
	}
	return key
}

// GlobalKey builds the cache key for a snapshot shared across users,
// such as per-course content addressed by URL.
func GlobalKey(category portal.Category, identifier string) string {
	return string(category) + ":" + fingerprint(identifier)
}

// fingerprint is a non-cryptographic identifier digest used only for
// key shortening.
func fingerprint(identifier string) string {
	sum := md5.Sum([]byte(identifier))
	return hex.EncodeToString(sum[:])[:identifierHashLen]
}

// DataKey returns the body key of a hashed pair.
func DataKey(base string) string {
	return base + dataSuffix
}

// HashKey returns the fingerprint key of a hashed pair.
func HashKey(base string) string {
	return base + hashSuffix
}

// SnapshotHash returns a stable fingerprint of a JSON document:
// the MD5 of its canonical form (sorted object keys, no insignificant
// whitespace). Two documents with the same content hash equal
// regardless of original key order or formatting. Returns "" when the
// input is not valid JSON.
func SnapshotHash(raw []byte) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	// encoding/json sorts map keys and emits compact output.
	canonical, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := md5.Sum(canonical)
	return hex.EncodeToString(sum[:])
}
