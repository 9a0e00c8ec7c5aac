package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// ShortHash returns the first 12 hex characters of the sha256 of v's JSON
// encoding. Values that cannot be encoded fall back to their Go syntax.
func ShortHash(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte(fmt.Sprintf("%#v", v))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:12]
}

// Key joins key segments with ':'.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// DeviceKey builds "<name>:<deviceID>:<hash(args)>", readable per device and
// collision free across devices.
func DeviceKey(name, deviceID string, args ...interface{}) string {
	if deviceID == "" {
		deviceID = "unknown"
	}
	return Key(name, deviceID, ShortHash(args))
}
