// Package vault implements drive.Vault backends that archive recordings and
// database snapshots: in memory, on a local filesystem, or in S3.
package vault

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned when a key or metadata item does not exist.
var ErrNotFound = errors.New("not found")

// cleanKey validates an object key. Keys are slash separated and may not
// escape the vault root.
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	cleaned := path.Clean(strings.TrimPrefix(key, "/"))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid key: %q", key)
	}
	return cleaned, nil
}

// metadataKey returns the storage key for a device/name pair.
func metadataKey(deviceID, name string) string {
	return deviceID + "/" + name
}
