package drive

import (
	"context"
	"io"
)

// Vault archives recorded videos and database snapshots.
// All operations stream through io.Reader/io.Writer so large recordings are
// never held in memory.
type Vault interface {
	// PutContent stores an object under key. Storing the same key twice
	// replaces it. size is the number of bytes that will be read from r.
	PutContent(ctx context.Context, key string, r io.Reader, size int64) error

	// GetContent writes the object stored under key to w.
	GetContent(ctx context.Context, key string, w io.Writer) error

	// DeleteContent removes the object under key. Missing keys are not an error.
	DeleteContent(ctx context.Context, key string) error

	// PutMetadata stores a named metadata item for a device along with a
	// version used for consistency checks. Known names: "db".
	PutMetadata(ctx context.Context, deviceID, name string, r io.Reader, size int64, version int64) error

	// GetMetadata writes a named metadata item for a device to w.
	GetMetadata(ctx context.Context, deviceID, name string, w io.Writer) error

	// GetMetadataVersion returns the stored version, or 0 when none exists.
	GetMetadataVersion(ctx context.Context, deviceID, name string) (int64, error)

	// ValidateSetup verifies that the vault is reachable and writable.
	ValidateSetup(ctx context.Context) error
}
