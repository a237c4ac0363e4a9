package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"nayancam/internal/drive"
)

// FileSystemVault stores archived objects and metadata as files:
//
//	<root>/
//	  content/
//	    videos/<name>.mp4[.age]
//	  metadata/
//	    <deviceID>/<name>          (e.g. db snapshots)
//	    <deviceID>/<name>.version
type FileSystemVault struct {
	name        string
	root        string
	contentDir  string
	metadataDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	contentDir := filepath.Join(root, "content")
	metadataDir := filepath.Join(root, "metadata")

	for _, dir := range []string{contentDir, metadataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	return &FileSystemVault{
		name:        name,
		root:        root,
		contentDir:  contentDir,
		metadataDir: metadataDir,
	}, nil
}

func (v *FileSystemVault) contentPath(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(v.contentDir, filepath.FromSlash(key)), nil
}

func (v *FileSystemVault) metadataPath(deviceID, name string) (string, error) {
	key, err := cleanKey(metadataKey(deviceID, name))
	if err != nil {
		return "", err
	}
	return filepath.Join(v.metadataDir, filepath.FromSlash(key)), nil
}

func (v *FileSystemVault) PutContent(ctx context.Context, key string, r io.Reader, size int64) error {
	dest, err := v.contentPath(key)
	if err != nil {
		return err
	}
	return writeFile(dest, r, size)
}

func (v *FileSystemVault) GetContent(ctx context.Context, key string, w io.Writer) error {
	src, err := v.contentPath(key)
	if err != nil {
		return err
	}
	return readFile(src, w)
}

func (v *FileSystemVault) DeleteContent(ctx context.Context, key string) error {
	p, err := v.contentPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// PutMetadata stores a named metadata item and its version marker.
func (v *FileSystemVault) PutMetadata(ctx context.Context, deviceID, name string, r io.Reader, size int64, version int64) error {
	dest, err := v.metadataPath(deviceID, name)
	if err != nil {
		return err
	}
	if err := writeFile(dest, r, size); err != nil {
		return err
	}

	data := strconv.FormatInt(version, 10)
	return writeFile(dest+".version", strings.NewReader(data), int64(len(data)))
}

// GetMetadataVersion returns 0 if no version file exists.
func (v *FileSystemVault) GetMetadataVersion(ctx context.Context, deviceID, name string) (int64, error) {
	p, err := v.metadataPath(deviceID, name)
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(p + ".version")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

func (v *FileSystemVault) GetMetadata(ctx context.Context, deviceID, name string, w io.Writer) error {
	src, err := v.metadataPath(deviceID, name)
	if err != nil {
		return err
	}
	return readFile(src, w)
}

// ValidateSetup verifies that the vault directories exist and are writable.
func (v *FileSystemVault) ValidateSetup(ctx context.Context) error {
	for _, dir := range []string{v.root, v.contentDir, v.metadataDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}

	probe, err := os.CreateTemp(v.contentDir, ".probe-*")
	if err != nil {
		return fmt.Errorf("vault not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// writeFile writes r to destPath via a temp file and rename so readers never
// see a partial object.
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func readFile(srcPath string, w io.Writer) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", filepath.Base(srcPath), ErrNotFound)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

var _ drive.Vault = (*FileSystemVault)(nil)
