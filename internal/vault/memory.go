package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"nayancam/internal/drive"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// It is used by tests and by the "memory" vault type. Safe for concurrent use.
type MemoryVault struct {
	name            string
	content         map[string][]byte // key -> object
	metadata        map[string][]byte // "deviceID/name" -> metadata
	metadataVersion map[string]int64  // "deviceID/name" -> version
	mu              sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:            name,
		content:         make(map[string][]byte),
		metadata:        make(map[string][]byte),
		metadataVersion: make(map[string]int64),
	}
}

func (m *MemoryVault) PutContent(ctx context.Context, key string, r io.Reader, size int64) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[key] = data
	return nil
}

func (m *MemoryVault) GetContent(ctx context.Context, key string, w io.Writer) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}

	m.mu.RLock()
	data, ok := m.content[key]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("content %s: %w", key, ErrNotFound)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

func (m *MemoryVault) DeleteContent(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.content, key)
	return nil
}

// Keys returns the stored content keys.
func (m *MemoryVault) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.content))
	for k := range m.content {
		keys = append(keys, k)
	}
	return keys
}

func (m *MemoryVault) PutMetadata(ctx context.Context, deviceID, name string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := metadataKey(deviceID, name)
	m.metadata[key] = data
	m.metadataVersion[key] = version
	return nil
}

func (m *MemoryVault) GetMetadataVersion(ctx context.Context, deviceID, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metadataVersion[metadataKey(deviceID, name)], nil
}

func (m *MemoryVault) GetMetadata(ctx context.Context, deviceID, name string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.metadata[metadataKey(deviceID, name)]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("metadata %q for device %s: %w", name, deviceID, ErrNotFound)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup(ctx context.Context) error {
	return nil
}

var _ drive.Vault = (*MemoryVault)(nil)
