package testutil

import (
	"nayancam/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing. The concrete type
// is returned so tests can list stored keys.
func NewTestVault() *vault.MemoryVault {
	return vault.NewMemoryVault("test-vault")
}
