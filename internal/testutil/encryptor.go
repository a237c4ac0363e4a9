package testutil

import (
	"nayancam/internal/drive"
	"nayancam/internal/encryption"
)

// NewTestEncryptor creates an encryptor with a recognisable header and no keys.
func NewTestEncryptor() drive.Encryptor {
	return encryption.NewTestEncryptor()
}
