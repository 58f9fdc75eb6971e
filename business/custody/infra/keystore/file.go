// Package keystore persists signing keys as hex-encoded secp256k1 private
// keys on local disk, the go-ethereum crypto.SaveECDSA format.
package keystore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/flowsniper/flowsniper/business/custody/app"
	"github.com/flowsniper/flowsniper/business/custody/domain"
	"github.com/flowsniper/flowsniper/internal/apperror"
)

var _ app.KeyStore = (*FileKeyStore)(nil)

// FileKeyStore keeps the operator key in one file and extra keys as *.key
// files in a directory.
type FileKeyStore struct {
	operatorFile string
	dir          string
}

// NewFileKeyStore creates a store. dir may be empty when no extra keys are
// used.
func NewFileKeyStore(operatorFile, dir string) *FileKeyStore {
	return &FileKeyStore{operatorFile: operatorFile, dir: dir}
}

// LoadOrCreateOperator implements app.KeyStore. The key file is created 0600
// on first run and reloaded verbatim afterwards.
func (s *FileKeyStore) LoadOrCreateOperator() (*domain.Signer, error) {
	if _, err := os.Stat(s.operatorFile); err == nil {
		key, err := crypto.LoadECDSA(s.operatorFile)
		if err != nil {
			return nil, apperror.New(apperror.CodeKeyStoreUnavailable,
				apperror.WithCause(err),
				apperror.WithContext("failed to load operator key from "+s.operatorFile))
		}
		return domain.NewSigner(key), nil
	} else if !os.IsNotExist(err) {
		return nil, apperror.New(apperror.CodeKeyStoreUnavailable,
			apperror.WithCause(err),
			apperror.WithContext("failed to stat "+s.operatorFile))
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, apperror.New(apperror.CodeKeyStoreUnavailable,
			apperror.WithCause(err),
			apperror.WithContext("failed to generate operator key"))
	}

	if dir := filepath.Dir(s.operatorFile); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, apperror.New(apperror.CodeKeyStoreUnavailable,
				apperror.WithCause(err),
				apperror.WithContext("failed to create key directory "+dir))
		}
	}

	// SaveECDSA writes the hex key with 0600 permissions.
	if err := crypto.SaveECDSA(s.operatorFile, key); err != nil {
		return nil, apperror.New(apperror.CodeKeyStoreUnavailable,
			apperror.WithCause(err),
			apperror.WithContext("failed to persist operator key"))
	}

	return domain.NewSigner(key), nil
}

// Signers implements app.KeyStore, loading every *.key file in the
// configured directory.
func (s *FileKeyStore) Signers() ([]*domain.Signer, error) {
	if s.dir == "" {
		return nil, nil
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.key"))
	if err != nil {
		return nil, apperror.New(apperror.CodeKeyStoreUnavailable,
			apperror.WithCause(err),
			apperror.WithContext("failed to scan key directory "+s.dir))
	}

	signers := make([]*domain.Signer, 0, len(matches))
	for _, path := range matches {
		key, err := crypto.LoadECDSA(path)
		if err != nil {
			return nil, apperror.New(apperror.CodeKeyStoreUnavailable,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("failed to load key %s", path)))
		}
		signers = append(signers, domain.NewSigner(key))
	}
	return signers, nil
}
