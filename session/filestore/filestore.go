// Package filestore persists the session as a single encrypted document on
// disk. It is the Go analogue of the encrypted preference store the mobile
// clients use: the payload is sealed with ChaCha20-Poly1305 under a key
// derived from a per-device secret, so a copied file is useless without the
// secret.
package filestore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	autherrors "github.com/workforcehub/go-session/internal/errors"
	"github.com/workforcehub/go-session/session"
)

var _ session.Store = (*FileStore)(nil)

const keyInfo = "workforcehub-session-store-v1"

// FileStore stores the session at a fixed path, encrypted at rest.
type FileStore struct {
	path string
	key  []byte
}

// New derives the encryption key from the device secret and returns a store
// writing to path. The secret must be non-empty; key derivation uses
// HKDF-SHA256 so secrets of any length are acceptable.
func New(path string, deviceSecret []byte) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("[filestore.New] path is required")
	}
	if len(deviceSecret) == 0 {
		return nil, errors.New("[filestore.New] device secret is required")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, deviceSecret, nil, []byte(keyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, errors.Wrap(err, "[filestore.New] key derivation")
	}

	return &FileStore{path: path, key: key}, nil
}

// Save seals the session and writes it with a temp-file-then-rename so a
// concurrent Load only ever sees a complete document.
func (fs *FileStore) Save(s *session.Session) error {
	plaintext, err := json.Marshal(s)
	if err != nil {
		return errors.Wrapf(autherrors.ErrStorageUnavailable, "[FileStore.Save] marshal: %v", err)
	}

	aead, err := chacha20poly1305.New(fs.key)
	if err != nil {
		return errors.Wrapf(autherrors.ErrStorageUnavailable, "[FileStore.Save] cipher: %v", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrapf(autherrors.ErrStorageUnavailable, "[FileStore.Save] nonce: %v", err)
	}
	sealed := aead.Seal(nonce, nonce, plaintext, nil)

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), ".session-*")
	if err != nil {
		return errors.Wrapf(autherrors.ErrStorageUnavailable, "[FileStore.Save] temp file: %v", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(autherrors.ErrStorageUnavailable, "[FileStore.Save] write: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(autherrors.ErrStorageUnavailable, "[FileStore.Save] close: %v", err)
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(autherrors.ErrStorageUnavailable, "[FileStore.Save] rename: %v", err)
	}
	return nil
}

// Load returns (nil, nil) when no session file exists. A file that cannot
// be read or decrypted surfaces as ErrStorageUnavailable so callers fail
// closed.
func (fs *FileStore) Load() (*session.Session, error) {
	sealed, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(autherrors.ErrStorageUnavailable, "[FileStore.Load] read: %v", err)
	}

	aead, err := chacha20poly1305.New(fs.key)
	if err != nil {
		return nil, errors.Wrapf(autherrors.ErrStorageUnavailable, "[FileStore.Load] cipher: %v", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.Wrap(autherrors.ErrStorageUnavailable, "[FileStore.Load] truncated file")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrapf(autherrors.ErrStorageUnavailable, "[FileStore.Load] decrypt: %v", err)
	}

	var s session.Session
	if err := json.Unmarshal(plaintext, &s); err != nil {
		return nil, errors.Wrapf(autherrors.ErrStorageUnavailable, "[FileStore.Load] unmarshal: %v", err)
	}
	return &s, nil
}

// Clear removes the session file. Clearing an absent file is a no-op.
func (fs *FileStore) Clear() error {
	err := os.Remove(fs.path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(autherrors.ErrStorageUnavailable, "[FileStore.Clear] remove: %v", err)
}
