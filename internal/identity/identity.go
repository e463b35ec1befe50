// Package identity loads or creates the node's ed25519 secret key.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base32"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"nodeagent/internal/logger"
)

const pemType = "PRIVATE KEY"

var idEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Identity is a node's secret key.
type Identity struct {
	key       ed25519.PrivateKey
	ephemeral bool
}

// Generate returns a fresh in-memory identity.
func Generate() (*Identity, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &Identity{key: priv, ephemeral: true}, nil
}

// Load reads a PEM encoded PKCS#8 ed25519 key from path.
func Load(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemType {
		return nil, fmt.Errorf("%s: no %q PEM block", path, pemType)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s: key is %T, want ed25519", path, parsed)
	}
	return &Identity{key: key}, nil
}

// Save writes the key to path with owner-only permissions.
func (id *Identity) Save(path string) error {
	der, err := x509.MarshalPKCS8PrivateKey(id.key)
	if err != nil {
		return fmt.Errorf("failed to encode key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data := pem.EncodeToMemory(&pem.Block{Type: pemType, Bytes: der})
	return os.WriteFile(path, data, 0600)
}

// Acquire loads the key at path, creating and saving one if the file does not
// exist. An empty path yields an ephemeral identity that is never written.
func Acquire(path string) (*Identity, error) {
	log := logger.WithComponent("identity")

	if path == "" {
		id, err := Generate()
		if err != nil {
			return nil, err
		}
		log.Debug().Str("node_id", id.ID()).Msg("using ephemeral identity")
		return id, nil
	}

	id, err := Load(path)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	id, err = Generate()
	if err != nil {
		return nil, err
	}
	id.ephemeral = false
	if err := id.Save(path); err != nil {
		return nil, fmt.Errorf("failed to save identity: %w", err)
	}
	log.Info().Str("path", path).Str("node_id", id.ID()).Msg("generated new identity")
	return id, nil
}

// ID is the lowercase unpadded base32 encoding of the public key.
func (id *Identity) ID() string {
	return strings.ToLower(idEncoding.EncodeToString(id.PublicKey()))
}

// PublicKey returns the public half of the key.
func (id *Identity) PublicKey() ed25519.PublicKey {
	return id.key.Public().(ed25519.PublicKey)
}

// Sign signs msg with the secret key.
func (id *Identity) Sign(msg []byte) []byte {
	return ed25519.Sign(id.key, msg)
}

// Ephemeral reports whether the identity lives only in memory.
func (id *Identity) Ephemeral() bool {
	return id.ephemeral
}
