package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

const (
	// DefaultKeyBits is used when no key size is configured.
	DefaultKeyBits = 2048

	publicKeyPEMType = "PUBLIC KEY"
)

// KeyPair holds one session's signing material. The private half lives only
// in memory during issuance or rotation; only PublicPEM is ever persisted.
type KeyPair struct {
	Private   *rsa.PrivateKey
	PublicPEM string
}

// KeyPairGenerator produces a fresh RSA key pair per session. Key material is
// never reused across calls.
type KeyPairGenerator struct {
	bits int
}

// NewKeyPairGenerator creates a generator with the configured key size.
func NewKeyPairGenerator(bits int) *KeyPairGenerator {
	if bits <= 0 {
		bits = DefaultKeyBits
	}
	return &KeyPairGenerator{bits: bits}
}

// Generate creates a new key pair. Failure means the crypto provider is
// unavailable and the whole operation must fail.
func (g *KeyPairGenerator) Generate() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, g.bits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}

	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: publicKeyPEMType, Bytes: der})
	return &KeyPair{Private: priv, PublicPEM: string(pemBytes)}, nil
}

// ParsePublicKey decodes a PEM-encoded RSA public key as stored in a session
// key record.
func ParsePublicKey(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil || block.Type != publicKeyPEMType {
		return nil, fmt.Errorf("invalid public key PEM")
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return rsaKey, nil
}
