package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// Sealed config layout: "SBK" magic, one version byte, the GCM nonce, then
// the ciphertext. The header is authenticated as additional data.
const (
	sealMagic   = "SBK"
	sealVersion = byte(1)
	headerLen   = len(sealMagic) + 1
)

var (
	ErrNotSealed   = errors.New("not a sealed sitebak config")
	ErrSealVersion = errors.New("unsupported sealed config version")
	ErrConfigKey   = errors.New("config key does not open this file")
)

// SealConfig encrypts a config file body with AES-256-GCM.
func SealConfig(plain, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, headerLen, headerLen+aead.NonceSize()+len(plain)+aead.Overhead())
	copy(out, sealMagic)
	out[len(sealMagic)] = sealVersion
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("seal config: %w", err)
	}
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plain, out[:headerLen]), nil
}

// OpenConfig reverses SealConfig.
func OpenConfig(sealed, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < headerLen+aead.NonceSize()+aead.Overhead() || string(sealed[:len(sealMagic)]) != sealMagic {
		return nil, ErrNotSealed
	}
	if v := sealed[len(sealMagic)]; v != sealVersion {
		return nil, fmt.Errorf("%w: %d", ErrSealVersion, v)
	}
	nonce := sealed[headerLen : headerLen+aead.NonceSize()]
	plain, err := aead.Open(nil, nonce, sealed[headerLen+aead.NonceSize():], sealed[:headerLen])
	if err != nil {
		return nil, ErrConfigKey
	}
	return plain, nil
}

// IsSealed reports whether data starts with the sealed config header.
func IsSealed(data []byte) bool {
	return len(data) > headerLen && string(data[:len(sealMagic)]) == sealMagic
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
