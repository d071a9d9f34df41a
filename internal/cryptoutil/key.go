package cryptoutil

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// KeySize is the length of every sitebak key: AES-256 for sealed config
// files and DARE for exported archives.
const KeySize = 32

// Names of the settings a key can come from, used to prefix key errors.
const (
	ConfigKeySetting = "SITEBAK_CONFIG_KEY"
	ExportKeySetting = "export.encryption_key"
)

var (
	ErrNoKey       = errors.New("no encryption key set")
	ErrKeyEncoding = errors.New("encryption key is neither base64 nor hex")
	ErrKeySize     = fmt.Errorf("encryption key must decode to %d bytes", KeySize)
)

// Key decodes the key held by setting. Values may be written as
// "base64:<data>", "hex:<data>" or bare base64 or hex.
func Key(setting, value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%s: %w", setting, ErrNoKey)
	}
	data, err := decodeKey(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", setting, err)
	}
	if len(data) != KeySize {
		return nil, fmt.Errorf("%s: %w, got %d", setting, ErrKeySize, len(data))
	}
	return data, nil
}

func decodeKey(value string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(value, "hex:"); ok {
		data, err := hex.DecodeString(rest)
		if err != nil {
			return nil, ErrKeyEncoding
		}
		return data, nil
	}
	if rest, ok := strings.CutPrefix(value, "base64:"); ok {
		data, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return nil, ErrKeyEncoding
		}
		return data, nil
	}

	// 64 hex digits are also valid base64, so a bare value is taken as
	// whichever encoding yields a key of the right size.
	b64, b64Err := base64.StdEncoding.DecodeString(value)
	if b64Err == nil && len(b64) == KeySize {
		return b64, nil
	}
	if raw, err := hex.DecodeString(value); err == nil {
		return raw, nil
	}
	if b64Err == nil {
		return b64, nil
	}
	return nil, ErrKeyEncoding
}
