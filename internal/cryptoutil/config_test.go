package cryptoutil

import (
	"bytes"
	"errors"
	"testing"
)

func TestSealConfigRoundTrip(t *testing.T) {
	plain := []byte("storage:\n  bucket: www.example.com\n")
	sealed, err := SealConfig(plain, testKey())
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !IsSealed(sealed) || bytes.Contains(sealed, []byte("www.example.com")) {
		t.Fatalf("unexpected sealed payload %q", sealed)
	}
	opened, err := OpenConfig(sealed, testKey())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Fatalf("unexpected plaintext %q", opened)
	}
}

func TestOpenConfigErrors(t *testing.T) {
	sealed, err := SealConfig([]byte("backup:\n  max_backups: 3\n"), testKey())
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	wrong := testKey()
	wrong[0] ^= 0xff
	if _, err := OpenConfig(sealed, wrong); !errors.Is(err, ErrConfigKey) {
		t.Fatalf("wrong key: got %v", err)
	}

	if _, err := OpenConfig([]byte("storage:\n  bucket: plain\n"), testKey()); !errors.Is(err, ErrNotSealed) {
		t.Fatalf("plain yaml: got %v", err)
	}
	if IsSealed([]byte("storage: {}")) {
		t.Fatalf("plain yaml reported as sealed")
	}

	future := bytes.Clone(sealed)
	future[len(sealMagic)] = 9
	if _, err := OpenConfig(future, testKey()); !errors.Is(err, ErrSealVersion) {
		t.Fatalf("future version: got %v", err)
	}

	tampered := bytes.Clone(sealed)
	tampered[len(tampered)-1] ^= 0x01
	if _, err := OpenConfig(tampered, testKey()); !errors.Is(err, ErrConfigKey) {
		t.Fatalf("tampered payload: got %v", err)
	}
}
