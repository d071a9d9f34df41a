package cryptoutil

import (
	"bytes"
	"io"
	"testing"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestStreamRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("index.html "), 10000)

	var sealed bytes.Buffer
	w, err := EncryptWriter(&sealed, testKey())
	if err != nil {
		t.Fatalf("encrypt writer: %v", err)
	}
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if bytes.Contains(sealed.Bytes(), []byte("index.html")) {
		t.Fatalf("ciphertext contains plaintext")
	}

	r, err := DecryptReader(&sealed, testKey())
	if err != nil {
		t.Fatalf("decrypt reader: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestDecryptReaderRejectsWrongKey(t *testing.T) {
	var sealed bytes.Buffer
	w, err := EncryptWriter(&sealed, testKey())
	if err != nil {
		t.Fatalf("encrypt writer: %v", err)
	}
	if _, err := w.Write([]byte("assets/app.js")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	wrong := testKey()
	wrong[31] ^= 0x01
	r, err := DecryptReader(&sealed, wrong)
	if err != nil {
		t.Fatalf("decrypt reader: %v", err)
	}
	if _, err := io.ReadAll(r); err == nil {
		t.Fatalf("expected authentication error with wrong key")
	}
}
