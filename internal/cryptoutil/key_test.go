package cryptoutil

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestKeyEncodings(t *testing.T) {
	raw := make([]byte, KeySize)
	for i := range raw {
		raw[i] = byte(i)
	}
	hexed := "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	cases := map[string]string{
		"prefixed base64": "base64:" + base64.StdEncoding.EncodeToString(raw),
		"bare base64":     base64.StdEncoding.EncodeToString(raw),
		"prefixed hex":    "hex:" + hexed,
		"bare hex":        hexed,
		"padded":          "  hex:" + hexed + "\n",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			key, err := Key(ExportKeySetting, value)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(key) != string(raw) {
				t.Fatalf("decoded %x", key)
			}
		})
	}
}

func TestKeyErrorsNameTheSetting(t *testing.T) {
	cases := []struct {
		value string
		want  error
	}{
		{"", ErrNoKey},
		{"hex:zz", ErrKeyEncoding},
		{"%%%", ErrKeyEncoding},
		{"hex:0102", ErrKeySize},
	}
	for _, tc := range cases {
		_, err := Key(ConfigKeySetting, tc.value)
		if !errors.Is(err, tc.want) {
			t.Fatalf("Key(%q) = %v, want %v", tc.value, err, tc.want)
		}
		if !strings.HasPrefix(err.Error(), ConfigKeySetting+": ") {
			t.Fatalf("error %q does not name the setting", err)
		}
	}
}
