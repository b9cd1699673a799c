package crypto

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestAddressRoundtrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	if addr.Prefix() != STTPrefix {
		t.Fatalf("unexpected prefix: %s", addr.Prefix())
	}

	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(addr.Bytes(), decoded.Bytes()) {
		t.Fatalf("roundtrip mismatch: %x != %x", addr.Bytes(), decoded.Bytes())
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-an-address"); err == nil {
		t.Fatalf("expected decode failure")
	}
	if _, err := DecodeAddress("stt1qqqq"); err == nil {
		t.Fatalf("expected short payload rejection")
	}
}

func TestKeystoreRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "owner.keystore")

	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if err := SaveToKeystore(path, key, "passphrase"); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := LoadFromKeystore(path, "passphrase")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !bytes.Equal(key.Bytes(), loaded.Bytes()) {
		t.Fatalf("key material changed across keystore roundtrip")
	}
	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatalf("expected wrong passphrase rejection")
	}
}
