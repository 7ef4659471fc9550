package secretbox

import (
	"bytes"
	"encoding/hex"
	"testing"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestSealOpenRoundTrip(t *testing.T) {
	box, err := New(testKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	plain := []byte("AIzaSy-user-supplied-key")
	sealed, err := box.Seal(plain)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, plain) {
		t.Fatal("sealed output contains plaintext")
	}

	got, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("round trip mismatch: got %q want %q", got, plain)
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	box, _ := New(testKey)
	sealed, err := box.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff
	if _, err := box.Open(sealed); err == nil {
		t.Error("expected tampered ciphertext to fail authentication")
	}
}

func TestOpenRejectsShortInput(t *testing.T) {
	box, _ := New(testKey)
	if _, err := box.Open([]byte{1, 2, 3}); err != ErrCiphertextTooShort {
		t.Errorf("expected ErrCiphertextTooShort, got %v", err)
	}
}

func TestNewRejectsBadKeys(t *testing.T) {
	if _, err := New("not-hex"); err == nil {
		t.Error("expected error for non-hex key")
	}
	short := hex.EncodeToString([]byte("short"))
	if _, err := New(short); err == nil {
		t.Error("expected error for wrong-length key")
	}
}
