package services_test

import (
	"testing"

	"github.com/widyaops/confdeploy/internal/services"
)

func TestCryptoService_RoundTrip(t *testing.T) {
	key := make([]byte, 32)
	copy(key, "0123456789abcdef0123456789abcdef")

	svc, err := services.NewCryptoService(key)
	if err != nil {
		t.Fatalf("failed to create crypto service: %v", err)
	}

	ciphertext, err := svc.Encrypt("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if ciphertext == "JBSWY3DPEHPK3PXP" {
		t.Error("expected ciphertext to differ from plaintext")
	}

	plaintext, err := svc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if plaintext != "JBSWY3DPEHPK3PXP" {
		t.Errorf("expected round-trip to recover plaintext, got %q", plaintext)
	}
}

func TestCryptoService_EmptyStringPassthrough(t *testing.T) {
	key := make([]byte, 32)
	svc, err := services.NewCryptoService(key)
	if err != nil {
		t.Fatalf("failed to create crypto service: %v", err)
	}

	out, err := svc.Encrypt("")
	if err != nil || out != "" {
		t.Errorf("expected empty passthrough, got %q err=%v", out, err)
	}
	out, err = svc.Decrypt("")
	if err != nil || out != "" {
		t.Errorf("expected empty passthrough, got %q err=%v", out, err)
	}
}

func TestCryptoService_InvalidKeyLength(t *testing.T) {
	if _, err := services.NewCryptoService([]byte("too short")); err == nil {
		t.Error("expected error for short key")
	}
}

func TestCryptoService_TamperedCiphertext(t *testing.T) {
	key := make([]byte, 32)
	svc, _ := services.NewCryptoService(key)

	if _, err := svc.Decrypt("not base64!!"); err == nil {
		t.Error("expected error for malformed ciphertext")
	}

	ciphertext, err := svc.Encrypt("payload")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	tampered := "A" + ciphertext[1:]
	if tampered == ciphertext {
		tampered = "B" + ciphertext[1:]
	}
	if _, err := svc.Decrypt(tampered); err == nil {
		t.Error("expected error for tampered ciphertext")
	}
}
