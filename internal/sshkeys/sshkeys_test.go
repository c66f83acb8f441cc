package sshkeys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"testing"

	"golang.org/x/crypto/ssh"
)

func generateKeyPEM(t *testing.T, passphrase string) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var block *pem.Block
	if passphrase != "" {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	} else {
		block, err = ssh.MarshalPrivateKey(priv, "")
	}
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	return string(pem.EncodeToMemory(block))
}

func TestValidatePrivateKey(t *testing.T) {
	plain := generateKeyPEM(t, "")
	if err := ValidatePrivateKey(plain, ""); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
}

func TestValidatePrivateKeyWithPassphrase(t *testing.T) {
	encrypted := generateKeyPEM(t, "open sesame")

	if err := ValidatePrivateKey(encrypted, "open sesame"); err != nil {
		t.Errorf("valid encrypted key rejected: %v", err)
	}
	if err := ValidatePrivateKey(encrypted, "wrong"); err == nil {
		t.Error("wrong passphrase accepted")
	}
	if err := ValidatePrivateKey(encrypted, ""); !errors.Is(err, ErrPassphraseRequired) {
		t.Errorf("expected ErrPassphraseRequired, got %v", err)
	}
}

func TestValidatePrivateKeyGarbage(t *testing.T) {
	if err := ValidatePrivateKey("not a key", ""); err == nil {
		t.Error("garbage accepted as private key")
	}
	if err := ValidatePrivateKey("", ""); err == nil {
		t.Error("empty key accepted")
	}
}

func TestLoggingHostKeyCallbackAccepts(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("convert key: %v", err)
	}
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 22}

	cb := LoggingHostKeyCallback("")
	if err := cb("example.com:22", addr, sshPub); err != nil {
		t.Errorf("callback rejected host key: %v", err)
	}

	// A mismatch is logged, never fatal.
	cb = LoggingHostKeyCallback("SHA256:definitely-not-this")
	if err := cb("example.com:22", addr, sshPub); err != nil {
		t.Errorf("callback rejected changed host key: %v", err)
	}
}
