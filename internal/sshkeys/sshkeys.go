// Package sshkeys validates client key material and tracks remote host key
// fingerprints. Hosts are expected to regenerate keys occasionally, so a
// changed fingerprint is logged rather than rejected.
package sshkeys

import (
	"errors"
	"fmt"
	"log"
	"net"

	"golang.org/x/crypto/ssh"
)

// ErrPassphraseRequired is returned when a private key is encrypted and no
// passphrase was supplied.
var ErrPassphraseRequired = errors.New("private key is encrypted and requires a passphrase")

// ValidatePrivateKey checks that pemData parses as an SSH private key with
// the given passphrase. Used before key material is persisted so a typo is
// caught at creation time instead of on the first tail attempt.
func ValidatePrivateKey(pemData, passphrase string) error {
	if pemData == "" {
		return fmt.Errorf("private key is empty")
	}

	if passphrase != "" {
		if _, err := ssh.ParsePrivateKeyWithPassphrase([]byte(pemData), []byte(passphrase)); err != nil {
			return fmt.Errorf("parse private key with passphrase: %w", err)
		}
		return nil
	}

	_, err := ssh.ParsePrivateKey([]byte(pemData))
	if err == nil {
		return nil
	}
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		return ErrPassphraseRequired
	}
	return fmt.Errorf("parse private key: %w", err)
}

// Fingerprint returns the SHA256 fingerprint of an SSH public key.
func Fingerprint(key ssh.PublicKey) string {
	return ssh.FingerprintSHA256(key)
}

// LoggingHostKeyCallback accepts any host key and logs its fingerprint. When
// expected is non-empty a differing fingerprint is logged as a warning but
// the connection still proceeds.
func LoggingHostKeyCallback(expected string) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		actual := Fingerprint(key)
		if expected != "" && expected != actual {
			log.Printf("[sshkeys] WARNING: host key changed for %s: expected %s, got %s", hostname, expected, actual)
		}
		return nil
	}
}
