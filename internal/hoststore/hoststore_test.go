package hoststore

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ghdquddnr/Termix-sub002/internal/config"
	"github.com/ghdquddnr/Termix-sub002/internal/database"
	gossh "golang.org/x/crypto/ssh"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&database.Host{}, &database.Setting{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	database.DB = db
	config.Cfg.SSHConnectTimeout = "30s"
}

func generateEncryptedKeyPEM(t *testing.T, passphrase string) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	block, err := gossh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	return string(pem.EncodeToMemory(block))
}

func TestCreateAndLookup(t *testing.T) {
	setupTestDB(t)
	keyPEM := generateEncryptedKeyPEM(t, "open sesame")

	h := &database.Host{
		Name:     "web-1",
		Host:     "10.0.0.5",
		Port:     2222,
		Username: "deploy",
	}
	if err := Create(h, "hunter2", keyPEM, "open sesame"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Secrets must not be stored in plaintext.
	stored, err := database.GetHostByID(h.ID)
	if err != nil {
		t.Fatalf("GetHostByID: %v", err)
	}
	if stored.Password == "hunter2" || stored.PrivateKey == keyPEM {
		t.Fatal("secrets stored unencrypted")
	}

	creds, err := Lookup("web-1")
	if err != nil {
		t.Fatalf("Lookup by name: %v", err)
	}
	if creds.Host != "10.0.0.5" || creds.Port != 2222 || creds.Username != "deploy" {
		t.Errorf("unexpected endpoint: %+v", creds)
	}
	if creds.Password != "hunter2" {
		t.Errorf("Password = %q, want decrypted plaintext", creds.Password)
	}
	if creds.PrivateKey != keyPEM || creds.Passphrase != "open sesame" {
		t.Errorf("key material not round-tripped: %+v", creds)
	}

	// Lookup by numeric id resolves the same host.
	byID, err := Lookup("1")
	if err != nil {
		t.Fatalf("Lookup by id: %v", err)
	}
	if byID.Host != creds.Host {
		t.Errorf("lookup by id returned a different host")
	}
}

func TestCreateRejectsBadKey(t *testing.T) {
	setupTestDB(t)

	h := &database.Host{Name: "bad-key", Host: "10.0.0.6", Username: "deploy"}
	if err := Create(h, "", "not a pem key", ""); err == nil {
		t.Fatal("expected error for malformed private key")
	}
	if err := Create(h, "", generateEncryptedKeyPEM(t, "pw"), "wrong"); err == nil {
		t.Fatal("expected error for wrong passphrase")
	}
}

func TestLookupNotFound(t *testing.T) {
	setupTestDB(t)

	_, err := Lookup("999")
	if !errors.Is(err, ErrHostNotFound) {
		t.Fatalf("expected ErrHostNotFound, got %v", err)
	}

	_, err = Lookup("no-such-host")
	if !errors.Is(err, ErrHostNotFound) {
		t.Fatalf("expected ErrHostNotFound for unknown name, got %v", err)
	}
}

func TestConnectTimeoutResolution(t *testing.T) {
	setupTestDB(t)

	h := &database.Host{Name: "slow", Host: "10.0.0.9", Port: 22, Username: "u", ConnectTimeoutSec: 7}
	if err := Create(h, "pw", "", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	creds, err := Lookup("slow")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if creds.Timeout != 7*time.Second {
		t.Errorf("Timeout = %s, want 7s (per-host override)", creds.Timeout)
	}

	h2 := &database.Host{Name: "default", Host: "10.0.0.10", Port: 22, Username: "u"}
	if err := Create(h2, "pw", "", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	creds, err = Lookup("default")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if creds.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s, want 30s (global default)", creds.Timeout)
	}
}

func TestImportYAMLIdempotent(t *testing.T) {
	setupTestDB(t)

	inventory := `hosts:
  - name: app-1
    host: 192.168.1.10
    username: admin
    password: pw-one
  - name: app-2
    host: 192.168.1.11
    port: 2200
    username: admin
    private_key: |
      FAKE KEY
    connect_timeout_sec: 10
`
	path := filepath.Join(t.TempDir(), "hosts.yaml")
	if err := os.WriteFile(path, []byte(inventory), 0600); err != nil {
		t.Fatalf("write inventory: %v", err)
	}

	n, err := ImportYAML(path)
	if err != nil {
		t.Fatalf("ImportYAML: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported %d hosts, want 2", n)
	}

	// Re-import must not duplicate.
	if _, err := ImportYAML(path); err != nil {
		t.Fatalf("re-import: %v", err)
	}
	hosts, err := database.ListHosts()
	if err != nil {
		t.Fatalf("ListHosts: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("host count after re-import = %d, want 2", len(hosts))
	}

	creds, err := Lookup("app-2")
	if err != nil {
		t.Fatalf("Lookup app-2: %v", err)
	}
	if creds.Port != 2200 {
		t.Errorf("Port = %d, want 2200", creds.Port)
	}
	if creds.PrivateKey != "FAKE KEY\n" {
		t.Errorf("PrivateKey = %q, want inline key material", creds.PrivateKey)
	}
	if creds.Timeout != 10*time.Second {
		t.Errorf("Timeout = %s, want 10s", creds.Timeout)
	}

	creds, err = Lookup("app-1")
	if err != nil {
		t.Fatalf("Lookup app-1: %v", err)
	}
	if creds.Password != "pw-one" {
		t.Errorf("Password = %q, want pw-one", creds.Password)
	}
	if creds.Port != 22 {
		t.Errorf("Port = %d, want default 22", creds.Port)
	}
}

func TestImportYAMLSkipsIncomplete(t *testing.T) {
	setupTestDB(t)

	inventory := `hosts:
  - name: valid
    host: 192.168.1.20
    username: admin
    password: pw
  - name: ""
    host: 192.168.1.21
    username: admin
`
	path := filepath.Join(t.TempDir(), "hosts.yaml")
	if err := os.WriteFile(path, []byte(inventory), 0600); err != nil {
		t.Fatalf("write inventory: %v", err)
	}

	n, err := ImportYAML(path)
	if err != nil {
		t.Fatalf("ImportYAML: %v", err)
	}
	if n != 1 {
		t.Errorf("imported %d hosts, want 1 (incomplete entry skipped)", n)
	}
}

func TestImportYAMLMissingFile(t *testing.T) {
	setupTestDB(t)
	if _, err := ImportYAML("/nonexistent/hosts.yaml"); err == nil {
		t.Fatal("expected error for missing inventory file")
	}
}
