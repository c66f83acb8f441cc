// Package hoststore resolves SSH credentials for tail sessions. It is the
// lookup side of the host inventory: records live in the database with
// secrets encrypted at rest. Every lookup decrypts fresh; the relay core
// caches nothing.
package hoststore

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/ghdquddnr/Termix-sub002/internal/config"
	"github.com/ghdquddnr/Termix-sub002/internal/crypto"
	"github.com/ghdquddnr/Termix-sub002/internal/database"
	"github.com/ghdquddnr/Termix-sub002/internal/sshkeys"
	"github.com/ghdquddnr/Termix-sub002/internal/sshtail"
	"gopkg.in/yaml.v3"
)

// ErrHostNotFound mirrors the database sentinel so callers need only one import.
var ErrHostNotFound = database.ErrHostNotFound

// Lookup resolves and decrypts connection material for a host identifier.
// The identifier is a numeric host id, with a fallback to the host name.
func Lookup(hostID string) (sshtail.Credentials, error) {
	host, err := find(hostID)
	if err != nil {
		return sshtail.Credentials{}, err
	}

	password, err := crypto.Decrypt(host.Password)
	if err != nil {
		return sshtail.Credentials{}, fmt.Errorf("decrypt password for host %s: %w", hostID, err)
	}
	privateKey, err := crypto.Decrypt(host.PrivateKey)
	if err != nil {
		return sshtail.Credentials{}, fmt.Errorf("decrypt private key for host %s: %w", hostID, err)
	}
	passphrase, err := crypto.Decrypt(host.Passphrase)
	if err != nil {
		return sshtail.Credentials{}, fmt.Errorf("decrypt passphrase for host %s: %w", hostID, err)
	}

	return sshtail.Credentials{
		Host:       host.Host,
		Port:       host.Port,
		Username:   host.Username,
		Password:   password,
		PrivateKey: privateKey,
		Passphrase: passphrase,
		Timeout:    connectTimeout(host),
	}, nil
}

func find(hostID string) (*database.Host, error) {
	if id, err := strconv.ParseUint(hostID, 10, 32); err == nil {
		return database.GetHostByID(uint(id))
	}
	return database.GetHostByName(hostID)
}

// connectTimeout returns the per-host handshake bound, falling back to the
// configured global default, then to the package default.
func connectTimeout(host *database.Host) time.Duration {
	if host.ConnectTimeoutSec > 0 {
		return time.Duration(host.ConnectTimeoutSec) * time.Second
	}
	if d, err := time.ParseDuration(config.Cfg.SSHConnectTimeout); err == nil && d > 0 {
		return d
	}
	return sshtail.DefaultConnectTimeout
}

// Create encrypts the secrets and persists a new host record. Key material
// is validated first so a broken key is rejected here rather than on the
// first connection attempt.
func Create(h *database.Host, password, privateKey, passphrase string) error {
	if privateKey != "" {
		if err := sshkeys.ValidatePrivateKey(privateKey, passphrase); err != nil {
			return fmt.Errorf("invalid private key: %w", err)
		}
	}

	var err error
	if h.Password, err = crypto.Encrypt(password); err != nil {
		return fmt.Errorf("encrypt password: %w", err)
	}
	if h.PrivateKey, err = crypto.Encrypt(privateKey); err != nil {
		return fmt.Errorf("encrypt private key: %w", err)
	}
	if h.Passphrase, err = crypto.Encrypt(passphrase); err != nil {
		return fmt.Errorf("encrypt passphrase: %w", err)
	}
	return database.CreateHost(h)
}

// yamlHost is one entry in the bootstrap inventory file.
type yamlHost struct {
	Name              string `yaml:"name"`
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	Username          string `yaml:"username"`
	Password          string `yaml:"password"`
	PrivateKey        string `yaml:"private_key"`
	PrivateKeyFile    string `yaml:"private_key_file"`
	Passphrase        string `yaml:"passphrase"`
	ConnectTimeoutSec int    `yaml:"connect_timeout_sec"`
}

type yamlInventory struct {
	Hosts []yamlHost `yaml:"hosts"`
}

// ImportYAML loads a host inventory file and upserts each entry by name.
// Re-importing the same file is idempotent: existing hosts are updated in
// place, never duplicated.
func ImportYAML(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read hosts file: %w", err)
	}

	var inv yamlInventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return 0, fmt.Errorf("parse hosts file: %w", err)
	}

	imported := 0
	for _, yh := range inv.Hosts {
		if yh.Name == "" || yh.Host == "" || yh.Username == "" {
			log.Printf("[hoststore] skipping inventory entry %q: missing name, host or username", yh.Name)
			continue
		}
		if err := upsert(yh); err != nil {
			return imported, fmt.Errorf("import host %q: %w", yh.Name, err)
		}
		imported++
	}
	return imported, nil
}

func upsert(yh yamlHost) error {
	privateKey := yh.PrivateKey
	if privateKey == "" && yh.PrivateKeyFile != "" {
		data, err := os.ReadFile(yh.PrivateKeyFile)
		if err != nil {
			return fmt.Errorf("read private key file: %w", err)
		}
		privateKey = string(data)
	}

	port := yh.Port
	if port == 0 {
		port = 22
	}

	record := database.Host{
		Name:              yh.Name,
		Host:              yh.Host,
		Port:              port,
		Username:          yh.Username,
		ConnectTimeoutSec: yh.ConnectTimeoutSec,
	}

	existing, err := database.GetHostByName(yh.Name)
	if err == nil {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, database.ErrHostNotFound) {
		return err
	}

	if record.Password, err = crypto.Encrypt(yh.Password); err != nil {
		return fmt.Errorf("encrypt password: %w", err)
	}
	if record.PrivateKey, err = crypto.Encrypt(privateKey); err != nil {
		return fmt.Errorf("encrypt private key: %w", err)
	}
	if record.Passphrase, err = crypto.Encrypt(yh.Passphrase); err != nil {
		return fmt.Errorf("encrypt passphrase: %w", err)
	}

	return database.SaveHost(&record)
}
