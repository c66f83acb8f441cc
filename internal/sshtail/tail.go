// Package sshtail opens SSH connections to remote hosts and runs a
// tail-and-follow command against a single file, exposing the remote
// process output as a stream of raw byte chunks.
//
// A Stream owns both the SSH client and the exec session it was created
// with. Close releases the remote process handle first, then the transport;
// both are released together exactly once regardless of how the stream ends.
package sshtail

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/ghdquddnr/Termix-sub002/internal/sshkeys"
)

// DefaultConnectTimeout bounds the SSH handshake when the credentials do not
// carry their own timeout.
const DefaultConnectTimeout = 30 * time.Second

// chunkBufferSize is the read buffer for remote stdout. Chunks are forwarded
// as produced, never coalesced.
const chunkBufferSize = 32 * 1024

// Credentials is the resolved connection material for one host, as returned
// by the host store. Either Password or PrivateKey (with optional
// Passphrase) must be set.
type Credentials struct {
	Host       string
	Port       int
	Username   string
	Password   string
	PrivateKey string
	Passphrase string
	Timeout    time.Duration
}

// ErrNoAuthMethod is returned by Dial when the credentials carry neither a
// password nor a private key.
var ErrNoAuthMethod = errors.New("no authentication method available")

// Dial opens an SSH connection using the given credentials. The handshake is
// bounded by creds.Timeout (DefaultConnectTimeout if zero).
func Dial(creds Credentials) (*ssh.Client, error) {
	auth, err := authMethods(creds)
	if err != nil {
		return nil, err
	}

	timeout := creds.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	cfg := &ssh.ClientConfig{
		User:            creds.Username,
		Auth:            auth,
		HostKeyCallback: sshkeys.LoggingHostKeyCallback(""),
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(creds.Host, fmt.Sprintf("%d", creds.Port))
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return client, nil
}

func authMethods(creds Credentials) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if creds.PrivateKey != "" {
		var signer ssh.Signer
		var err error
		if creds.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(creds.PrivateKey), []byte(creds.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey([]byte(creds.PrivateKey))
		}
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if creds.Password != "" {
		methods = append(methods, ssh.Password(creds.Password))
	}

	if len(methods) == 0 {
		return nil, ErrNoAuthMethod
	}
	return methods, nil
}

// StreamOptions configures how the remote tail behaves.
type StreamOptions struct {
	// FollowName switches tail to -F (follow by name with retry). The
	// default -f follows the file descriptor, so the remote process ends
	// when the file is removed or rotated, which surfaces as stream EOF.
	FollowName bool

	// Diagnostics receives the remote command's stderr. Defaults to
	// io.Discard; the stream only surfaces primary output.
	Diagnostics io.Writer
}

// Stream is one live tail of a remote file. Chunks carries raw stdout bytes
// in production order and is closed when the remote process ends or the
// stream is closed locally.
type Stream struct {
	// Chunks delivers remote output. Closed on remote EOF or Close.
	Chunks <-chan []byte

	chunks  chan []byte
	client  *ssh.Client
	session *ssh.Session
	stop    chan struct{}
	once    sync.Once
}

// Open dials the host and starts the tail command in one step. On any
// failure no handle is retained.
func Open(creds Credentials, path string, lines int, opts StreamOptions) (*Stream, error) {
	client, err := Dial(creds)
	if err != nil {
		return nil, err
	}
	st, err := NewStream(client, path, lines, opts)
	if err != nil {
		client.Close()
		return nil, err
	}
	return st, nil
}

// NewStream starts a tail command over an established SSH client and returns
// the chunk stream. On success the stream takes ownership of the client; on
// failure only the session it opened is released and the caller keeps the
// client.
func NewStream(client *ssh.Client, path string, lines int, opts StreamOptions) (*Stream, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open ssh session: %w", err)
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	diag := opts.Diagnostics
	if diag == nil {
		diag = io.Discard
	}
	session.Stderr = diag

	cmd := buildTailCommand(path, lines, opts.FollowName)
	if err := session.Start(cmd); err != nil {
		session.Close()
		return nil, fmt.Errorf("start tail command: %w", err)
	}

	st := &Stream{
		chunks:  make(chan []byte, 16),
		client:  client,
		session: session,
		stop:    make(chan struct{}),
	}
	st.Chunks = st.chunks

	go st.pump(stdout, path)

	return st, nil
}

// pump reads remote stdout and forwards each chunk. Runs until the remote
// process ends or Close is called (which closes the session and unblocks
// the read).
func (s *Stream) pump(stdout io.Reader, path string) {
	defer close(s.chunks)
	buf := make([]byte, chunkBufferSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case s.chunks <- data:
			case <-s.stop:
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				// A closed stream causes an expected read error.
				select {
				case <-s.stop:
				default:
					log.Printf("[sshtail] read error for %s: %v", path, err)
				}
			}
			return
		}
	}
}

// Close releases the remote process handle, then the transport. Safe to call
// from any goroutine and idempotent; close errors are deliberately ignored
// because the resources are considered released once close is requested.
func (s *Stream) Close() {
	s.once.Do(func() {
		close(s.stop)
		s.session.Close()
		s.client.Close()
	})
}

// buildTailCommand renders the remote read command: last N lines, then
// follow. The path is single-quoted so embedded quotes stay literal.
func buildTailCommand(path string, lines int, followName bool) string {
	flag := "-f"
	if followName {
		flag = "-F"
	}
	return fmt.Sprintf("tail -n %d %s %s", lines, flag, shellQuote(path))
}

// shellQuote wraps a string in single quotes, escaping any embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
