// Package sshfiles lists remote directories over SSH. It runs ls with an
// epoch time style and parses the output into name/size/mtime entries, which
// is what the file browser needs to pick a log file to tail.
package sshfiles

import (
	"bytes"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// FileEntry is one remote directory entry.
type FileEntry struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // file, directory, link, other
	Size        int64  `json:"size"`
	MTime       int64  `json:"mtime"` // unix seconds
	Permissions string `json:"permissions"`
}

// executeCommand creates a new SSH session, runs cmd, and returns stdout,
// stderr, the exit code, and any transport-level error.
func executeCommand(client *ssh.Client, cmd string) (stdout, stderr string, exitCode int, err error) {
	start := time.Now()

	session, err := client.NewSession()
	if err != nil {
		return "", "", -1, fmt.Errorf("open ssh session: %w", err)
	}
	defer session.Close()

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	runErr := session.Run(cmd)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		log.Printf("[sshfiles] SLOW command (%s): %s", elapsed, cmd)
	}

	if runErr != nil {
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			return outBuf.String(), errBuf.String(), exitErr.ExitStatus(), nil
		}
		return outBuf.String(), errBuf.String(), -1, runErr
	}

	return outBuf.String(), errBuf.String(), 0, nil
}

// ListDirectory lists the contents of a remote directory via SSH.
// It executes ls with --time-style=+%s so modification times come back as
// epoch seconds, and parses the output into FileEntry structs.
func ListDirectory(client *ssh.Client, path string) ([]FileEntry, error) {
	cmd := fmt.Sprintf("ls -la --color=never --time-style=+%%s %s", shellQuote(path))
	stdout, stderr, exitCode, err := executeCommand(client, cmd)
	if err != nil {
		return nil, fmt.Errorf("list directory: %w", err)
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("list directory: %s", strings.TrimSpace(stderr))
	}
	return ParseLsOutput(stdout), nil
}

// ParseLsOutput parses `ls -la --time-style=+%s` output. The "total" header
// and the . and .. entries are skipped; lines that do not look like listing
// rows are ignored rather than failing the whole directory.
func ParseLsOutput(out string) []FileEntry {
	var entries []FileEntry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "total ") {
			continue
		}

		entry, ok := parseLsLine(line)
		if !ok {
			continue
		}
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// parseLsLine splits one listing row: permissions, link count, owner, group,
// size, epoch, then the name (which may itself contain spaces).
func parseLsLine(line string) (FileEntry, bool) {
	fields, name := splitFields(line, 6)
	if fields == nil || name == "" {
		return FileEntry{}, false
	}

	size, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return FileEntry{}, false
	}
	mtime, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return FileEntry{}, false
	}

	perms := fields[0]
	entryType := "other"
	switch perms[0] {
	case '-':
		entryType = "file"
	case 'd':
		entryType = "directory"
	case 'l':
		entryType = "link"
	}

	// Symlink rows carry the target after " -> "; only the name matters here.
	if entryType == "link" {
		if idx := strings.Index(name, " -> "); idx >= 0 {
			name = name[:idx]
		}
	}

	return FileEntry{
		Name:        name,
		Type:        entryType,
		Size:        size,
		MTime:       mtime,
		Permissions: perms,
	}, true
}

// splitFields consumes n whitespace-separated tokens and returns them along
// with the remainder of the line, preserving spaces inside the remainder.
func splitFields(line string, n int) ([]string, string) {
	fields := make([]string, 0, n)
	i := 0
	for len(fields) < n {
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
		start := i
		for i < len(line) && line[i] != ' ' && line[i] != '\t' {
			i++
		}
		if start == i {
			return nil, ""
		}
		fields = append(fields, line[start:i])
	}
	rest := strings.TrimLeft(line[i:], " \t")
	return fields, rest
}

// shellQuote wraps a string in single quotes, escaping any embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
