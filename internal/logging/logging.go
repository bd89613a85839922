// Package logging configures the shared logger: timestamps with
// microsecond precision, optionally duplicated to a trace file via
// io.MultiWriter. Synthesis text is never logged directly, only its
// length and a short hash.
package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
)

// Setup attaches a trace log file (if path is non-empty) alongside
// stdout and configures standard flags. Returns the opened file so
// the caller can defer its Close, or nil if no path was given.
func Setup(path string) *os.File {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	if path == "" {
		return nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open trace log %s: %v\n", path, err)
		return nil
	}

	log.SetOutput(io.MultiWriter(os.Stdout, file))
	log.Printf("trace log attached: %s", path)
	return file
}

// TextSummary renders a user-supplied synthesis string as a
// loggable, content-free summary: its rune length and a short prefix
// of its SHA-256 hash. Never pass the raw text to log.Printf.
func TextSummary(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("len=%d sha256=%s", len([]rune(text)), hex.EncodeToString(sum[:])[:12])
}
