package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"

	"petqc/internal/errs"
)

// Fingerprinter accumulates the identity of a stage invocation
type Fingerprinter struct {
	h hash.Hash
}

// NewFingerprinter starts a fingerprint for the named stage
func NewFingerprinter(stage string) *Fingerprinter {
	f := &Fingerprinter{h: sha256.New()}
	f.Bytes([]byte(stage))
	return f
}

// Bytes adds a length-prefixed blob so adjacent parts cannot run together
func (f *Fingerprinter) Bytes(b []byte) *Fingerprinter {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	f.h.Write(n[:])
	f.h.Write(b)
	return f
}

// Part adds a string part
func (f *Fingerprinter) Part(s string) *Fingerprinter {
	return f.Bytes([]byte(s))
}

// File adds the content of a file. An empty path is recorded as absent.
func (f *Fingerprinter) File(path string) error {
	if path == "" {
		f.Part("")
		return nil
	}
	digest, err := DigestFile(path)
	if err != nil {
		return err
	}
	f.Part(digest)
	return nil
}

// Sum returns the hex fingerprint
func (f *Fingerprinter) Sum() string {
	return hex.EncodeToString(f.h.Sum(nil))
}

// DigestFile returns the SHA-256 of a file's content
func DigestFile(path string) (string, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", &errs.MissingInputError{Path: path, Err: err}
	}
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
