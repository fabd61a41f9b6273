package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/kuramap/internal/store"
)

// FormatVersion is the archive format written by Write.
const FormatVersion = 1

// MaxDecompressedSize is the maximum allowed size of a decompressed archive payload (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

// Archive is the payload of a run-history archive.
type Archive struct {
	CreatedAt time.Time     `json:"created_at"`
	Runs      []ArchivedRun `json:"runs"`
}

// ArchivedRun is one run with its epoch records.
type ArchivedRun struct {
	store.Run
	Epochs []store.EpochRecord `json:"epochs"`
}

// EpochCount returns the total number of epoch records in the archive.
func (a *Archive) EpochCount() int {
	n := 0
	for _, r := range a.Runs {
		n += len(r.Epochs)
	}
	return n
}

// Header is the plain-text first line of an archive file. It can be read
// without decompressing the payload.
type Header struct {
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	Checksum   string    `json:"checksum"`
	RunCount   int       `json:"run_count"`
	EpochCount int       `json:"epoch_count"`
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Write stores a as a header line followed by the gzip-compressed JSON
// payload. The header carries the SHA-256 of the compressed bytes.
func Write(path string, a *Archive) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling archive: %w", err)
	}

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(payload); err != nil {
		return fmt.Errorf("compressing archive: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}

	header, err := json.Marshal(Header{
		Version:    FormatVersion,
		CreatedAt:  a.CreatedAt,
		Checksum:   checksum(compressed.Bytes()),
		RunCount:   len(a.Runs),
		EpochCount: a.EpochCount(),
	})
	if err != nil {
		return fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	w.Write(header)
	w.WriteByte('\n')
	w.Write(compressed.Bytes())
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	return f.Close()
}

// open reads the header and the raw compressed payload, verifying the
// checksum.
func open(path string) (*Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	header, err := readHeader(r)
	if err != nil {
		return nil, nil, err
	}

	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading payload: %w", err)
	}
	if got := checksum(compressed); got != header.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, got)
	}
	return header, compressed, nil
}

func readHeader(r *bufio.Reader) (*Header, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header line: %w", err)
	}
	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &header); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported archive version %d", header.Version)
	}
	return &header, nil
}

// ReadHeader reads only the header line of an archive.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return readHeader(bufio.NewReader(f))
}

// Verify checks an archive's checksum without decompressing it.
func Verify(path string) (*Header, error) {
	header, _, err := open(path)
	return header, err
}

// Read verifies and decodes an archive.
func Read(path string) (*Archive, error) {
	header, compressed, err := open(path)
	if err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	payload, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if len(payload) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var a Archive
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("parsing archive: %w", err)
	}
	if len(a.Runs) != header.RunCount {
		return nil, fmt.Errorf("archive holds %d runs, header says %d", len(a.Runs), header.RunCount)
	}
	return &a, nil
}
