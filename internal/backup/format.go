package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FormatV2 is the only export format: a JSON header line followed by a
// gzip-compressed JSON payload.
const FormatV2 = 2

// MaxDecompressedSize is the maximum allowed size of a decompressed payload (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

// ErrChecksumMismatch is returned when the payload does not match the header.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// writeV2 writes an export as header line + gzip payload.
func writeV2(path string, e *Export) (*Header, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, gzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gzw.Write(payload); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	header := &Header{
		Version:    FormatV2,
		CreatedAt:  e.CreatedAt,
		Checksum:   checksum(compressed.Bytes()),
		RowCount:   len(e.Results),
		Compressed: true,
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	w.Write(headerBytes)
	w.WriteByte('\n')
	w.Write(compressed.Bytes())
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("writing export: %w", err)
	}
	return header, nil
}

// readV2 reads an export, verifying the checksum before decompressing.
func readV2(path string) (*Header, *Export, error) {
	header, compressed, err := readRaw(path)
	if err != nil {
		return nil, nil, err
	}
	if err := header.verify(compressed); err != nil {
		return nil, nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(decompressed)) > MaxDecompressedSize {
		return nil, nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var e Export
	if err := json.Unmarshal(decompressed, &e); err != nil {
		return nil, nil, fmt.Errorf("parsing export data: %w", err)
	}
	return header, &e, nil
}

// ReadHeader reads only the header line of an export.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return parseHeader(bufio.NewReader(f))
}

func readRaw(path string) (*Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	header, err := parseHeader(reader)
	if err != nil {
		return nil, nil, err
	}
	compressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	return header, compressed, nil
}

func parseHeader(r *bufio.Reader) (*Header, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header line: %w", err)
	}

	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &header); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatV2 {
		return nil, fmt.Errorf("expected format version %d, got %d", FormatV2, header.Version)
	}
	return &header, nil
}

func (h *Header) verify(compressed []byte) error {
	if actual := checksum(compressed); actual != h.Checksum {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, h.Checksum, actual)
	}
	return nil
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}
