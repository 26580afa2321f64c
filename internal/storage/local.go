package storage

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

var (
	ErrFileTooLarge    = errors.New("file exceeds the upload size limit")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrInvalidFilename = errors.New("invalid filename")
	ErrFileNotFound    = errors.New("file not found")
	ErrEmptyFile       = errors.New("file is empty")
)

// allowed upload types and the extension each is stored under
var allowedImageMIMETypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

const (
	// DefaultMaxBytes caps a single upload
	DefaultMaxBytes = 5 * 1024 * 1024

	nameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	suffixLength = 6
)

// StoredFile describes a file written to the upload directory
type StoredFile struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
}

// LocalStore keeps uploaded images on the local filesystem
type LocalStore struct {
	dir       string
	urlPrefix string
	maxBytes  int64
	logger    *zap.Logger
	now       func() time.Time
}

// NewLocalStore creates the upload directory when missing
func NewLocalStore(dir, urlPrefix string, maxBytes int64, logger *zap.Logger) (*LocalStore, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{
		dir:       dir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		maxBytes:  maxBytes,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Dir returns the directory uploads are written to
func (s *LocalStore) Dir() string {
	return s.dir
}

// MaxBytes returns the per-file size limit
func (s *LocalStore) MaxBytes() int64 {
	return s.maxBytes
}

// Save sniffs the content type of r, rejects anything but the allowed image
// types and writes it under a generated name
func (s *LocalStore) Save(r io.Reader) (*StoredFile, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	detected := mimetype.Detect(data)
	ext, ok := allowedImageMIMETypes[detected.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, detected.String())
	}

	name, err := s.newName(ext)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}

	s.logger.Info("File uploaded",
		zap.String("filename", name),
		zap.String("type", detected.String()),
		zap.Int("size", len(data)),
	)

	return &StoredFile{
		Filename: name,
		URL:      s.urlPrefix + "/" + name,
		Size:     int64(len(data)),
		Type:     detected.String(),
	}, nil
}

// Delete removes a previously stored file. Names with path components are
// rejected.
func (s *LocalStore) Delete(filename string) error {
	if filename == "" || filename != filepath.Base(filename) || strings.Contains(filename, "..") ||
		strings.ContainsAny(filename, `/\`) {
		return ErrInvalidFilename
	}

	if err := os.Remove(filepath.Join(s.dir, filename)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrFileNotFound
		}
		return fmt.Errorf("failed to delete upload: %w", err)
	}

	s.logger.Info("File deleted", zap.String("filename", filename))
	return nil
}

// newName returns <unix-ms>-<6 random [a-z0-9]><ext>
func (s *LocalStore) newName(ext string) (string, error) {
	raw := make([]byte, suffixLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate filename: %w", err)
	}
	var suffix bytes.Buffer
	for _, b := range raw {
		suffix.WriteByte(nameAlphabet[int(b)%len(nameAlphabet)])
	}
	return fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), suffix.String(), ext), nil
}
