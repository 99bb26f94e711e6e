// Package storage holds attachment byte stores. Attachment bytes never
// enter the database; only the opaque ref returned here is written inside
// tree transactions.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"jan-server/services/conversation-api/internal/domain/conversation"
)

var errLocalStorageDisabled = errors.New("attachment storage is not configured; set CONVERSATION_ATTACHMENT_PATH to enable")

// LocalStorage stores attachment bytes on the local filesystem, keyed by an
// opaque ref of the form <conversation_id>/<uuid><ext>.
type LocalStorage struct {
	basePath string
	log      zerolog.Logger
	disabled bool
}

// NewLocalStorage creates a filesystem-backed attachment store. An empty
// base path disables the store; saves then fail, loads of old refs too.
func NewLocalStorage(basePath string, log zerolog.Logger) (*LocalStorage, error) {
	logger := log.With().Str("component", "attachment-storage").Logger()

	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		logger.Warn().Msg("CONVERSATION_ATTACHMENT_PATH is not set; attachment storage will be disabled")
		return &LocalStorage{log: logger, disabled: true}, nil
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create attachment storage directory: %w", err)
	}

	logger.Info().Str("path", basePath).Msg("attachment storage initialized")
	return &LocalStorage{basePath: basePath, log: logger}, nil
}

var _ conversation.AttachmentStore = (*LocalStorage)(nil)

func (l *LocalStorage) ensureEnabled() error {
	if l.disabled {
		return errLocalStorageDisabled
	}
	return nil
}

// Save writes attachment bytes and returns the ref to persist.
func (l *LocalStorage) Save(ctx context.Context, conversationID string, data []byte, mimeType string) (string, error) {
	if err := l.ensureEnabled(); err != nil {
		return "", err
	}

	ref := fmt.Sprintf("%s/%s%s", conversationID, uuid.NewString(), extensionFor(mimeType))
	fullPath := filepath.Join(l.basePath, filepath.FromSlash(ref))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}

	l.log.Debug().
		Str("ref", ref).
		Int("bytes", len(data)).
		Msg("attachment saved")
	return ref, nil
}

// Load reads attachment bytes by ref.
func (l *LocalStorage) Load(ctx context.Context, ref string) ([]byte, error) {
	if err := l.ensureEnabled(); err != nil {
		return nil, err
	}

	fullPath, err := l.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("attachment not found: %s", ref)
		}
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	return data, nil
}

// Remove deletes attachment bytes by ref. Removing a missing ref is not an
// error; delete flows retry.
func (l *LocalStorage) Remove(ctx context.Context, ref string) error {
	if err := l.ensureEnabled(); err != nil {
		return err
	}

	fullPath, err := l.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove attachment: %w", err)
	}
	return nil
}

// Health checks if the storage directory is writable.
func (l *LocalStorage) Health(ctx context.Context) error {
	if l.disabled {
		return nil
	}

	testFile := filepath.Join(l.basePath, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0644); err != nil {
		return fmt.Errorf("storage directory not writable: %w", err)
	}
	_ = os.Remove(testFile)
	return nil
}

// resolve maps a ref to an absolute path and rejects traversal outside the
// base directory.
func (l *LocalStorage) resolve(ref string) (string, error) {
	fullPath := filepath.Join(l.basePath, filepath.FromSlash(ref))
	if !strings.HasPrefix(fullPath, filepath.Clean(l.basePath)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid attachment ref: %s", ref)
	}
	return fullPath, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "text/plain":
		return ".txt"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}
