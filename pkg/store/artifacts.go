// Package store persists synthesized audio to uniquely named files pending
// playback.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/morioka22/ncb-tts-r2/pkg/errorsx"
)

const (
	DefaultDir       = "audio"
	DefaultExtension = "mp3"

	filePermissions = 0o600
	dirPermissions  = 0o750
)

// ArtifactStore writes audio bytes under dir as {uuid}.{ext}. Ownership of a
// written file transfers to the playback connector; the sweeper reclaims
// anything left behind.
type ArtifactStore struct {
	dir    string
	ext    string
	logger *slog.Logger
	now    func() time.Time
}

func NewArtifactStore(dir, ext string, logger *slog.Logger) *ArtifactStore {
	if dir == "" {
		dir = DefaultDir
	}
	if ext == "" {
		ext = DefaultExtension
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ArtifactStore{
		dir:    dir,
		ext:    strings.TrimPrefix(ext, "."),
		logger: logger.With(slog.String("component", "artifact_store")),
		now:    time.Now,
	}
}

// Store writes audio to a fresh file and returns its path. The directory is
// created on first use.
func (s *ArtifactStore) Store(audio []byte) (string, error) {
	if err := os.MkdirAll(s.dir, dirPermissions); err != nil {
		return "", errorsx.Wrap(fmt.Errorf("create artifact directory: %w", err), errorsx.ReasonArtifactWrite)
	}
	path := filepath.Join(s.dir, uuid.NewString()+"."+s.ext)
	if err := os.WriteFile(path, audio, filePermissions); err != nil {
		return "", errorsx.Wrap(fmt.Errorf("write artifact: %w", err), errorsx.ReasonArtifactWrite)
	}
	return path, nil
}

// Sweep deletes artifacts older than the retention window and returns how
// many were removed. Files with a foreign extension are left alone.
func (s *ArtifactStore) Sweep(retention time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read artifact directory: %w", err)
	}
	cutoff := s.now().Add(-retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "."+s.ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			s.logger.Warn("failed to remove artifact",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()))
			continue
		}
		removed++
	}
	return removed, nil
}
