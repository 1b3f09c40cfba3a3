// Package scratch owns the lifecycle of uploaded documents on durable scratch
// storage. The manager itself never retries and never cleans up behind a
// caller; the processing boundary pairs every Save with exactly one Delete.
package scratch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oluwaseun-a/po-tracker/internal/failure"
)

// FileInfo is the subset of stat data the pipeline cares about.
type FileInfo struct {
	Size          int64
	CreatedAt     time.Time
	ModifiedAt    time.Time
	IsRegularFile bool
}

// Manager materializes uploads under a single scratch directory.
type Manager struct {
	dir    string
	logger *slog.Logger
}

// NewManager ensures dir exists and is writable.
// Returns a configuration-kind failure otherwise.
func NewManager(dir string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, failure.Configuration("scratch directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, failure.Configuration("scratch directory %q is not usable: %v", dir, err)
	}
	probe := filepath.Join(dir, ".probe-"+uuid.New().String())
	if err := os.WriteFile(probe, nil, 0o600); err != nil {
		return nil, failure.Configuration("scratch directory %q is not writable: %v", dir, err)
	}
	_ = os.Remove(probe)
	return &Manager{dir: dir, logger: logger}, nil
}

// Dir returns the scratch directory path.
func (m *Manager) Dir() string {
	return m.dir
}

// Save writes the upload under a collision-resistant name (monotonic
// timestamp + short id + sanitized original name) and returns its path.
func (m *Manager) Save(data []byte, originalName string) (string, error) {
	name := fmt.Sprintf("%d_%s_%s", time.Now().UnixNano(), uuid.New().String()[:8], SanitizeName(originalName))
	path := filepath.Join(m.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		m.logger.Error("scratch.save.failed", "name", originalName, "error", err)
		return "", failure.Processingf(err, "save scratch file %q", originalName)
	}
	m.logger.Debug("scratch.save.ok", "path", path, "bytes", len(data))
	return path, nil
}

// Read returns the file contents.
func (m *Manager) Read(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		m.logger.Error("scratch.read.failed", "path", path, "error", err)
		return nil, failure.Processingf(err, "read scratch file %q", path)
	}
	return b, nil
}

// Stat describes the file at path.
func (m *Manager) Stat(path string) (FileInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, failure.Processingf(err, "stat scratch file %q", path)
	}
	return FileInfo{
		Size:          st.Size(),
		CreatedAt:     st.ModTime(), // birth time is not portable; mtime of an immutable scratch file is creation
		ModifiedAt:    st.ModTime(),
		IsRegularFile: st.Mode().IsRegular(),
	}, nil
}

// Delete removes the file. Idempotent: a missing file is logged and ignored,
// so releasing an already-released scratch file never raises.
func (m *Manager) Delete(path string) error {
	err := os.Remove(path)
	switch {
	case err == nil:
		m.logger.Debug("scratch.delete.ok", "path", path)
		return nil
	case os.IsNotExist(err):
		m.logger.Warn("scratch.delete.already_gone", "path", path)
		return nil
	default:
		m.logger.Error("scratch.delete.failed", "path", path, "error", err)
		return failure.Processingf(err, "delete scratch file %q", path)
	}
}

// CleanupAll deletes every entry in the scratch directory, attempting each
// independently. Files removed by concurrent in-flight work are expected and
// not counted as failures.
func (m *Manager) CleanupAll() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return failure.Processingf(err, "list scratch directory %q", m.dir)
	}

	var failed int
	for _, e := range entries {
		p := filepath.Join(m.dir, e.Name())
		if rmErr := os.Remove(p); rmErr != nil && !os.IsNotExist(rmErr) {
			m.logger.Warn("scratch.cleanup.entry_failed", "path", p, "error", rmErr)
			failed++
		}
	}
	m.logger.Info("scratch.cleanup.done", "entries", len(entries), "failed", failed)
	if failed > 0 {
		return failure.Processing(fmt.Sprintf("cleanup left %d of %d entries", failed, len(entries)), nil, nil)
	}
	return nil
}

// SanitizeName strips path separators and shell-hostile characters from an
// original filename so it can be embedded in a scratch name.
func SanitizeName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "upload"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
