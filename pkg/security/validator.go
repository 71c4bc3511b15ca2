package security

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
)

// Validator guards what the coordinator reads from the image pool and how
// much it uploads in one run.
type Validator struct {
	maxFileSize  int64
	maxTotalSize int64

	mu               sync.Mutex
	currentTotalSize int64
}

// NewValidator creates a new security validator. A limit <= 0 disables
// that check.
func NewValidator(maxFileSize, maxTotalSize int64) *Validator {
	slog.Info("security_validator_init",
		"max_file_size_mb", maxFileSize/1024/1024,
		"max_total_size_mb", maxTotalSize/1024/1024)

	return &Validator{
		maxFileSize:  maxFileSize,
		maxTotalSize: maxTotalSize,
	}
}

// ValidateDirectory checks that a resolved vendor directory stays inside the
// images root.
func (v *Validator) ValidateDirectory(dir string) error {
	if dir == "" {
		slog.Error("security_path_validation_failed", "path", dir, "reason", "empty")
		return fmt.Errorf("security: empty directory")
	}
	return v.validateRelative(dir)
}

// ValidateName checks that a candidate file name is a single path element.
func (v *Validator) ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		slog.Error("security_path_validation_failed", "path", name, "reason", "not_a_file_name")
		return fmt.Errorf("security: invalid file name: %q", name)
	}
	return nil
}

func (v *Validator) validateRelative(p string) error {
	// Reject absolute paths
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		slog.Error("security_path_validation_failed", "path", p, "reason", "absolute_path")
		return fmt.Errorf("security: absolute path not allowed: %s", p)
	}

	clean := filepath.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		slog.Error("security_path_validation_failed", "path", p, "reason", "path_traversal")
		return fmt.Errorf("security: path traversal detected: %s", p)
	}
	return nil
}

// ValidateFileSize checks if an image exceeds max file size
func (v *Validator) ValidateFileSize(size int64) error {
	if v.maxFileSize > 0 && size > v.maxFileSize {
		slog.Error("security_file_size_exceeded",
			"file_size_mb", size/1024/1024,
			"max_file_size_mb", v.maxFileSize/1024/1024)
		return fmt.Errorf("security: file size %d exceeds max %d", size, v.maxFileSize)
	}
	return nil
}

// AddUploadedSize reserves size bytes of the run budget. A rejected
// reservation is not counted.
func (v *Validator) AddUploadedSize(size int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.maxTotalSize > 0 && v.currentTotalSize+size > v.maxTotalSize {
		slog.Error("security_total_size_exceeded",
			"current_total_mb", v.currentTotalSize/1024/1024,
			"max_total_mb", v.maxTotalSize/1024/1024,
			"file_size_mb", size/1024/1024)
		return fmt.Errorf("security: run upload size %d exceeds max %d",
			v.currentTotalSize+size, v.maxTotalSize)
	}
	v.currentTotalSize += size
	return nil
}

// Reset resets the total size counter
func (v *Validator) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.currentTotalSize = 0
}

// GetCurrentTotalSize returns the bytes reserved so far
func (v *Validator) GetCurrentTotalSize() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.currentTotalSize
}
