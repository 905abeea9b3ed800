// Package backup archives the run state files so a prefill or survey can be restored later.
package backup

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kelsos/design-survey/internal/logger"
)

// GetDefaultBackupDir returns the default backup directory
func GetDefaultBackupDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".design-survey", "backups"), nil
}

// CreateBackup zips the given state files into backupDir and returns the archive path.
// Files that do not exist yet are skipped; at least one file must exist.
func CreateBackup(backupDir string, files ...string) (string, error) {
	if backupDir == "" {
		var err error
		backupDir, err = GetDefaultBackupDir()
		if err != nil {
			return "", fmt.Errorf("failed to get default backup directory: %w", err)
		}
	}
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	var existing []string
	for _, path := range files {
		if ShouldIncludeInBackup(path) {
			existing = append(existing, path)
		}
	}
	if len(existing) == 0 {
		return "", fmt.Errorf("nothing to back up: none of %v exist", files)
	}

	timestamp := time.Now().Format("20060102_150405")
	backupFile := filepath.Join(backupDir, fmt.Sprintf("design-survey_backup_%s.zip", timestamp))

	zipFile, err := os.Create(backupFile)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}

	zipWriter := zip.NewWriter(zipFile)
	for _, path := range existing {
		if err := AddToZip(zipWriter, path); err != nil {
			zipWriter.Close()
			zipFile.Close()
			os.Remove(backupFile)
			return "", fmt.Errorf("failed to create backup: %w", err)
		}
	}

	if err := errors.Join(zipWriter.Close(), zipFile.Close()); err != nil {
		return "", fmt.Errorf("failed to finish backup: %w", err)
	}

	logger.Info("Backup of %d files created: %s", len(existing), backupFile)
	return backupFile, nil
}

// AddToZip stores the file under its base name.
func AddToZip(zipWriter *zip.Writer, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create file header: %w", err)
	}
	header.Name = filepath.Base(path)
	header.Method = zip.Deflate

	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create file in zip: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(writer, file); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	logger.Debug("Added file to backup: %s", path)
	return nil
}

// ShouldIncludeInBackup reports whether path is an existing regular file.
func ShouldIncludeInBackup(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		logger.Debug("Skipping missing file: %s", path)
		return false
	}
	return info.Mode().IsRegular()
}
