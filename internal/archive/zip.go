// Package archive implements the zip container format used by full backup
// artifacts.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ledgersafe/internal/engine"
)

// ZipArchiver packs and unpacks deflate-compressed zip archives.
type ZipArchiver struct{}

func NewZipArchiver() *ZipArchiver { return &ZipArchiver{} }

// Compress packs the contents of srcDir into a new zip at destPath. Entry
// names are srcDir-relative with forward slashes; directory entries are
// written so empty directories survive the round trip.
func (a *ZipArchiver) Compress(srcDir, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}

	zw := zip.NewWriter(out)
	err = filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return fmt.Errorf("calculating relative path: %w", err)
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(rel)

		if d.IsDir() {
			if _, err := zw.Create(name + "/"); err != nil {
				return fmt.Errorf("writing directory entry %s: %w", name, err)
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		w, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("writing entry %s: %w", name, err)
		}
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("opening %s: %w", p, err)
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("compressing %s: %w", p, err)
		}
		return nil
	})
	if err != nil {
		zw.Close()
		out.Close()
		os.Remove(destPath)
		return err
	}

	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(destPath)
		return fmt.Errorf("finalizing archive: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("closing archive: %w", err)
	}
	return nil
}

// Extract unpacks the zip at srcPath into destDir, rejecting entries whose
// resolved path would escape destDir.
func (a *ZipArchiver) Extract(srcPath, destDir string) error {
	zr, err := zip.OpenReader(srcPath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	for _, entry := range zr.File {
		target, err := safeJoin(destDir, entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating directory %s: %w", entry.Name, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("creating parent of %s: %w", entry.Name, err)
		}
		if err := extractFile(entry, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(entry *zip.File, target string) error {
	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("opening entry %s: %w", entry.Name, err)
	}
	defer rc.Close()

	mode := entry.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extracting %s: %w", entry.Name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", target, err)
	}
	return nil
}

// safeJoin joins an archive entry name under destDir, rejecting traversal.
func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	if target != destDir && !strings.HasPrefix(target, destDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return target, nil
}

// Compile-time check that ZipArchiver implements engine.Archiver
var _ engine.Archiver = (*ZipArchiver)(nil)
