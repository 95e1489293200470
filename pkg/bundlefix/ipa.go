package bundlefix

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"
)

// ExtractIPA extracts an IPA file to a temporary directory and returns its
// path. The caller owns the directory and removes it when done; the input
// IPA is never modified, so it doubles as the backup to fall back to if a
// later patch or repack step fails.
func ExtractIPA(ipaPath string) (string, error) {
	tempDir, err := os.MkdirTemp("", "bundlefix-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	r, err := zip.OpenReader(ipaPath)
	if err != nil {
		os.RemoveAll(tempDir)
		return "", fmt.Errorf("failed to open IPA: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := extractArchiveEntry(f, tempDir); err != nil {
			os.RemoveAll(tempDir)
			return "", fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
	}

	return tempDir, nil
}

func extractArchiveEntry(f *zip.File, destDir string) error {
	// Sanitize the entry path to prevent zip slip
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(destPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("invalid entry path: %s", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(destPath, f.Mode())
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}

	destFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer destFile.Close()

	srcFile, err := f.Open()
	if err != nil {
		return err
	}
	defer srcFile.Close()

	_, err = io.Copy(destFile, srcFile)
	return err
}

// FindAppBundle locates the primary .app bundle under Payload/ in an
// extracted IPA.
func FindAppBundle(extractedDir string) (string, error) {
	payloadDir := filepath.Join(extractedDir, "Payload")

	entries, err := os.ReadDir(payloadDir)
	if err != nil {
		return "", fmt.Errorf("failed to read Payload directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() && strings.HasSuffix(entry.Name(), ".app") {
			return filepath.Join(payloadDir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("no .app bundle found in Payload directory")
}

// RepackIPA compresses an extracted archive tree into an IPA at
// outputPath, then reopens the result and checks that its central
// directory is readable and the mandatory Payload/ layout survived. On
// failure the partial output is removed and ErrRepack is returned; the
// caller's original IPA remains intact as the fallback.
func RepackIPA(extractedDir, outputPath string) error {
	if _, err := os.Stat(filepath.Join(extractedDir, "Payload")); err != nil {
		return fmt.Errorf("%w: no Payload directory under %s", ErrRepack, extractedDir)
	}

	if err := writeArchive(extractedDir, outputPath); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("%w: %v", ErrRepack, err)
	}

	if err := verifyArchive(outputPath); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("%w: %v", ErrRepack, err)
	}
	return nil
}

func writeArchive(extractedDir, outputPath string) error {
	outFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer outFile.Close()

	w := zip.NewWriter(outFile)

	err = filepath.Walk(extractedDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == extractedDir {
			return nil
		}

		relPath, err := filepath.Rel(extractedDir, path)
		if err != nil {
			return err
		}
		// ZIP entries always use forward slashes
		zipPath := filepath.ToSlash(relPath)

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		if info.IsDir() {
			header.Name = zipPath + "/"
			_, err := w.CreateHeader(header)
			return err
		}
		header.Name = zipPath
		header.Method = zip.Deflate

		writer, err := w.CreateHeader(header)
		if err != nil {
			return err
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(writer, file)
		return err
	})
	if err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// verifyArchive is an integrity check, not a semantic one: the archive
// must be non-empty, its central directory readable, and at least one
// entry must live under Payload/.
func verifyArchive(ipaPath string) error {
	stat, err := os.Stat(ipaPath)
	if err != nil {
		return err
	}
	if stat.Size() == 0 {
		return fmt.Errorf("archive is empty")
	}

	r, err := zip.OpenReader(ipaPath)
	if err != nil {
		return fmt.Errorf("archive is not readable: %v", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if strings.HasPrefix(f.Name, "Payload/") {
			return nil
		}
	}
	return fmt.Errorf("archive has no Payload/ entries")
}

// ReadBundleIdentifier reads CFBundleIdentifier from a bundle directory's
// Info.plist.
func ReadBundleIdentifier(bundleDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(bundleDir, "Info.plist"))
	if err != nil {
		return "", fmt.Errorf("failed to read Info.plist: %w", err)
	}

	var info map[string]interface{}
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return "", fmt.Errorf("%w: %v", ErrManifestParse, err)
	}

	id, ok := info["CFBundleIdentifier"].(string)
	if !ok {
		return "", fmt.Errorf("CFBundleIdentifier not found in Info.plist")
	}
	return id, nil
}
