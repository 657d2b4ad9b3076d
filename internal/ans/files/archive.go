package files

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/farxc/ans-expenses/internal/logger"
)

// archiveTime is stamped on every zip entry so reruns produce identical archives
var archiveTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// ZipFile packs src into a new archive at dst, under its base name
func ZipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	zw := zip.NewWriter(out)
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     filepath.Base(src),
		Method:   zip.Deflate,
		Modified: archiveTime,
	})
	if err == nil {
		_, err = io.Copy(w, in)
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}

var tabularExt = map[string]bool{".csv": true, ".txt": true, ".xlsx": true}

// IsTabular reports whether path has an extension the normalizer accepts
func IsTabular(path string) bool {
	return tabularExt[strings.ToLower(filepath.Ext(path))]
}

// UnzipQuarter extracts the tabular members of a quarterly archive into
// destDir, renamed after stem: the first member becomes stem.csv, the next
// stem_2.csv and so on. Member order is the archive's name order.
func UnzipQuarter(zipPath, destDir, stem string, appLogger *logger.Logger) ([]string, error) {
	const component = "Unzipper"

	appLogger.Debug(component, "Starting extraction: zipPath=%s destDir=%s", zipPath, destDir)

	if err := os.MkdirAll(destDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", destDir, err)
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip file %s: %w", zipPath, err)
	}
	defer r.Close()

	members := make([]*zip.File, 0, len(r.File))
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if !IsTabular(f.Name) {
			appLogger.Debug(component, "Skipping unused file: file=%s", f.Name)
			continue
		}
		members = append(members, f)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })

	var extracted []string
	for i, f := range members {
		name := stem
		if i > 0 {
			name = fmt.Sprintf("%s_%d", stem, i+1)
		}
		name += strings.ToLower(filepath.Ext(f.Name))
		filePath := filepath.Join(destDir, name)

		if !strings.HasPrefix(filePath, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return extracted, fmt.Errorf("invalid file path detected (possible zip slip): %s", f.Name)
		}

		if err := extractMember(f, filePath); err != nil {
			return extracted, err
		}
		extracted = append(extracted, filePath)
	}

	appLogger.Info(component, "Extraction completed: destDir=%s extractedFiles=%d skippedFiles=%d", destDir, len(extracted), len(r.File)-len(members))
	return extracted, nil
}

func extractMember(f *zip.File, filePath string) error {
	zipped, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open zipped file %s: %w", f.Name, err)
	}
	defer zipped.Close()

	dest, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", filePath, err)
	}
	if _, err := io.Copy(dest, zipped); err != nil {
		dest.Close()
		return fmt.Errorf("failed to extract file %s: %w", f.Name, err)
	}
	return dest.Close()
}

// Checksum returns the hex xxhash64 digest of a file's content
func Checksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// ListInputs walks root and returns the tabular files in lexical path order
func ListInputs(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsTabular(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
