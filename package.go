package colly

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/silinternational/colly/internal"
)

// packageExcludes are lambda directory entries that never go into the deployment package.
var packageExcludes = []string{LambdaConfigFile, ".env"}

// BuildPackage zips the contents of dir for upload. Config files and local plugin
// builds ending in skipExt are left out. File modes are preserved so a bootstrap
// binary stays executable.
func BuildPackage(dir, skipExt string) ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if internal.IsStringInSlice(rel, packageExcludes) || (skipExt != "" && strings.HasSuffix(rel, skipExt)) {
			return nil
		}

		return addFileToZip(zw, path, filepath.ToSlash(rel))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to package %s: %w", dir, err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish package for %s: %w", dir, err)
	}
	return buf.Bytes(), nil
}

func addFileToZip(zw *zip.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
