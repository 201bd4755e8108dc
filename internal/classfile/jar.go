package classfile

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
)

// ScanJAR walks every ".class" entry of a JAR (or any zip-format
// container) and invokes onClass with the entry's internal path and raw
// bytes. It stops at the first read error; malformed individual class
// entries are the caller's concern via ScanClass.
func ScanJAR(zr *zip.Reader, onClass func(entryPath string, data []byte) error) error {
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ".class") {
			continue
		}
		data, err := readZipEntry(f)
		if err != nil {
			return fmt.Errorf("classfile: reading jar entry %q: %w", f.Name, err)
		}
		if err := onClass(f.Name, data); err != nil {
			return err
		}
	}
	return nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
