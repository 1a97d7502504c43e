package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/receipt-parser/constants"
)

// ErrUnsupportedFileType is returned for filenames whose extension is not accepted.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// Classify maps a declared filename to a file type by its extension.
// It never touches file contents.
func Classify(filename string) (constants.FileType, error) {
	ext := extOf(filename)
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedFileType, filename)
	}
	ft := constants.MapExtToFormat(ext)
	if ft == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}
	return ft, nil
}

// extOf returns the normalized extension; dotfiles like ".pdf" have none.
func extOf(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	base = strings.TrimLeft(base, ".")
	return constants.NormalizeExt(filepath.Ext(base))
}
