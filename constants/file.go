package constants

import "strings"

// FileType is the classified kind of an uploaded document.
type FileType string

const (
	IMAGE FileType = "IMAGE"
	PDF   FileType = "PDF"
	TEXT  FileType = "TEXT"
)

// FileTypes holds the stored values for the file_type column in parse_jobs.
var FileTypes = []FileType{IMAGE, PDF, TEXT}

// extFormats maps a normalized extension to its file type.
var extFormats = map[string]FileType{
	"jpg":  IMAGE,
	"jpeg": IMAGE,
	"png":  IMAGE,
	"gif":  IMAGE,
	"bmp":  IMAGE,
	"pdf":  PDF,
	"txt":  TEXT,
}

// AllowedExtensions holds the extensions accepted for receipt ingestion.
var AllowedExtensions = func() map[string]struct{} {
	m := make(map[string]struct{}, len(extFormats))
	for ext := range extFormats {
		m[ext] = struct{}{}
	}
	return m
}()

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToFormat returns the file type for an extension, or "" when unsupported.
func MapExtToFormat(ext string) FileType {
	return extFormats[NormalizeExt(ext)]
}
