package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MaxUploadBytes is the fixed ceiling for a single uploaded file.
const MaxUploadBytes = 10 << 20 // 10 MiB

// FileUpload describes an upload to validate. Nothing here is persisted by
// this layer.
type FileUpload struct {
	Name     string
	Size     int64
	MimeType string
}

// UploadResult enumerates every reason a file was rejected. Valid is true
// only when Errors is empty.
type UploadResult struct {
	Valid  bool
	Errors []string
}

var blockedExtensions = map[string]struct{}{
	".exe": {}, ".bat": {}, ".cmd": {}, ".scr": {}, ".pif": {}, ".com": {},
	".php": {}, ".asp": {}, ".aspx": {}, ".jsp": {}, ".js": {}, ".sh": {},
	".ps1": {}, ".vbs": {}, ".jar": {}, ".msi": {}, ".dll": {},
}

var blockedMimeTypes = map[string]struct{}{
	"application/x-msdownload":    {},
	"application/x-msdos-program": {},
	"application/x-sh":            {},
	"application/x-bat":           {},
	"application/x-php":           {},
	"application/javascript":      {},
	"text/javascript":             {},
	"application/java-archive":    {},
}

// ValidateFileUpload checks size, extension, and declared MIME type against
// the upload policy. Violations accumulate rather than short-circuit so the
// result always names every reason for rejection.
func ValidateFileUpload(f FileUpload) UploadResult {
	var errs []string

	if f.Size > MaxUploadBytes {
		errs = append(errs, fmt.Sprintf("file size %d exceeds the %d byte limit", f.Size, MaxUploadBytes))
	}
	if f.Size < 0 {
		errs = append(errs, "file size must not be negative")
	}

	ext := strings.ToLower(filepath.Ext(f.Name))
	if _, blocked := blockedExtensions[ext]; blocked {
		errs = append(errs, fmt.Sprintf("file extension %q is not allowed", ext))
	}

	mime := strings.ToLower(strings.TrimSpace(f.MimeType))
	if _, blocked := blockedMimeTypes[mime]; blocked {
		errs = append(errs, fmt.Sprintf("file type %q is not allowed", mime))
	}

	return UploadResult{Valid: len(errs) == 0, Errors: errs}
}
