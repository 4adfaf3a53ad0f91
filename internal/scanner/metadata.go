package scanner

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// Extensions that mark a file as binary without reading its contents.
var binaryExtensions = map[string]struct{}{
	// Images
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".ico": {},
	".webp": {}, ".tiff": {}, ".psd": {},
	// Audio / video
	".mp3": {}, ".wav": {}, ".ogg": {}, ".flac": {}, ".aac": {},
	".mp4": {}, ".avi": {}, ".mov": {}, ".mkv": {}, ".webm": {},
	// Archives
	".zip": {}, ".rar": {}, ".7z": {}, ".tar": {}, ".gz": {}, ".bz2": {},
	".xz": {}, ".iso": {},
	// Documents
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
	".ppt": {}, ".pptx": {},
	// Executables and compiled artifacts
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".bin": {},
	".pyc": {}, ".class": {}, ".o": {}, ".a": {},
	// Fonts
	".ttf": {}, ".otf": {}, ".woff": {}, ".woff2": {}, ".eot": {},
	// Databases
	".db": {}, ".sqlite": {}, ".sqlite3": {},
}

// FileMetadata describes one filesystem entry seen by a scan. It is filled
// during the walk and read-only afterward.
type FileMetadata struct {
	Path        string    `json:"path"`
	RelPath     string    `json:"rel_path"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	IsDir       bool      `json:"is_dir"`
	Extension   string    `json:"extension,omitempty"`
	ModTime     time.Time `json:"mod_time"`
	Permissions string    `json:"permissions"`
	IsHidden    bool      `json:"is_hidden"`
	IsBinary    bool      `json:"is_binary"`
}

func newFileMetadata(abs, rel string, isDir bool, info fs.FileInfo) FileMetadata {
	m := FileMetadata{
		Path:    abs,
		RelPath: rel,
		Name:    filepath.Base(abs),
		IsDir:   isDir,
	}
	m.IsHidden = strings.HasPrefix(m.Name, ".")
	if info != nil {
		m.ModTime = info.ModTime()
		m.Permissions = info.Mode().String()
		if !isDir {
			m.Size = info.Size()
		}
	}
	if !isDir {
		m.Extension = strings.ToLower(filepath.Ext(m.Name))
		_, m.IsBinary = binaryExtensions[m.Extension]
	}
	return m
}
