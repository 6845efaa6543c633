package processor

import (
	"path/filepath"
	"strings"
)

// DetectFileType maps a path's extension to a file type understood by the
// chunker factory. Unrecognized extensions are returned bare (without the
// dot) and fall through to the line strategy downstream.
func DetectFileType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".go":
		return "go"
	case ".md", ".markdown":
		return "markdown"
	case ".txt", ".text":
		return "text"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return strings.TrimPrefix(ext, ".")
	}
}

// IsCodeFile reports whether the path has a source-code extension the AST
// strategy can parse.
func IsCodeFile(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".go"
}
