package chunker

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/nwestbury/ragindex/internal/models"
)

// anonymousNode is recorded as the node name when a declaration has no
// identifiable name.
const anonymousNode = "anonymous"

// ASTChunker chunks Go source along top-level declaration boundaries
// instead of raw line breaks. It emits, in order: one chunk for the
// contiguous run of import declarations (when configured), one chunk per
// top-level declaration of at least minNodeSize lines, and one chunk per
// exported top-level declaration regardless of size. Declarations below
// minNodeSize are dropped, not merged into neighbours.
type ASTChunker struct {
	cfg      Config
	filePath string
	fileType string
	kinds    map[string]bool // nil means all kinds allowed
}

// NewASTChunker creates an AST chunker for one source file.
func NewASTChunker(cfg Config, filePath, fileType string) *ASTChunker {
	var kinds map[string]bool
	if len(cfg.NodeKinds) > 0 {
		kinds = make(map[string]bool, len(cfg.NodeKinds))
		for _, k := range cfg.NodeKinds {
			kinds[k] = true
		}
	}
	return &ASTChunker{cfg: cfg, filePath: filePath, fileType: fileType, kinds: kinds}
}

// Chunk parses text as a Go source file and emits declaration-aligned
// chunks. Invalid syntax yields a ChunkingError wrapping the parse error.
func (c *ASTChunker) Chunk(text string) ([]models.ChunkResult, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, c.filePath, text, parser.ParseComments)
	if err != nil {
		return nil, &ChunkingError{Strategy: StrategyAST, Err: err}
	}
	lines := strings.Split(text, "\n")

	var out []models.ChunkResult
	if c.cfg.IncludeImports {
		if imp, ok := c.importChunk(fset, file, lines); ok {
			out = append(out, imp)
		}
	}

	for _, decl := range file.Decls {
		kind, name, doc := describeDecl(decl)
		if kind == "" || (c.kinds != nil && !c.kinds[kind]) {
			continue
		}
		start := fset.Position(decl.Pos()).Line
		end := fset.Position(decl.End()).Line
		if end-start+1 < c.cfg.MinNodeSize {
			continue
		}
		contentStart := start
		if c.cfg.IncludeComments && doc != nil {
			contentStart = fset.Position(doc.Pos()).Line
		}
		out = append(out, c.nodeChunk(lines, contentStart, end, map[string]any{
			"node_kind": kind,
			"node_name": name,
		}))
	}

	// Exported declarations are collected in a separate pass and emitted
	// regardless of size; these chunks may overlap the declaration chunks.
	for _, decl := range file.Decls {
		kind, name, _ := describeDecl(decl)
		if kind == "" || !declExported(decl) {
			continue
		}
		start := fset.Position(decl.Pos()).Line
		end := fset.Position(decl.End()).Line
		out = append(out, c.nodeChunk(lines, start, end, map[string]any{
			"node_kind": kind,
			"node_name": name,
			"exported":  true,
		}))
	}
	return out, nil
}

// importChunk covers the contiguous run of top-level import declarations.
func (c *ASTChunker) importChunk(fset *token.FileSet, file *ast.File, lines []string) (models.ChunkResult, bool) {
	start, end := 0, 0
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.IMPORT {
			continue
		}
		s := fset.Position(gen.Pos()).Line
		e := fset.Position(gen.End()).Line
		if start == 0 {
			start = s
		}
		if e > end {
			end = e
		}
	}
	if start == 0 {
		return models.ChunkResult{}, false
	}
	return c.nodeChunk(lines, start, end, map[string]any{"node_kind": "import"}), true
}

func (c *ASTChunker) nodeChunk(lines []string, start, end int, extra map[string]any) models.ChunkResult {
	if end > len(lines) {
		end = len(lines)
	}
	content := strings.Join(lines[start-1:end], "\n")
	return models.ChunkResult{
		Content:  content,
		Metadata: newMetadata(c.filePath, c.fileType, start, end, EstimateTokens(content), extra),
	}
}

// describeDecl classifies a top-level declaration. The empty kind means
// the declaration does not produce chunks (imports are handled separately).
func describeDecl(decl ast.Decl) (kind, name string, doc *ast.CommentGroup) {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		name = anonymousNode
		if d.Name != nil && d.Name.Name != "" {
			name = d.Name.Name
		}
		return "func", name, d.Doc
	case *ast.GenDecl:
		switch d.Tok {
		case token.TYPE:
			kind = "type"
		case token.VAR:
			kind = "var"
		case token.CONST:
			kind = "const"
		default:
			return "", "", nil
		}
		return kind, specName(d), d.Doc
	}
	return "", "", nil
}

// specName returns the first declared identifier of a GenDecl, or the
// anonymous sentinel when none is identifiable.
func specName(d *ast.GenDecl) string {
	for _, spec := range d.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			if s.Name != nil && s.Name.Name != "" {
				return s.Name.Name
			}
		case *ast.ValueSpec:
			if len(s.Names) > 0 && s.Names[0].Name != "" {
				return s.Names[0].Name
			}
		}
	}
	return anonymousNode
}

// declExported reports whether a top-level declaration declares at least
// one exported identifier.
func declExported(decl ast.Decl) bool {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		return d.Name != nil && d.Name.IsExported()
	case *ast.GenDecl:
		if d.Tok == token.IMPORT {
			return false
		}
		for _, spec := range d.Specs {
			switch s := spec.(type) {
			case *ast.TypeSpec:
				if s.Name != nil && s.Name.IsExported() {
					return true
				}
			case *ast.ValueSpec:
				for _, n := range s.Names {
					if n.IsExported() {
						return true
					}
				}
			}
		}
	}
	return false
}
