package chunker

// Default chunking parameters.
const (
	DefaultMaxTokens   = 1000
	DefaultOverlap     = 200
	DefaultMinNodeSize = 3
)

// StrategyForFileType maps a file type to its default strategy: Go source
// to AST, markdown and plain text to paragraph, structured data and
// anything unrecognized to line (the safe default).
func StrategyForFileType(fileType string) Strategy {
	switch fileType {
	case "go":
		return StrategyAST
	case "markdown", "text":
		return StrategyParagraph
	case "json", "yaml":
		return StrategyLine
	default:
		return StrategyLine
	}
}

// New returns the concrete chunker for cfg.Strategy. MaxTokens defaults to
// DefaultMaxTokens when unset. Unknown strategies fall back to line.
func New(cfg Config, filePath, fileType string) Chunker {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	switch cfg.Strategy {
	case StrategyAST:
		if cfg.MinNodeSize <= 0 {
			cfg.MinNodeSize = DefaultMinNodeSize
		}
		return NewASTChunker(cfg, filePath, fileType)
	case StrategyParagraph:
		return NewParagraphChunker(cfg, filePath, fileType)
	case StrategyLine, StrategyTokenBudget:
		return NewLineChunker(cfg, filePath, fileType)
	default:
		return NewLineChunker(cfg, filePath, fileType)
	}
}

// NewForFile selects the chunker by file type. Code files get the AST
// strategy with imports and adjacent comments included; other types get
// the strategy from StrategyForFileType.
func NewForFile(cfg Config, filePath, fileType string) Chunker {
	cfg.Strategy = StrategyForFileType(fileType)
	if cfg.Strategy == StrategyAST {
		if cfg.MinNodeSize <= 0 {
			cfg.MinNodeSize = DefaultMinNodeSize
		}
		cfg.IncludeImports = true
		cfg.IncludeComments = true
	}
	return New(cfg, filePath, fileType)
}
