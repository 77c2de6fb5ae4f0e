package port

type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}

// ExtractedText is the raw text of a source file plus whatever document
// properties the format carries.
type ExtractedText struct {
	Text       string
	SourceType string
	Title      string
	Author     string
	Subject    string
	Creator    string
	Producer   string
	PageCount  int
}

type TextExtractor interface {
	Extract(path string) (ExtractedText, error)
}
