package kiln

import "time"

// Kind is the transform category a source file belongs to.
type Kind string

const (
	KindImage Kind = "image"
	KindCSS   Kind = "css"
	KindJS    Kind = "js"
	KindHTML  Kind = "html"
	KindOther Kind = "other"
)

// Asset describes one successfully produced output file. A single source
// may yield several assets (e.g. photo.webp and photo.jpg from photo.jpg).
type Asset struct {
	Source string // absolute source path
	Path   string // absolute output path
	Kind   Kind
	Size   int64 // output size in bytes
}

// TransformError records one failed per-file transform. The run continues
// past it; the failure only surfaces in the summary and the exit code.
type TransformError struct {
	Kind    Kind
	Source  string
	Message string
}

// KindTotals aggregates output counts and bytes for one kind.
type KindTotals struct {
	Files int
	Bytes int64
}

// Summary is the final result of one pipeline run. It is built
// incrementally while the run executes and never mutated after Run returns.
type Summary struct {
	RunID    string
	Kinds    map[Kind]KindTotals
	Cached   int
	Warnings int
	Errors   []TransformError
	Duration time.Duration
}

// Failed reports whether any per-file error occurred.
func (s *Summary) Failed() bool {
	return len(s.Errors) > 0
}

// Files returns the total number of successfully transformed source files.
func (s *Summary) Files() int {
	n := 0
	for _, t := range s.Kinds {
		n += t.Files
	}
	return n
}

// Bytes returns the total output size across all kinds.
func (s *Summary) Bytes() int64 {
	var n int64
	for _, t := range s.Kinds {
		n += t.Bytes
	}
	return n
}
