package views

// SiteInfo holds the few site-wide values the report page displays.
type SiteInfo struct {
	Name string // site/project name shown in the header
	URL  string // canonical site URL, if configured
}

// RunView is one build-history row, pre-formatted for display.
type RunView struct {
	ID       string
	Started  string
	Duration string
	Files    int
	Errors   int
}

// AssetView is one produced output file, pre-formatted for display.
type AssetView struct {
	Path string // output path relative to the serve root
	Kind string
	Size string // human-readable size
}
