package kiln

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// tally accumulates run results. All methods are safe for concurrent use
// so transforms may run in a bounded pool; every operation is commutative,
// which keeps the final summary independent of completion order.
type tally struct {
	mu      sync.Mutex
	summary Summary
	pages   []string // successfully produced HTML sources, for the sitemap
}

func newTally(runID string) *tally {
	return &tally{summary: Summary{
		RunID: runID,
		Kinds: make(map[Kind]KindTotals),
	}}
}

// success records one transformed source file and its total output bytes.
func (t *tally) success(kind Kind, outBytes int64) {
	t.mu.Lock()
	tot := t.summary.Kinds[kind]
	tot.Files++
	tot.Bytes += outBytes
	t.summary.Kinds[kind] = tot
	t.mu.Unlock()
}

func (t *tally) addError(kind Kind, source string, err error) {
	t.mu.Lock()
	t.summary.Errors = append(t.summary.Errors, TransformError{
		Kind:    kind,
		Source:  source,
		Message: err.Error(),
	})
	t.mu.Unlock()
}

func (t *tally) warning() {
	t.mu.Lock()
	t.summary.Warnings++
	t.mu.Unlock()
}

func (t *tally) cached() {
	t.mu.Lock()
	t.summary.Cached++
	t.mu.Unlock()
}

func (t *tally) addPage(src string) {
	t.mu.Lock()
	t.pages = append(t.pages, src)
	t.mu.Unlock()
}

func (t *tally) htmlPages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	pages := make([]string, len(t.pages))
	copy(pages, t.pages)
	sort.Strings(pages)
	return pages
}

// finalize stamps the duration and returns the summary. The tally must not
// be used afterwards.
func (t *tally) finalize(d time.Duration) *Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.Duration = d
	return &t.summary
}

// reportedKinds is the fixed order summary fields are emitted in, so log
// lines stay byte-comparable across runs.
var reportedKinds = []Kind{KindImage, KindCSS, KindJS, KindHTML, KindOther}

func (p *Pipeline) logSummary(log *zap.Logger, sum *Summary) {
	fields := []zap.Field{
		zap.Int("files", sum.Files()),
		zap.Int64("totalBytes", sum.Bytes()),
		zap.Int("cached", sum.Cached),
		zap.Int("warnings", sum.Warnings),
		zap.Int("errors", len(sum.Errors)),
		zap.Duration("duration", sum.Duration),
	}
	for _, kind := range reportedKinds {
		tot := sum.Kinds[kind]
		fields = append(fields,
			zap.Int(string(kind)+"Count", tot.Files),
			zap.Int64(string(kind)+"Bytes", tot.Bytes),
		)
	}
	if sum.Failed() {
		log.Error("build finished with errors", fields...)
		return
	}
	log.Info("build complete", fields...)
}
