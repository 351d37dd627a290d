package analysis

import (
	"context"
	"io"
	"sync"

	"github.com/panbanda/tsqlgraph/internal/fileproc"
	"github.com/panbanda/tsqlgraph/internal/scanner"
	"github.com/panbanda/tsqlgraph/pkg/parser"
)

// FileOptions configures batch file operations.
type FileOptions struct {
	// Stdin is read for the "-" path.
	Stdin      io.Reader
	OnProgress func()
}

// lockedReader lets the single "-" path be read from a worker goroutine.
type lockedReader struct {
	mu sync.Mutex
	r  io.Reader
}

func (l *lockedReader) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.r == nil {
		return 0, io.EOF
	}
	return l.r.Read(p)
}

// LoadUnits reads files in parallel and returns their units in input
// order. Unreadable files are reported in the returned errors.
func (s *Service) LoadUnits(ctx context.Context, files []string, opts FileOptions) ([]parser.Unit, *fileproc.ProcessingErrors) {
	stdin := &lockedReader{r: opts.Stdin}
	return fileproc.Map(ctx, files, func(_ context.Context, path string) (parser.Unit, error) {
		return scanner.LoadUnit(path, stdin)
	}, opts.OnProgress)
}

// AnalyzeFiles analyzes each file as one unit, in parallel, returning the
// reports in input order.
func (s *Service) AnalyzeFiles(ctx context.Context, files []string, opts FileOptions) ([]*Report, *fileproc.ProcessingErrors) {
	stdin := &lockedReader{r: opts.Stdin}
	return fileproc.Map(ctx, files, func(ctx context.Context, path string) (*Report, error) {
		u, err := scanner.LoadUnit(path, stdin)
		if err != nil {
			return nil, err
		}
		return s.Analyze(ctx, Request{Name: u.Name, SQL: u.SQL, Dialect: u.Dialect})
	}, opts.OnProgress)
}
