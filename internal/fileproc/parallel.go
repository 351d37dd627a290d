// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/iter"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e ProcessingError) Unwrap() error { return e.Err }

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// Unwrap returns nil (ProcessingErrors doesn't wrap a single error).
func (e *ProcessingErrors) Unwrap() error {
	return nil
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
const DefaultWorkerMultiplier = 2

// ProgressFunc is called after each file is processed.
type ProgressFunc func()

type outcome[T any] struct {
	value T
	err   error
}

// Map processes files in parallel and returns the successful results in
// input order. Failed files are collected into the returned
// *ProcessingErrors, which is nil when every file succeeded. Files not
// yet started when ctx is cancelled fail with the context error.
func Map[T any](ctx context.Context, files []string, fn func(context.Context, string) (T, error), onProgress ProgressFunc) ([]T, *ProcessingErrors) {
	return MapN(ctx, files, 0, fn, onProgress)
}

// MapN is Map with a configurable worker count. If maxWorkers is <= 0,
// defaults to 2x NumCPU.
func MapN[T any](ctx context.Context, files []string, maxWorkers int, fn func(context.Context, string) (T, error), onProgress ProgressFunc) ([]T, *ProcessingErrors) {
	if len(files) == 0 {
		return nil, nil
	}
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU() * DefaultWorkerMultiplier
	}

	mapper := iter.Mapper[string, outcome[T]]{MaxGoroutines: maxWorkers}
	outcomes := mapper.Map(files, func(path *string) outcome[T] {
		if onProgress != nil {
			defer onProgress()
		}
		if err := ctx.Err(); err != nil {
			return outcome[T]{err: err}
		}
		v, err := fn(ctx, *path)
		return outcome[T]{value: v, err: err}
	})

	results := make([]T, 0, len(files))
	var errs *ProcessingErrors
	for i, o := range outcomes {
		if o.err != nil {
			if errs == nil {
				errs = &ProcessingErrors{}
			}
			errs.Add(files[i], o.err)
			continue
		}
		results = append(results, o.value)
	}
	return results, errs
}
