package engine

import (
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/formbench/formbench/internal/support/exception"
	"github.com/formbench/formbench/internal/support/logger"
)

const moduleName = "engine"

// Registry holds the layout detectors and OCR engines available to test
// runs, keyed by lowercased library name.
type Registry struct {
	mu      sync.RWMutex
	layouts map[string]LayoutDetector
	ocrs    map[string]OCREngine
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		layouts: make(map[string]LayoutDetector),
		ocrs:    make(map[string]OCREngine),
	}
}

// RegisterLayout adds a layout detector under its name.
func (r *Registry) RegisterLayout(d LayoutDetector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := strings.ToLower(d.Name())
	if _, exists := r.layouts[name]; exists {
		logger.Warnf("Layout detector '%s' already registered. Overwriting.", name)
	}
	r.layouts[name] = d
}

// RegisterOCR adds an OCR engine under its name.
func (r *Registry) RegisterOCR(e OCREngine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := strings.ToLower(e.Name())
	if _, exists := r.ocrs[name]; exists {
		logger.Warnf("OCR engine '%s' already registered. Overwriting.", name)
	}
	r.ocrs[name] = e
}

// Layout resolves a layout detector by name (case-insensitive). An unknown
// name is a validation error.
func (r *Registry) Layout(name string) (LayoutDetector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.layouts[strings.ToLower(name)]
	if !ok {
		return nil, exception.NewAppErrorf(moduleName, exception.KindValidation,
			"unknown layout library: %s", name)
	}
	return d, nil
}

// OCR resolves an OCR engine by name (case-insensitive). An unknown name is
// a validation error.
func (r *Registry) OCR(name string) (OCREngine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.ocrs[strings.ToLower(name)]
	if !ok {
		return nil, exception.NewAppErrorf(moduleName, exception.KindValidation,
			"unknown OCR library: %s", name)
	}
	return e, nil
}

// HasLayout reports whether a layout detector is registered.
func (r *Registry) HasLayout(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.layouts[strings.ToLower(name)]
	return ok
}

// HasOCR reports whether an OCR engine is registered.
func (r *Registry) HasOCR(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ocrs[strings.ToLower(name)]
	return ok
}

// LayoutNames returns the registered layout library names, sorted.
func (r *Registry) LayoutNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.layouts))
	for name := range r.layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OCRNames returns the registered OCR library names, sorted.
func (r *Registry) OCRNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ocrs))
	for name := range r.ocrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CloseAll closes every registered adapter that holds resources.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result *multierror.Error
	for name, d := range r.layouts {
		if closer, ok := d.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		delete(r.layouts, name)
	}
	for name, e := range r.ocrs {
		if closer, ok := e.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		delete(r.ocrs, name)
	}
	return result.ErrorOrNil()
}
