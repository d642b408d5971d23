package format

import (
	"errors"
	"fmt"

	"roster-etl/internal/mapper"
	"roster-etl/internal/model"
	"roster-etl/internal/transform"
)

// ErrNotSupported marks a recognized format whose mapping rules are not
// implemented yet. The row is reported, never guessed at.
var ErrNotSupported = errors.New("format recognized but not yet supported")

// Handler bundles the per-format pipeline capabilities: header resolution,
// field mapping, and row transformation. Adding a format means adding one
// handler, not a branch in every stage.
type Handler interface {
	Format() model.SourceFormat
	// Resolve turns the raw table into a single-header view. window bounds
	// the split-header search for formats that use one.
	Resolve(table *model.RawTable, window int) (*ResolvedTable, error)
	// Mappings generates field mappings for the resolved headers. threshold
	// gates the fuzzy fallback.
	Mappings(headers []string, threshold float64) ([]model.FieldMapping, error)
	// Transform fans one data row out into canonical assessment records via
	// emit.
	Transform(headers []string, row []string, emit func(model.AssessmentRecord)) error
}

var handlers = map[model.SourceFormat]Handler{
	model.FormatLinkIt:      linkitHandler{},
	model.FormatGenesis:     unsupportedHandler{format: model.FormatGenesis},
	model.FormatNJSLADirect: unsupportedHandler{format: model.FormatNJSLADirect},
	model.FormatGeneric:     genericHandler{},
}

// HandlerFor returns the handler registered for format.
func HandlerFor(format model.SourceFormat) (Handler, error) {
	h, ok := handlers[format]
	if !ok {
		return nil, fmt.Errorf("no handler registered for format '%s'", format)
	}
	return h, nil
}

// linkitHandler implements the split-header vendor export.
type linkitHandler struct{}

func (linkitHandler) Format() model.SourceFormat { return model.FormatLinkIt }

// Resolve prefers the split main/sub header layout and falls back to
// single-header parsing when the metadata block cannot be located.
func (linkitHandler) Resolve(table *model.RawTable, window int) (*ResolvedTable, error) {
	resolved, err := ResolveSplitHeader(table, window)
	if err == nil {
		return resolved, nil
	}
	return ResolveSingleHeader(table)
}

func (linkitHandler) Mappings(headers []string, threshold float64) ([]model.FieldMapping, error) {
	return mapper.LinkItMappings(headers, threshold), nil
}

func (linkitHandler) Transform(headers []string, row []string, emit func(model.AssessmentRecord)) error {
	return transform.LinkItRow(headers, row, emit)
}

// genericHandler covers unrecognized tables: first row is the header and all
// mappings come from the fuzzy fallback. Generic tables carry no assessment
// blocks, so Transform emits nothing.
type genericHandler struct{}

func (genericHandler) Format() model.SourceFormat { return model.FormatGeneric }

func (genericHandler) Resolve(table *model.RawTable, _ int) (*ResolvedTable, error) {
	return ResolveSingleHeader(table)
}

func (genericHandler) Mappings(headers []string, threshold float64) ([]model.FieldMapping, error) {
	return mapper.GenericMappings(headers, threshold), nil
}

func (genericHandler) Transform([]string, []string, func(model.AssessmentRecord)) error {
	return nil
}

// unsupportedHandler is the placeholder for recognized formats whose mapping
// rules have not been written.
type unsupportedHandler struct {
	format model.SourceFormat
}

func (h unsupportedHandler) Format() model.SourceFormat { return h.format }

func (h unsupportedHandler) Resolve(table *model.RawTable, _ int) (*ResolvedTable, error) {
	return ResolveSingleHeader(table)
}

func (h unsupportedHandler) Mappings([]string, float64) ([]model.FieldMapping, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotSupported, h.format)
}

func (h unsupportedHandler) Transform([]string, []string, func(model.AssessmentRecord)) error {
	return fmt.Errorf("%w: %s", ErrNotSupported, h.format)
}
