package expectation

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/conteo/internal/engine"
	"github.com/roach88/conteo/internal/ir"
)

const schemaFilename = "schema.cue"

//go:embed schema.cue
var schemaSource string

// Format identifies the syntax of an expectation file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", &LoadError{
			Field:   "file",
			Message: fmt.Sprintf("unsupported expectation file extension %q", filepath.Ext(path)),
		}
	}
}

// LoadFile reads and validates the expectation file at path.
func LoadFile(path string) (engine.NewCount, error) {
	format, err := FormatOf(path)
	if err != nil {
		return engine.NewCount{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return engine.NewCount{}, fmt.Errorf("read expectation file: %w", err)
	}
	return Parse(data, path, format)
}

// Parse decodes src as an expectation set. filename is used in error
// positions only.
//
// The source is unified with the #Count schema and must be concrete.
// The rules Validate enforces are checked as well; the first violation is
// returned as a *LoadError.
func Parse(src []byte, filename string, format Format) (engine.NewCount, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename(schemaFilename))
	if err := schema.Err(); err != nil {
		return engine.NewCount{}, fmt.Errorf("compile expectation schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Count"))

	v, err := build(ctx, src, filename, format)
	if err != nil {
		return engine.NewCount{}, err
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return engine.NewCount{}, formatCUEError(err)
	}

	var nc engine.NewCount
	if err := unified.Decode(&nc); err != nil {
		return engine.NewCount{}, formatCUEError(err)
	}
	if nc.Items == nil {
		nc.Items = []ir.ExpectedItem{}
	}

	if errs := Validate(nc); len(errs) > 0 {
		first := errs[0]
		return engine.NewCount{}, &LoadError{Field: first.Field, Message: first.Message, Code: first.Code}
	}
	return nc, nil
}

// build turns src into a CUE value without applying the schema.
func build(ctx *cue.Context, src []byte, filename string, format Format) (cue.Value, error) {
	switch format {
	case FormatCUE, FormatJSON:
		// JSON is a subset of CUE.
		v := ctx.CompileBytes(src, cue.Filename(filename))
		if err := v.Err(); err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		return v, nil

	case FormatYAML:
		var doc map[string]any
		dec := yaml.NewDecoder(bytes.NewReader(src))
		if err := dec.Decode(&doc); err != nil {
			return cue.Value{}, &LoadError{
				Field:   "yaml",
				Message: err.Error(),
				Pos:     token.NoPos,
			}
		}
		if doc == nil {
			doc = map[string]any{}
		}
		v := ctx.Encode(doc)
		if err := v.Err(); err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		return v, nil

	default:
		return cue.Value{}, &LoadError{Field: "format", Message: fmt.Sprintf("unknown format %q", format)}
	}
}

// LoadError is an expectation file that could not be loaded.
// Pos is set when the failure can be traced to a source position.
type LoadError struct {
	Field   string
	Message string
	Code    string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, msg)
	}
	if e.Field == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Field, msg)
}

// formatCUEError extracts the path and position of the first CUE error.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	loadErr := &LoadError{
		Field:   strings.Join(first.Path(), "."),
		Message: first.Error(),
	}
	if loadErr.Field == "" {
		loadErr.Field = "cue"
	}
	for _, pos := range errors.Positions(first) {
		// Positions inside the embedded schema mean nothing to the author.
		if pos.Filename() != schemaFilename {
			loadErr.Pos = pos
			break
		}
	}
	return loadErr
}
