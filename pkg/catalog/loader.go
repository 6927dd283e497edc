package catalog

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
	"gopkg.in/yaml.v2"

	"github.com/misu-units/misu/pkg/parser"
	"github.com/misu-units/misu/pkg/quantity"
	"github.com/misu-units/misu/pkg/represent"
	"github.com/misu-units/misu/pkg/units"
)

var ErrUnitsInRepresent = errors.New("representation files may not define units")

// DefaultPatterns match definition files below a catalog directory.
var DefaultPatterns = []string{"**/*.yaml", "**/*.yml"}

type Document struct {
	Encoding  string           `yaml:"encoding"`
	Units     []Entry          `yaml:"units"`
	Represent []RepresentEntry `yaml:"represent"`
}

// Entry defines one unit, or names a category when only Type is set.
type Entry struct {
	Symbols      string             `yaml:"symbols"`
	Type         string             `yaml:"type"`
	Expr         string             `yaml:"expr"`
	Dims         map[string]float64 `yaml:"dims"`
	Prefixes     bool               `yaml:"prefixes"`
	PrefixStems  []string           `yaml:"prefix_stems"`
	SkipPrefixes []string           `yaml:"skip_prefixes"`
	Category     string             `yaml:"category"`
	Notes        string             `yaml:"notes"`
	Represent    *RepresentEntry    `yaml:"represent"`
}

// RepresentEntry is a representation rule. Unit is an expression naming
// the dimension being represented and As the unit to render it in. Unit
// is implied for rules nested in a unit entry.
type RepresentEntry struct {
	Unit   string  `yaml:"unit"`
	As     string  `yaml:"as"`
	Symbol string  `yaml:"symbol"`
	Format string  `yaml:"format"`
	Offset float64 `yaml:"offset"`
}

var encodingLine = regexp.MustCompile(`(?m)^encoding:\s*["']?([A-Za-z0-9_-]+)`)

// Decode parses a definition document. Input that is not valid UTF-8 is
// transcoded from the encoding the document declares, or from
// windows-1252 when it declares none.
func Decode(data []byte, name string) (*Document, error) {
	if !utf8.Valid(data) {
		enc := encoding.Encoding(charmap.Windows1252)
		if m := encodingLine.FindSubmatch(data); m != nil {
			e, err := htmlindex.Get(string(m[1]))
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", name, err)
			}
			enc = e
		}
		decoded, _, err := transform.Bytes(enc.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		data = decoded
	}

	var doc Document
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return &doc, nil
}

// Load reads a definition document from r and applies it to sys.
func Load(sys *units.System, r io.Reader, name string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("load catalog %s: %w", name, err)
	}
	return LoadBytes(sys, data, name)
}

func LoadBytes(sys *units.System, data []byte, name string) error {
	doc, err := Decode(data, name)
	if err != nil {
		return err
	}
	if err := doc.Apply(sys); err != nil {
		return fmt.Errorf("load catalog %s: %w", name, err)
	}
	return nil
}

// LoadFiles applies every file under root matching patterns, in lexical
// order, and returns the paths it loaded relative to root.
func LoadFiles(sys *units.System, root string, patterns []string) ([]string, error) {
	fsys := os.DirFS(root)
	paths, err := Match(fsys, patterns)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("load catalog %s: %w", p, err)
		}
		if err := LoadBytes(sys, data, p); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// LoadRepresentFiles is LoadFiles for representation-only documents. A
// file that declares units is rejected, so it is safe on frozen systems.
func LoadRepresentFiles(sys *units.System, root string, patterns []string) ([]string, error) {
	fsys := os.DirFS(root)
	paths, err := Match(fsys, patterns)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("load represent %s: %w", p, err)
		}
		doc, err := Decode(data, p)
		if err != nil {
			return nil, err
		}
		if len(doc.Units) > 0 {
			return nil, fmt.Errorf("load represent %s: %w", p, ErrUnitsInRepresent)
		}
		if err := doc.ApplyRepresent(sys); err != nil {
			return nil, fmt.Errorf("load represent %s: %w", p, err)
		}
	}
	return paths, nil
}

// Match lists the files in fsys matching any of patterns, sorted and
// without duplicates.
func Match(fsys fs.FS, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("match %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Apply runs the document's unit entries and then its representation
// rules against sys.
func (d *Document) Apply(sys *units.System) error {
	for i := range d.Units {
		if err := d.Units[i].apply(sys); err != nil {
			return err
		}
	}
	return d.ApplyRepresent(sys)
}

// ApplyRepresent installs only the document's top level representation
// rules. It works on frozen systems.
func (d *Document) ApplyRepresent(sys *units.System) error {
	for _, r := range d.Represent {
		if r.Unit == "" {
			return fmt.Errorf("represent %q: no unit given", r.As)
		}
		q, err := parser.Eval(r.Unit, sys)
		if err != nil {
			return fmt.Errorf("represent %s: %w", r.Unit, err)
		}
		if err := r.install(sys, q); err != nil {
			return fmt.Errorf("represent %s: %w", r.Unit, err)
		}
	}
	return nil
}

func (e *Entry) apply(sys *units.System) error {
	expr := e.Expr
	if expr == "" {
		expr = "1"
	}
	q, err := parser.Eval(expr, sys)
	if err != nil {
		return fmt.Errorf("unit %q: %w", e.label(), err)
	}

	if e.Symbols == "" {
		if e.Type == "" {
			return fmt.Errorf("entry %q: neither symbols nor type given", e.Expr)
		}
		if err := sys.AddType(q, e.Type); err != nil {
			return fmt.Errorf("type %q: %w", e.Type, err)
		}
		return nil
	}

	if err := sys.CreateUnit(e.Symbols, q, e.options()...); err != nil {
		return err
	}
	if e.Type != "" {
		if err := sys.AddType(sys.MustUnit(e.display()), e.Type); err != nil {
			return fmt.Errorf("type %q: %w", e.Type, err)
		}
	}
	if e.Represent != nil {
		if err := e.Represent.install(sys, sys.MustUnit(e.display())); err != nil {
			return fmt.Errorf("unit %q: %w", e.label(), err)
		}
	}
	return nil
}

func (e *Entry) options() []units.UnitOption {
	var opts []units.UnitOption
	if e.Dims != nil {
		opts = append(opts, units.WithDimensions(e.Dims))
	}
	if e.Prefixes {
		opts = append(opts, units.WithPrefixes())
		if len(e.PrefixStems) > 0 {
			opts = append(opts, units.WithPrefixStems(e.PrefixStems...))
		}
		if len(e.SkipPrefixes) > 0 {
			skip := make(map[string]bool, len(e.SkipPrefixes))
			for _, p := range e.SkipPrefixes {
				skip[p] = true
			}
			opts = append(opts, units.WithPrefixSkip(func(p units.Prefix) bool { return skip[p.Symbol] }))
		}
	}
	if e.Category != "" {
		opts = append(opts, units.WithCategory(e.Category))
	}
	if e.Notes != "" {
		opts = append(opts, units.WithNotes(e.Notes))
	}
	return opts
}

func (e *Entry) display() string {
	return strings.Fields(e.Symbols)[0]
}

func (e *Entry) label() string {
	if e.Symbols != "" {
		return e.Symbols
	}
	return e.Type
}

func (r *RepresentEntry) install(sys *units.System, q quantity.Quantity) error {
	var opts []represent.Option
	if r.As != "" {
		target, err := parser.Eval(r.As, sys)
		if err != nil {
			return err
		}
		opts = append(opts, represent.AsUnit(target))
	}
	symbol := r.Symbol
	if symbol == "" {
		symbol = r.As
	}
	opts = append(opts, represent.Symbol(symbol))
	if r.Format != "" {
		opts = append(opts, represent.Format(r.Format))
	}
	if r.Offset != 0 {
		opts = append(opts, represent.Offset(r.Offset))
	}
	return sys.SetRepresent(q, opts...)
}
