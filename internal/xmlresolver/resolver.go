package xmlresolver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hydromet/datanode/internal/formats"
)

// Item pairs one format parameter with the raw value extracted from one XML
// location. The value stays settable for post-processing steps such as unit
// conversion.
type Item struct {
	Parameter formats.Parameter
	Value     string
}

// Group is an ordered collection of items holding everything needed to build
// the canonical observations of one document row.
type Group struct {
	Items []*Item
}

// ByType returns the group's items of the given parameter variant.
func (g *Group) ByType(t formats.ParameterType) []*Item {
	var out []*Item
	for _, item := range g.Items {
		if item.Parameter.Type == t {
			out = append(out, item)
		}
	}
	return out
}

// First returns the group's first item of the given variant.
func (g *Group) First(t formats.ParameterType) (*Item, bool) {
	for _, item := range g.Items {
		if item.Parameter.Type == t {
			return item, true
		}
	}
	return nil, false
}

// Clone deep-copies the group so a template can be replayed across repeated
// document fragments without sharing state.
func (g *Group) Clone() *Group {
	clone := &Group{Items: make([]*Item, 0, len(g.Items))}
	for _, item := range g.Items {
		copied := *item
		clone.Items = append(clone.Items, &copied)
	}
	return clone
}

// SymbolMappings maps each internal property symbol to the external
// vocabulary values it is known under, keyed by conversion variable name.
type SymbolMappings map[string]map[string]string

// MapSymbol resolves an external vocabulary symbol to the internal canonical
// one by matching on the conversion variable. An empty result signals an
// unmapped symbol; the caller decides whether that is fatal.
func (m SymbolMappings) MapSymbol(external, variable string) string {
	for internal, vars := range m {
		if vars[variable] == external {
			return internal
		}
	}
	return ""
}

// Options tweak value post-processing during resolution.
type Options struct {
	// SkipEmptyValueTag drops rows whose value element is empty instead of
	// coercing the value to zero.
	SkipEmptyValueTag bool

	// Symbols converts external property symbols to internal ones.
	Symbols SymbolMappings
}

// MissingValueError is returned when a non-optional parameter has no
// matching location in a document fragment.
type MissingValueError struct {
	Parameter formats.Parameter
}

// Error implements the error interface.
func (e MissingValueError) Error() string {
	return fmt.Sprintf("no value found for required %s parameter at %s",
		e.Parameter.Type, strings.Join(e.Parameter.TagHierarchy, "/"))
}

var valueConversionRE = regexp.MustCompile(`^[*/]\d+$`)

// Row is the outcome of resolving one repeating document fragment. A
// fragment that could not be resolved carries the error instead of a group,
// so one bad fragment never hides its siblings.
type Row struct {
	Group *Group
	Err   error
}

// Resolve walks every fragment of doc addressed by the anchor path and
// produces one row per fragment, extracting and post-processing each
// configured parameter. Fragment-level failures are reported per row; only
// a document matching no fragments at all is an error. An empty anchor
// treats the whole document as a single fragment.
func Resolve(cfg *formats.Config, doc *Node, anchor []string, opts Options) ([]Row, error) {
	template := &Group{}
	for _, p := range cfg.Parameters {
		template.Items = append(template.Items, &Item{Parameter: p})
	}

	fragments := rowNodes(doc, anchor)
	if len(fragments) == 0 {
		return nil, fmt.Errorf("document has no %q fragments", strings.Join(anchor, "/"))
	}

	rows := make([]Row, 0, len(fragments))
	for _, fragment := range fragments {
		group, err := resolveRow(template, fragment, anchor, opts)
		if err != nil {
			rows = append(rows, Row{Err: err})
			continue
		}
		if group != nil {
			rows = append(rows, Row{Group: group})
		}
	}
	return rows, nil
}

// rowNodes locates the repeating fragments. The anchor is given from the
// document root, so a leading segment naming the root element is consumed
// by the root itself.
func rowNodes(doc *Node, anchor []string) []*Node {
	if len(anchor) > 0 && localName(anchor[0]) == doc.Name.Local {
		anchor = anchor[1:]
	}
	return doc.Find(anchor)
}

// resolveRow clones the template and fills item values from one fragment.
// It returns a nil group when the row is skipped.
func resolveRow(template *Group, row *Node, anchor []string, opts Options) (*Group, error) {
	group := template.Clone()

	kept := group.Items[:0]
	for _, item := range group.Items {
		raw, found := extract(row, item.Parameter, anchor)
		if !found {
			if item.Parameter.Optional {
				continue
			}
			return nil, MissingValueError{Parameter: item.Parameter}
		}

		switch item.Parameter.Type {
		case formats.ObservedPropertyValue:
			if raw == "" && opts.SkipEmptyValueTag {
				return nil, nil
			}
			converted, err := convertValue(raw, item.Parameter.ValueConversion)
			if err != nil {
				return nil, err
			}
			item.Value = converted
		case formats.ObservedPropertySymbol:
			item.Value = opts.Symbols.MapSymbol(raw, item.Parameter.Variable)
		default:
			item.Value = raw
		}
		kept = append(kept, item)
	}
	group.Items = kept

	return group, nil
}

// extract locates the parameter's element under the row fragment and returns
// its attribute or text value.
func extract(row *Node, p formats.Parameter, anchor []string) (string, bool) {
	node := row.First(relativePath(p.TagHierarchy, anchor))
	if node == nil {
		return "", false
	}

	if p.Attribute != "" {
		return node.Attr(p.Attribute)
	}
	return node.TrimmedText(), true
}

// relativePath reduces the full tag hierarchy to a path under the anchor by
// subtracting the anchor's own segments.
func relativePath(hierarchy, anchor []string) []string {
	anchorSet := make(map[string]struct{}, len(anchor))
	for _, segment := range anchor {
		anchorSet[localName(segment)] = struct{}{}
	}

	var relative []string
	for _, segment := range hierarchy {
		if _, inAnchor := anchorSet[localName(segment)]; inAnchor {
			continue
		}
		relative = append(relative, segment)
	}
	return relative
}

// convertValue turns the raw string into a canonical numeric rendering and
// applies the parameter's scale expression. An empty string becomes zero; a
// conversion not matching the scale grammar leaves the value unchanged.
func convertValue(raw, conversion string) (string, error) {
	if raw == "" {
		raw = "0"
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", fmt.Errorf("observed property value %q is not numeric: %v", raw, err)
	}

	if valueConversionRE.MatchString(conversion) {
		factor, err := strconv.ParseFloat(conversion[1:], 64)
		if err != nil {
			return "", fmt.Errorf("invalid value conversion %q: %v", conversion, err)
		}
		switch conversion[0] {
		case '*':
			value *= factor
		case '/':
			value /= factor
		}
	}

	return strconv.FormatFloat(value, 'f', -1, 64), nil
}
