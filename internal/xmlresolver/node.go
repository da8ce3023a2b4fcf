// Package xmlresolver extracts canonical observation records from arbitrary
// XML documents, driven by a declarative format configuration.
package xmlresolver

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Node is one element of a parsed XML document. The tree keeps namespaces
// but all path matching is on local names, so configurations stay valid
// regardless of prefix choices in the source document.
type Node struct {
	Name     xml.Name
	Attrs    []xml.Attr
	Text     string
	Children []*Node
}

// Parse decodes an XML document into a node tree.
func Parse(r io.Reader) (*Node, error) {
	decoder := xml.NewDecoder(r)

	var root *Node
	var stack []*Node
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed XML: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			node := &Node{Name: t.Name, Attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("malformed XML: multiple root elements")
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			}
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("malformed XML: unexpected end element %q", t.Name.Local)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("malformed XML: no root element")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("malformed XML: unclosed element %q", stack[len(stack)-1].Name.Local)
	}
	return root, nil
}

// Local returns the node's local element name.
func (n *Node) Local() string {
	return n.Name.Local
}

// Attr returns the value of the named attribute, matched on local name.
func (n *Node) Attr(name string) (string, bool) {
	for _, attr := range n.Attrs {
		if attr.Name.Local == localName(name) {
			return attr.Value, true
		}
	}
	return "", false
}

// TrimmedText returns the element's character data with surrounding
// whitespace removed.
func (n *Node) TrimmedText() string {
	return strings.TrimSpace(n.Text)
}

// Find returns all descendants addressed by path, a sequence of element
// names relative to the receiver. An empty path addresses the receiver.
func (n *Node) Find(path []string) []*Node {
	if len(path) == 0 {
		return []*Node{n}
	}

	var matches []*Node
	head := localName(path[0])
	for _, child := range n.Children {
		if child.Name.Local != head {
			continue
		}
		matches = append(matches, child.Find(path[1:])...)
	}
	return matches
}

// First returns the first descendant addressed by path, or nil.
func (n *Node) First(path []string) *Node {
	matches := n.Find(path)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// localName strips a namespace prefix from a configured element name.
func localName(name string) string {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		return name[i+1:]
	}
	return name
}
