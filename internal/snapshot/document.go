package snapshot

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html/charset"
)

// Node is one element of a parsed document.
type Node struct {
	Name     xml.Name
	Text     string
	Children []*Node
}

// Document is a parsed XML snapshot.
type Document struct {
	Root *Node
}

// Find returns the first descendant element (document order) with the given
// local name. An empty space matches any namespace.
func (n *Node) Find(space, local string) *Node {
	for _, child := range n.Children {
		if child.Name.Local == local && (space == "" || child.Name.Space == space) {
			return child
		}
		if found := child.Find(space, local); found != nil {
			return found
		}
	}
	return nil
}

// ParseFile reads and parses an XML file.
func ParseFile(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only snapshot.
			_ = cerr
		}
	}()
	return Parse(file)
}

// Parse builds an element tree from r.
func Parse(r io.Reader) (*Document, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel

	var root *Node
	var stack []*Node
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			node := &Node{Name: t.Name}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements")
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			}
			stack = append(stack, node)
		case xml.EndElement:
			node := stack[len(stack)-1]
			node.Text = strings.TrimSpace(node.Text)
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	return &Document{Root: root}, nil
}
