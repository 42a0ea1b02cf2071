// Package page rewrites HTML documents before they are published. Its one
// job is the managed datastore block: a <script> element injected into the
// document <head> that gives the page a small JSON store reachable from the
// browser through signed URLs.
package page

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoHead is returned when a document has no explicit <head> element to
// carry the datastore block.
var ErrNoHead = errors.New("page: no <head> element")

// Inject renders the datastore block for ds and writes it into doc's <head>,
// replacing the previous block when one is present. The rewritten document
// is returned; doc itself is left alone.
func Inject(doc []byte, ds Datastore) ([]byte, error) {
	// The parser synthesizes an implied <head> for documents that lack one,
	// so the source has to be checked before parsing.
	if !hasExplicitHead(doc) {
		return nil, ErrNoHead
	}

	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("page: parse html: %w", err)
	}
	head := findElement(root, atom.Head)
	if head == nil {
		return nil, ErrNoHead
	}

	script, err := renderScript(ds)
	if err != nil {
		return nil, err
	}
	text := &html.Node{Type: html.TextNode, Data: script}

	if existing := findDatastoreScript(head); existing != nil {
		for c := existing.FirstChild; c != nil; {
			next := c.NextSibling
			existing.RemoveChild(c)
			c = next
		}
		existing.AppendChild(text)
	} else {
		node := &html.Node{Type: html.ElementNode, Data: "script", DataAtom: atom.Script}
		node.AppendChild(text)
		head.AppendChild(node)
		head.AppendChild(&html.Node{Type: html.TextNode, Data: "\n"})
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, fmt.Errorf("page: render html: %w", err)
	}
	return buf.Bytes(), nil
}

// hasExplicitHead reports whether the raw document opens a <head> tag of its
// own, as opposed to the one the parser invents.
func hasExplicitHead(doc []byte) bool {
	z := html.NewTokenizer(bytes.NewReader(doc))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Head {
				return true
			}
		}
	}
}

// parseHead parses doc and returns its head element, nil when parsing
// fails. Callers that must distinguish an implied head use hasExplicitHead.
func parseHead(doc []byte) *html.Node {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil
	}
	return findElement(root, atom.Head)
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// findDatastoreScript returns the script element under n carrying the
// managed block marker, if any.
func findDatastoreScript(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Script && strings.Contains(scriptText(n), Marker) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findDatastoreScript(c); found != nil {
			return found
		}
	}
	return nil
}

func scriptText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}
