package scraper

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Elements whose subtrees never contribute page text.
var strippedElements = map[string]struct{}{
	"script": {},
	"style":  {},
	"nav":    {},
	"header": {},
	"footer": {},
}

// Class names treated as navigation chrome.
var strippedClasses = map[string]struct{}{
	"menu":       {},
	"navigation": {},
}

// Content containers tried in order before falling back to body.
var contentSelectors = []selector{
	{element: "main"},
	{class: "content"},
	{class: "main-content"},
	{element: "article"},
	{class: "post-content"},
	{class: "entry-content"},
}

type selector struct {
	element string
	class   string
}

// Page is the extracted form of one fetched HTML document.
type Page struct {
	Title string
	Text  string
	Links []string
}

// ExtractPage parses HTML and pulls out the title, the main text content
// with whitespace collapsed, and every href on the page (unresolved).
func ExtractPage(r io.Reader) (*Page, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	page := &Page{
		Title: extractTitle(root),
		Links: extractLinks(root),
	}

	container := findContentContainer(root)
	if container == nil {
		container = findElement(root, "body")
	}
	if container != nil {
		page.Text = collapseWhitespace(collectText(container))
	}

	return page, nil
}

func extractTitle(root *html.Node) string {
	if n := findElement(root, "title"); n != nil {
		if title := collapseWhitespace(collectText(n)); title != "" {
			return title
		}
	}
	if n := findElement(root, "h1"); n != nil {
		return collapseWhitespace(collectText(n))
	}
	return ""
}

func extractLinks(root *html.Node) []string {
	var links []string
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := attr(n, "href"); href != "" {
				links = append(links, href)
			}
		}
		return true
	})
	return links
}

func findContentContainer(root *html.Node) *html.Node {
	for _, sel := range contentSelectors {
		if n := findBySelector(root, sel); n != nil {
			return n
		}
	}
	return nil
}

func findElement(root *html.Node, name string) *html.Node {
	return findBySelector(root, selector{element: name})
}

func findBySelector(root *html.Node, sel selector) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type != html.ElementNode {
			return true
		}
		if sel.element != "" && n.Data != sel.element {
			return true
		}
		if sel.class != "" && !hasClass(n, sel.class) {
			return true
		}
		found = n
		return false
	})
	return found
}

// collectText gathers text nodes under n, skipping stripped subtrees.
func collectText(n *html.Node) string {
	var b strings.Builder
	walk(n, func(node *html.Node) bool {
		if node.Type == html.ElementNode {
			if _, ok := strippedElements[node.Data]; ok {
				return false
			}
			for _, class := range classes(node) {
				if _, ok := strippedClasses[class]; ok {
					return false
				}
			}
		}
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
			b.WriteString(" ")
		}
		return true
	})
	return b.String()
}

// walk visits n and its subtree depth-first. Returning false from visit
// skips the node's children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func classes(n *html.Node) []string {
	return strings.Fields(attr(n, "class"))
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range classes(n) {
		if c == class {
			return true
		}
	}
	return false
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
