package content

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var allowedTags = map[atom.Atom]bool{}

func init() {
	for _, a := range []atom.Atom{
		atom.Address, atom.Article, atom.Aside, atom.Footer, atom.Header,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Hgroup,
		atom.Main, atom.Nav, atom.Section, atom.Blockquote, atom.Dd, atom.Div,
		atom.Dl, atom.Dt, atom.Figcaption, atom.Figure, atom.Hr, atom.Li,
		atom.Ol, atom.P, atom.Pre, atom.Ul, atom.A, atom.Abbr, atom.B,
		atom.Bdi, atom.Bdo, atom.Br, atom.Cite, atom.Code, atom.Data,
		atom.Dfn, atom.Em, atom.I, atom.Kbd, atom.Mark, atom.Q, atom.Rb,
		atom.Rp, atom.Rt, atom.Rtc, atom.Ruby, atom.S, atom.Samp, atom.Small,
		atom.Span, atom.Strong, atom.Sub, atom.Sup, atom.Time, atom.U,
		atom.Var, atom.Wbr, atom.Caption, atom.Col, atom.Colgroup,
		atom.Table, atom.Tbody, atom.Td, atom.Tfoot, atom.Th, atom.Thead,
		atom.Tr, atom.Img,
	} {
		allowedTags[a] = true
	}
}

// Elements whose content is dropped along with the tag.
var droppedTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Textarea: true,
	atom.Option:   true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Object:   true,
	atom.Embed:    true,
	atom.Template: true,
}

var allowedAttrs = map[atom.Atom][]string{
	atom.A:   {"href", "name", "target"},
	atom.Img: {"src", "alt"},
}

var urlAttrs = map[string]bool{"href": true, "src": true}

var allowedSchemes = []string{"http:", "https:", "ftp:", "mailto:", "tel:"}

var voidTags = map[atom.Atom]bool{
	atom.Br: true, atom.Hr: true, atom.Img: true, atom.Wbr: true, atom.Col: true,
}

func bodyContext() *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
}

// Sanitize keeps a safe subset of markup: common structural and inline
// tags, links, and images with only src and alt. Disallowed elements are
// unwrapped, script-like elements are removed with their content, and URLs
// with non-web schemes are dropped.
func Sanitize(raw string) (string, error) {
	nodes, err := html.ParseFragment(strings.NewReader(raw), bodyContext())
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	var b strings.Builder
	for _, n := range nodes {
		writeSanitized(&b, n)
	}
	return b.String(), nil
}

func writeSanitized(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(html.EscapeString(n.Data))
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeSanitized(b, c)
		}
		return
	}

	if droppedTags[n.DataAtom] {
		return
	}
	if !allowedTags[n.DataAtom] {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeSanitized(b, c)
		}
		return
	}

	b.WriteByte('<')
	b.WriteString(n.Data)
	for _, attr := range n.Attr {
		if !attrAllowed(n.DataAtom, attr) {
			continue
		}
		fmt.Fprintf(b, ` %s="%s"`, attr.Key, html.EscapeString(attr.Val))
	}
	b.WriteByte('>')
	if voidTags[n.DataAtom] {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeSanitized(b, c)
	}
	b.WriteString("</")
	b.WriteString(n.Data)
	b.WriteByte('>')
}

func attrAllowed(tag atom.Atom, attr html.Attribute) bool {
	if attr.Namespace != "" {
		return false
	}
	allowed := false
	for _, k := range allowedAttrs[tag] {
		if k == attr.Key {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}
	if urlAttrs[attr.Key] {
		return safeURL(attr.Val)
	}
	return true
}

func safeURL(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	i := strings.IndexAny(v, ":/?#")
	if i < 0 || v[i] != ':' {
		return true
	}
	for _, s := range allowedSchemes {
		if strings.HasPrefix(v, s) {
			return true
		}
	}
	return false
}

// HTMLToText returns the visible text of markup with whitespace runs
// collapsed to single spaces.
func HTMLToText(raw string) (string, error) {
	nodes, err := html.ParseFragment(strings.NewReader(raw), bodyContext())
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	var b strings.Builder
	for _, n := range nodes {
		collectText(&b, n)
	}
	return strings.Join(strings.Fields(b.String()), " "), nil
}

func collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode && droppedTags[n.DataAtom] {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
	if n.Type == html.ElementNode && blockTags[n.DataAtom] {
		b.WriteByte(' ')
	}
}

// Block elements separate their text from the next element's.
var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Br: true, atom.Tr: true,
	atom.Td: true, atom.Th: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Section: true, atom.Article: true,
}
