package cleaner

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// invisible lists elements whose text never renders.
var invisible = map[atom.Atom]struct{}{
	atom.Script:   {},
	atom.Style:    {},
	atom.Noscript: {},
	atom.Template: {},
	atom.Head:     {},
	atom.Svg:      {},
	atom.Iframe:   {},
}

// block lists elements that start a new line in rendered text.
var block = map[atom.Atom]struct{}{
	atom.P: {}, atom.Div: {}, atom.Br: {}, atom.Li: {}, atom.Tr: {},
	atom.H1: {}, atom.H2: {}, atom.H3: {}, atom.H4: {}, atom.H5: {}, atom.H6: {},
	atom.Section: {}, atom.Article: {}, atom.Header: {}, atom.Footer: {},
	atom.Table: {}, atom.Ul: {}, atom.Ol: {}, atom.Dt: {}, atom.Dd: {},
}

// VisibleText approximates document.body.innerText from markup. It is used
// when the live page returns no innerText (e.g. the evaluation was blocked).
func VisibleText(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	var lines []string
	var cur strings.Builder
	flush := func() {
		if line := strings.Join(strings.Fields(cur.String()), " "); line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := invisible[n.DataAtom]; skip {
				return
			}
			if _, hidden := attr(n, "hidden"); hidden {
				return
			}
		}
		if n.Type == html.TextNode {
			cur.WriteString(n.Data)
			cur.WriteByte(' ')
		}
		_, isBlock := block[n.DataAtom]
		if isBlock {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if isBlock {
			flush()
		}
	}
	walk(doc)
	flush()

	return strings.Join(lines, "\n")
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
