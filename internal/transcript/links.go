package transcript

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// CountDialogLinks counts virtual assistant links that open a dialog
// (<a data-vtz-link-type="Dialog">). The widget binds the VA link callback
// to these.
func CountDialogLinks(fragment string) int {
	if !strings.Contains(fragment, "<a") {
		return 0
	}
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return 0
	}

	count := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			for _, a := range n.Attr {
				if a.Key == "data-vtz-link-type" && a.Val == "Dialog" {
					count++
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return count
}
