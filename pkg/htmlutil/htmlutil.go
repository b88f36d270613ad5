package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText removes non printable characters and collapses whitespace.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	s = innerWhitespace.ReplaceAllString(s, " ")
	return s
}

// Text returns the cleaned text of a selection.
func Text(sel *goquery.Selection) string {
	return CleanText(sel.Text())
}

// OwnText returns only the text nodes that are direct children of the first node in sel.
func OwnText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	var buffer strings.Builder
	for child := sel.Nodes[0].FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			buffer.WriteString(child.Data)
		}
	}
	return CleanText(buffer.String())
}

type Anchor struct {
	Name string
	Url  *url.URL
}

// GetAnchors resolves the href of every node in sel against base, anchors
// without a parseable href are skipped.
func GetAnchors(base *url.URL, sel *goquery.Selection) []Anchor {
	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}

		link, err := url.Parse(href)
		if err != nil {
			continue
		}
		if base != nil {
			link = base.ResolveReference(link)
		}

		anchors = append(anchors, Anchor{
			Name: CleanText(GetText(n)),
			Url:  link,
		})
	}
	return anchors
}

// QueryParam parses href and returns the value of key in its query string.
func QueryParam(href, key string) string {
	link, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return link.Query().Get(key)
}

var breakRegex = regexp.MustCompile(`(?i)<br\s*/?>`)

// SplitBreaks splits the inner html of the first node in sel on <br> tags and
// returns the cleaned text of every part, parts are kept even if empty so that
// positional parsing stays aligned.
func SplitBreaks(sel *goquery.Selection) []string {
	inner, err := sel.First().Html()
	if err != nil {
		return nil
	}
	parts := breakRegex.Split(inner, -1)
	out := make([]string, len(parts))
	for i, p := range parts {
		fragment, err := goquery.NewDocumentFromReader(strings.NewReader(p))
		if err != nil {
			continue
		}
		out[i] = Text(fragment.Selection)
	}
	return out
}
