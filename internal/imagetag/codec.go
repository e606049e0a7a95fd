// Package imagetag builds the canonical HTML markup for an uploaded photo
// and normalizes HTML so field comparisons ignore cosmetic differences.
package imagetag

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// Build renders the canonical image tag for a Salesforce attachment. The
// output is byte-stable for the same inputs: it is both the value written
// to the photo field and the expected value compared against it.
func Build(fileDomain, fileName, versionID, documentID string) string {
	url := fmt.Sprintf(
		"%s/sfc/servlet.shepherd/version/renditionDownload?rendition=ORIGINAL_Jpg&versionId=%s&operationContext=CHATTER&contentId=%s",
		strings.TrimSuffix(fileDomain, "/"), versionID, documentID,
	)
	return fmt.Sprintf(`<p><img src="%s" alt="%s" /></p>`, url, fileName)
}

// Normalize parses a fragment of HTML and re-serializes it in a canonical
// form: attributes sorted, whitespace-only text dropped, remaining text
// runs collapsed. Rich-text editors rewrite markup without changing its
// meaning (self-closing tags, attribute order, indentation); comparing
// normalized forms avoids perpetual spurious updates. Empty input
// normalizes to the empty string.
func Normalize(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		// html.Parse does not fail on any string input; guard anyway.
		return strings.TrimSpace(fragment)
	}

	body := findBody(doc)
	if body == nil {
		return strings.TrimSpace(fragment)
	}
	canonicalize(body)

	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return strings.TrimSpace(fragment)
		}
	}
	return buf.String()
}

// Equal reports whether two HTML fragments are equivalent after
// normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if body := findBody(c); body != nil {
			return body
		}
	}
	return nil
}

func canonicalize(n *html.Node) {
	if n.Type == html.ElementNode && len(n.Attr) > 1 {
		sort.Slice(n.Attr, func(i, j int) bool {
			if n.Attr[i].Key != n.Attr[j].Key {
				return n.Attr[i].Key < n.Attr[j].Key
			}
			return n.Attr[i].Val < n.Attr[j].Val
		})
	}

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.TextNode {
			collapsed := strings.Join(strings.Fields(c.Data), " ")
			if collapsed == "" {
				n.RemoveChild(c)
			} else {
				c.Data = collapsed
			}
		} else {
			canonicalize(c)
		}
		c = next
	}
}
