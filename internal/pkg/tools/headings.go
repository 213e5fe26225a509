package tools

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Severity of a finding.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Heading is one h1-h6 element in document order.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Issue is a single accessibility finding.
type Issue struct {
	Severity string `json:"severity"`
	Rule     string `json:"rule"`
	Message  string `json:"message"`
}

// HeadingReport is the outline of a document plus structural problems.
type HeadingReport struct {
	Headings []Heading `json:"headings"`
	Issues   []Issue   `json:"issues"`
	Valid    bool      `json:"valid"`
}

var headingLevels = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

// AnalyzeHeadings parses markup and checks the heading hierarchy: exactly
// one h1, no skipped levels, no empty headings.
func AnalyzeHeadings(markup string) (HeadingReport, error) {
	if strings.TrimSpace(markup) == "" {
		return HeadingReport{}, ErrEmptyInput
	}
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return HeadingReport{}, fmt.Errorf("parse html: %w", err)
	}
	return analyzeHeadings(doc), nil
}

func analyzeHeadings(doc *html.Node) HeadingReport {
	report := HeadingReport{Headings: []Heading{}, Issues: []Issue{}}
	walk(doc, func(n *html.Node) {
		if lvl, ok := headingLevels[n.DataAtom]; ok && n.Type == html.ElementNode {
			report.Headings = append(report.Headings, Heading{Level: lvl, Text: textContent(n)})
		}
	})

	h1s := 0
	prev := 0
	for _, h := range report.Headings {
		if h.Level == 1 {
			h1s++
		}
		if h.Text == "" {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityError,
				Rule:     "empty-heading",
				Message:  fmt.Sprintf("h%d has no text content", h.Level),
			})
		}
		if prev == 0 && h.Level != 1 {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityWarning,
				Rule:     "first-heading-not-h1",
				Message:  fmt.Sprintf("document starts with h%d instead of h1", h.Level),
			})
		}
		if prev > 0 && h.Level > prev+1 {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityError,
				Rule:     "skipped-heading-level",
				Message:  fmt.Sprintf("h%d follows h%d, skipping h%d", h.Level, prev, prev+1),
			})
		}
		prev = h.Level
	}

	switch {
	case len(report.Headings) == 0:
		report.Issues = append(report.Issues, Issue{Severity: SeverityWarning, Rule: "no-headings", Message: "document has no headings"})
	case h1s == 0:
		report.Issues = append(report.Issues, Issue{Severity: SeverityError, Rule: "missing-h1", Message: "document has no h1"})
	case h1s > 1:
		report.Issues = append(report.Issues, Issue{Severity: SeverityWarning, Rule: "multiple-h1", Message: fmt.Sprintf("document has %d h1 elements", h1s)})
	}

	report.Valid = !hasErrors(report.Issues)
	return report
}

func hasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// textContent returns the collapsed text of n, including img alt text.
func textContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		switch {
		case c.Type == html.TextNode:
			b.WriteString(c.Data)
			b.WriteByte(' ')
		case c.Type == html.ElementNode && c.DataAtom == atom.Img:
			if alt, ok := attr(c, "alt"); ok {
				b.WriteString(alt)
				b.WriteByte(' ')
			}
		}
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}
