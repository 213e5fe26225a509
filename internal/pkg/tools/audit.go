package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	defaultAuditTimeout  = 15 * time.Second
	defaultAuditMaxBytes = 2 << 20
	auditUserAgent       = "AccessibilityBuildAuditor/1.0 (+https://accessibility.build)"
)

var (
	ErrInvalidURL       = errors.New("url must be an absolute http or https URL")
	ErrBlockedAddress   = errors.New("url resolves to a private or local address")
	ErrUnexpectedStatus = errors.New("page returned a non-success status")
)

// AuditStats counts the elements the audit looked at.
type AuditStats struct {
	Images            int `json:"images"`
	ImagesMissingAlt  int `json:"images_missing_alt"`
	Links             int `json:"links"`
	EmptyLinks        int `json:"empty_links"`
	FormControls      int `json:"form_controls"`
	UnlabeledControls int `json:"unlabeled_controls"`
}

// AuditReport is the result of a page audit.
type AuditReport struct {
	URL      string        `json:"url,omitempty"`
	Title    string        `json:"title"`
	Lang     string        `json:"lang"`
	Score    int           `json:"score"`
	Stats    AuditStats    `json:"stats"`
	Headings HeadingReport `json:"headings"`
	Issues   []Issue       `json:"issues"`
}

// AuditHTML runs the static checks on a document.
func AuditHTML(markup string) (AuditReport, error) {
	if strings.TrimSpace(markup) == "" {
		return AuditReport{}, ErrEmptyInput
	}
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return AuditReport{}, fmt.Errorf("parse html: %w", err)
	}
	return auditDocument(doc), nil
}

func auditDocument(doc *html.Node) AuditReport {
	report := AuditReport{Headings: analyzeHeadings(doc), Issues: []Issue{}}
	labelled := map[string]bool{}

	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.DataAtom {
		case atom.Html:
			report.Lang, _ = attr(n, "lang")
		case atom.Title:
			if report.Title == "" {
				report.Title = textContent(n)
			}
		case atom.Label:
			if id, ok := attr(n, "for"); ok {
				labelled[id] = true
			}
		}
	})

	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.DataAtom {
		case atom.Img:
			report.Stats.Images++
			if _, ok := attr(n, "alt"); !ok && !isHidden(n) {
				report.Stats.ImagesMissingAlt++
			}
		case atom.A:
			if _, ok := attr(n, "href"); !ok {
				return
			}
			report.Stats.Links++
			if textContent(n) == "" && !hasAccessibleName(n) {
				report.Stats.EmptyLinks++
			}
		case atom.Input, atom.Select, atom.Textarea:
			if t, _ := attr(n, "type"); n.DataAtom == atom.Input && isUnlabelledInputType(t) {
				return
			}
			report.Stats.FormControls++
			id, _ := attr(n, "id")
			if !labelled[id] && !hasAccessibleName(n) && !insideLabel(n) {
				report.Stats.UnlabeledControls++
			}
		}
	})

	if strings.TrimSpace(report.Lang) == "" {
		report.Issues = append(report.Issues, Issue{Severity: SeverityError, Rule: "html-lang", Message: "html element has no lang attribute"})
	}
	if report.Title == "" {
		report.Issues = append(report.Issues, Issue{Severity: SeverityError, Rule: "document-title", Message: "document has no title"})
	}
	if n := report.Stats.ImagesMissingAlt; n > 0 {
		report.Issues = append(report.Issues, Issue{Severity: SeverityError, Rule: "image-alt", Message: fmt.Sprintf("%d image(s) without alt attribute", n)})
	}
	if n := report.Stats.EmptyLinks; n > 0 {
		report.Issues = append(report.Issues, Issue{Severity: SeverityError, Rule: "link-name", Message: fmt.Sprintf("%d link(s) without discernible text", n)})
	}
	if n := report.Stats.UnlabeledControls; n > 0 {
		report.Issues = append(report.Issues, Issue{Severity: SeverityError, Rule: "label", Message: fmt.Sprintf("%d form control(s) without a label", n)})
	}
	report.Issues = append(report.Issues, report.Headings.Issues...)
	report.Score = score(report.Issues)
	return report
}

// score starts at 100 and deducts 10 per error and 3 per warning.
func score(issues []Issue) int {
	s := 100
	for _, i := range issues {
		if i.Severity == SeverityError {
			s -= 10
		} else {
			s -= 3
		}
	}
	if s < 0 {
		return 0
	}
	return s
}

func isHidden(n *html.Node) bool {
	v, _ := attr(n, "aria-hidden")
	if v == "true" {
		return true
	}
	role, _ := attr(n, "role")
	return role == "presentation" || role == "none"
}

func hasAccessibleName(n *html.Node) bool {
	for _, k := range []string{"aria-label", "aria-labelledby", "title"} {
		if v, ok := attr(n, k); ok && strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

func insideLabel(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Label {
			return true
		}
	}
	return false
}

func isUnlabelledInputType(t string) bool {
	switch strings.ToLower(t) {
	case "hidden", "submit", "button", "reset", "image":
		return true
	}
	return false
}

// Auditor fetches live pages for AuditURL.
type Auditor struct {
	client   *http.Client
	maxBytes int64
}

// AuditorOption customises an Auditor.
type AuditorOption func(*auditorOptions)

type auditorOptions struct {
	timeout      time.Duration
	maxBytes     int64
	allowPrivate bool
}

// WithAuditTimeout bounds the whole fetch.
func WithAuditTimeout(d time.Duration) AuditorOption {
	return func(o *auditorOptions) { o.timeout = d }
}

// WithPrivateAddresses permits loopback and private targets, for tests.
func WithPrivateAddresses() AuditorOption {
	return func(o *auditorOptions) { o.allowPrivate = true }
}

// NewAuditor builds an auditor whose dialer refuses private networks.
func NewAuditor(opts ...AuditorOption) *Auditor {
	o := auditorOptions{timeout: defaultAuditTimeout, maxBytes: defaultAuditMaxBytes}
	for _, opt := range opts {
		opt(&o)
	}

	dialer := &net.Dialer{Timeout: 5 * time.Second}
	if !o.allowPrivate {
		dialer.Control = func(_, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			if ip := net.ParseIP(host); ip == nil || isPrivateIP(ip) {
				return ErrBlockedAddress
			}
			return nil
		}
	}

	return &Auditor{
		client: &http.Client{
			Timeout: o.timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: 5 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		maxBytes: o.maxBytes,
	}
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast()
}

// ValidateAuditURL normalises and checks a user supplied URL.
func ValidateAuditURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidURL
	}
	u.Fragment = ""
	return u, nil
}

// AuditURL fetches a page and audits its markup.
func (a *Auditor) AuditURL(ctx context.Context, raw string) (AuditReport, error) {
	u, err := ValidateAuditURL(raw)
	if err != nil {
		return AuditReport{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return AuditReport{}, err
	}
	req.Header.Set("User-Agent", auditUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrBlockedAddress) {
			return AuditReport{}, ErrBlockedAddress
		}
		return AuditReport{}, fmt.Errorf("fetch %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return AuditReport{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, a.maxBytes))
	if err != nil {
		return AuditReport{}, fmt.Errorf("parse html: %w", err)
	}
	report := auditDocument(doc)
	report.URL = u.String()
	return report, nil
}
