package tools

import (
	"net/url"
	"path"
	"strings"
	"unicode"
)

const maxAltTextLength = 125

// AltTextResult is a draft alt text derived from an image reference.
type AltTextResult struct {
	Suggestion string   `json:"suggestion"`
	Decorative bool     `json:"decorative"`
	Notes      []string `json:"notes"`
}

var (
	altNoiseWords = map[string]bool{
		"img": true, "image": true, "images": true, "pic": true, "picture": true, "photo": true,
		"dsc": true, "dscn": true, "screenshot": true, "final": true, "copy": true, "edit": true,
		"large": true, "small": true, "thumb": true, "thumbnail": true, "scaled": true, "min": true,
	}
	decorativeWords = map[string]bool{
		"spacer": true, "divider": true, "bg": true, "background": true, "decoration": true,
		"decorative": true, "pattern": true, "separator": true, "shadow": true,
	}
)

// SuggestAltText drafts alt text from the image file name and an optional
// caption or surrounding text. The result is a starting point for a human.
func SuggestAltText(imageRef, context string) (AltTextResult, error) {
	imageRef = strings.TrimSpace(imageRef)
	if imageRef == "" {
		return AltTextResult{}, ErrEmptyInput
	}

	name := imageRef
	if u, err := url.Parse(imageRef); err == nil && u.Path != "" {
		name = u.Path
	}
	name = path.Base(name)
	name = strings.TrimSuffix(name, path.Ext(name))

	res := AltTextResult{Notes: []string{}}
	var words []string
	for _, tok := range splitWords(name) {
		lower := strings.ToLower(tok)
		if decorativeWords[lower] {
			res.Decorative = true
		}
		if altNoiseWords[lower] || decorativeWords[lower] || isDigits(lower) {
			continue
		}
		words = append(words, lower)
	}

	if res.Decorative {
		res.Notes = append(res.Notes, `looks decorative; use alt="" so screen readers skip it`)
		return res, nil
	}

	context = strings.Join(strings.Fields(context), " ")
	switch {
	case context != "":
		res.Suggestion = context
		res.Notes = append(res.Notes, "based on the provided context")
	case len(words) > 0:
		s := strings.Join(words, " ")
		res.Suggestion = strings.ToUpper(s[:1]) + s[1:]
		res.Notes = append(res.Notes, "based on the file name; check that it describes the image content")
	default:
		res.Notes = append(res.Notes, "file name carries no meaning; describe the image manually")
	}

	if len(res.Suggestion) > maxAltTextLength {
		res.Suggestion = strings.TrimSpace(res.Suggestion[:maxAltTextLength])
		res.Notes = append(res.Notes, "shortened to 125 characters")
	}
	return res, nil
}

// splitWords splits on separators and lower-to-upper case changes.
func splitWords(s string) []string {
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	var prev rune
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
		prev = r
	}
	flush()
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
