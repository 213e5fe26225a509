package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessibility-build/platform/internal/pkg/entitlements"
)

func TestContrastRatio(t *testing.T) {
	tests := []struct {
		name   string
		fg, bg string
		ratio  float64
		aa     bool
		aaLg   bool
		aaa    bool
	}{
		{"black on white", "#000000", "#ffffff", 21, true, true, true},
		{"short hex", "000", "#fff", 21, true, true, true},
		{"same color", "#777", "#777777", 1, false, false, false},
		{"grey on white", "#767676", "#ffffff", 4.54, true, true, false},
		{"light grey", "#999999", "#ffffff", 2.85, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := ContrastRatio(tt.fg, tt.bg)
			require.NoError(t, err)
			assert.InDelta(t, tt.ratio, res.Ratio, 0.01)
			assert.Equal(t, tt.aa, res.AANormal)
			assert.Equal(t, tt.aaLg, res.AALarge)
			assert.Equal(t, tt.aaa, res.AAANormal)
		})
	}
}

func TestContrastRatioIsSymmetric(t *testing.T) {
	a, err := ContrastRatio("#336699", "#f0f0f0")
	require.NoError(t, err)
	b, err := ContrastRatio("#f0f0f0", "#336699")
	require.NoError(t, err)
	assert.Equal(t, a.Ratio, b.Ratio)
}

func TestContrastRatioRejectsBadColors(t *testing.T) {
	for _, in := range []string{"", "#12", "#gggggg", "red", "#12345678"} {
		_, err := ContrastRatio(in, "#fff")
		assert.ErrorIs(t, err, ErrInvalidColor, in)
	}
}

func TestGeneratePalette(t *testing.T) {
	swatches, err := GeneratePalette("#336699", 4)
	require.NoError(t, err)
	require.Len(t, swatches, 4)
	assert.True(t, swatches[0].IsBaseColor)
	assert.Equal(t, "#336699", swatches[0].Hex)
	for _, s := range swatches {
		assert.Contains(t, []string{"#000000", "#ffffff"}, s.TextColor)
		assert.GreaterOrEqual(t, s.Contrast, 1.0)
	}

	clamped, err := GeneratePalette("#336699", 100)
	require.NoError(t, err)
	assert.Len(t, clamped, maxPaletteSize)
}

func TestFormatJSON(t *testing.T) {
	out, err := FormatJSON(`{"b":1,"a":[1,2]}`, 2)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"b\": 1,\n  \"a\": [\n    1,\n    2\n  ]\n}", out)

	compact, err := FormatJSON("{ \"a\" : 1.50 }", 0)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1.50}`, compact)

	_, err = FormatJSON("   ", 2)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = FormatJSON(`{"a":}`, 2)
	assert.Error(t, err)
}

func TestAnalyzeHeadings(t *testing.T) {
	report, err := AnalyzeHeadings(`<h1>Title</h1><h2>Intro</h2><h4>Deep</h4><h2></h2>`)
	require.NoError(t, err)

	require.Len(t, report.Headings, 4)
	assert.Equal(t, Heading{Level: 4, Text: "Deep"}, report.Headings[2])
	assert.False(t, report.Valid)

	rules := map[string]bool{}
	for _, i := range report.Issues {
		rules[i.Rule] = true
	}
	assert.True(t, rules["skipped-heading-level"])
	assert.True(t, rules["empty-heading"])
	assert.False(t, rules["missing-h1"])
}

func TestAnalyzeHeadingsCleanOutline(t *testing.T) {
	report, err := AnalyzeHeadings(`<h1>Docs</h1><h2>A</h2><h3>A.1</h3><h2>B <img alt="icon"></h2>`)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Issues)
	assert.Equal(t, "B icon", report.Headings[3].Text)
}

func TestAnalyzeHeadingsMissingH1(t *testing.T) {
	report, err := AnalyzeHeadings(`<p>no headings</p>`)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "no-headings", report.Issues[0].Rule)

	report, err = AnalyzeHeadings(`<h2>Sub</h2><h3>Deeper</h3>`)
	require.NoError(t, err)
	assert.False(t, report.Valid)
}

const samplePage = `<!doctype html><html><head><title>Shop</title></head><body>
<h1>Shop</h1>
<img src="a.png"><img src="b.png" alt=""><img src="c.png" aria-hidden="true">
<a href="/x"></a><a href="/y" aria-label="Cart"></a><a href="/z">Home</a>
<label for="q">Search</label><input id="q"><input id="email"><input type="submit">
<label>Name <input name="name"></label>
</body></html>`

func TestAuditHTML(t *testing.T) {
	report, err := AuditHTML(samplePage)
	require.NoError(t, err)

	assert.Equal(t, "Shop", report.Title)
	assert.Equal(t, "", report.Lang)
	assert.Equal(t, AuditStats{
		Images:            3,
		ImagesMissingAlt:  1,
		Links:             3,
		EmptyLinks:        1,
		FormControls:      3,
		UnlabeledControls: 1,
	}, report.Stats)
	assert.Equal(t, 60, report.Score)
}

func TestAuditURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html lang="en"><head><title>Ok</title></head><body><h1>Ok</h1></body></html>`))
	}))
	defer srv.Close()

	auditor := NewAuditor(WithPrivateAddresses())
	report, err := auditor.AuditURL(context.Background(), srv.URL+"/page#frag")
	require.NoError(t, err)
	assert.Equal(t, 100, report.Score)
	assert.Equal(t, srv.URL+"/page", report.URL)

	_, err = auditor.AuditURL(context.Background(), srv.URL+"/missing")
	assert.ErrorIs(t, err, ErrUnexpectedStatus)

	_, err = NewAuditor().AuditURL(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrBlockedAddress)

	_, err = auditor.AuditURL(context.Background(), "ftp://example.com")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestSuggestAltText(t *testing.T) {
	res, err := SuggestAltText("https://cdn.example.com/img/red-bicycle_parkedOutside-1024.jpg", "")
	require.NoError(t, err)
	assert.Equal(t, "Red bicycle parked outside", res.Suggestion)
	assert.False(t, res.Decorative)

	res, err = SuggestAltText("section-divider.svg", "")
	require.NoError(t, err)
	assert.True(t, res.Decorative)
	assert.Empty(t, res.Suggestion)

	res, err = SuggestAltText("DSC_0042.JPG", "")
	require.NoError(t, err)
	assert.Empty(t, res.Suggestion)

	res, err = SuggestAltText("x.png", "  Team   photo at the 2026 offsite ")
	require.NoError(t, err)
	assert.Equal(t, "Team photo at the 2026 offsite", res.Suggestion)

	_, err = SuggestAltText(" ", "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestRunnerDispatch(t *testing.T) {
	r := NewRunner(NewAuditor())
	ctx := context.Background()

	out, err := r.Run(ctx, entitlements.ToolContrastChecker, []byte(`{"foreground":"#000","background":"#fff"}`))
	require.NoError(t, err)
	assert.Equal(t, 21.0, out.(ContrastResult).Ratio)

	out, err = r.Run(ctx, entitlements.ToolJSONFormatter, []byte(`{"input":"{\"a\":1}","indent":0}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"output": `{"a":1}`}, out)

	_, err = r.Run(ctx, entitlements.ToolContrastChecker, []byte(`{"foreground":"#000"}`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.Run(ctx, entitlements.ToolContrastChecker, []byte(`{"foreground":"nope","background":"#fff"}`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.Run(ctx, entitlements.ToolURLAccessibilityAudit, []byte(`{"url":"not a url"}`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.Run(ctx, entitlements.Tool("nope"), []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownTool)

	out, err = r.Run(ctx, entitlements.ToolColorPaletteGenerator, []byte(`{"base":"#336699"}`))
	require.NoError(t, err)
	assert.Len(t, out.([]Swatch), 5)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"is_base_color":true`)
}
