package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/accessibility-build/platform/internal/pkg/entitlements"
)

var (
	ErrUnknownTool  = errors.New("unknown tool")
	ErrInvalidInput = errors.New("invalid input")
)

type contrastInput struct {
	Foreground string `json:"foreground" validate:"required,max=16"`
	Background string `json:"background" validate:"required,max=16"`
}

type paletteInput struct {
	Base string `json:"base" validate:"required,max=16"`
	Size int    `json:"size" validate:"omitempty,min=2,max=12"`
}

type jsonInput struct {
	Input  string `json:"input" validate:"required,max=1048576"`
	Indent *int   `json:"indent" validate:"omitempty,min=0,max=8"`
}

type headingsInput struct {
	HTML string `json:"html" validate:"required,max=2097152"`
}

type altTextInput struct {
	ImageURL string `json:"image_url" validate:"required,max=2048"`
	Context  string `json:"context" validate:"max=1000"`
}

type auditInput struct {
	URL string `json:"url" validate:"required,url,max=2048"`
}

// Runner decodes tool input and dispatches to the tool implementation.
type Runner struct {
	validate *validator.Validate
	auditor  *Auditor
}

// NewRunner creates a runner. auditor may be nil to use the default one.
func NewRunner(auditor *Auditor) *Runner {
	if auditor == nil {
		auditor = NewAuditor()
	}
	return &Runner{validate: validator.New(), auditor: auditor}
}

// Run executes tool against a JSON request body.
func (r *Runner) Run(ctx context.Context, tool entitlements.Tool, body []byte) (interface{}, error) {
	switch tool {
	case entitlements.ToolContrastChecker:
		var in contrastInput
		if err := r.decode(body, &in); err != nil {
			return nil, err
		}
		return wrapInput(ContrastRatio(in.Foreground, in.Background))
	case entitlements.ToolColorPaletteGenerator:
		var in paletteInput
		if err := r.decode(body, &in); err != nil {
			return nil, err
		}
		if in.Size == 0 {
			in.Size = 5
		}
		return wrapInput(GeneratePalette(in.Base, in.Size))
	case entitlements.ToolJSONFormatter:
		var in jsonInput
		if err := r.decode(body, &in); err != nil {
			return nil, err
		}
		indent := 2
		if in.Indent != nil {
			indent = *in.Indent
		}
		out, err := FormatJSON(in.Input, indent)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return map[string]string{"output": out}, nil
	case entitlements.ToolHeadingStructureReview:
		var in headingsInput
		if err := r.decode(body, &in); err != nil {
			return nil, err
		}
		return wrapInput(AnalyzeHeadings(in.HTML))
	case entitlements.ToolAltTextGenerator:
		var in altTextInput
		if err := r.decode(body, &in); err != nil {
			return nil, err
		}
		return wrapInput(SuggestAltText(in.ImageURL, in.Context))
	case entitlements.ToolURLAccessibilityAudit:
		var in auditInput
		if err := r.decode(body, &in); err != nil {
			return nil, err
		}
		report, err := r.auditor.AuditURL(ctx, in.URL)
		if errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrBlockedAddress) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if err != nil {
			return nil, err
		}
		return report, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, tool)
	}
}

func (r *Runner) decode(body []byte, dst interface{}) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := r.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// wrapInput marks errors of pure tools as caller mistakes.
func wrapInput(v interface{}, err error) (interface{}, error) {
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return v, nil
}
