package api

import (
	"github.com/snapcase/snapcase/internal/imaging"
	"github.com/snapcase/snapcase/internal/wizard"
)

// imageView describes an image artifact without its bytes; clients fetch
// previews separately.
type imageView struct {
	ContentType string `json:"contentType"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Bytes       int    `json:"bytes"`
}

func imageViewOf(a *imaging.Artifact) *imageView {
	if a == nil {
		return nil
	}
	return &imageView{
		ContentType: a.ContentType,
		Width:       a.Width,
		Height:      a.Height,
		Bytes:       len(a.Data),
	}
}

// draftView is the API representation of the draft: full state, images
// elided to metadata.
func draftView(d wizard.Draft) map[string]any {
	return map[string]any{
		"step":          d.Step.String(),
		"phone":         d.Phone,
		"caseType":      d.CaseType,
		"sourceImage":   imageViewOf(d.SourceImage),
		"renderedImage": imageViewOf(d.RenderedImage),
		"transform":     d.Transform,
		"filters":       d.Filters,
		"fulfillment":   d.Fulfillment,
		"contact":       d.Contact,
		"pricing":       d.Pricing,
		"paymentState":  d.PaymentState,
	}
}
