package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/snapcase/snapcase/internal/imaging"
	"github.com/snapcase/snapcase/internal/wizard"
)

// envelope is the flattened, text-safe form of a draft written to the
// session slot. Binary image fields are carried as base64 data URIs next to
// the draft, whose own JSON form excludes raw bytes.
type envelope struct {
	Draft            wizard.Draft `json:"draft"`
	SourceImageURI   string       `json:"sourceImageUri,omitempty"`
	RenderedImageURI string       `json:"renderedImageUri,omitempty"`
	Timestamp        time.Time    `json:"timestamp"`
}

// encodeDraft serializes the draft and its image bytes into the portable
// text form.
func encodeDraft(d wizard.Draft, now time.Time) ([]byte, error) {
	env := envelope{Draft: d, Timestamp: now}
	if d.SourceImage != nil {
		env.SourceImageURI = d.SourceImage.DataURI()
	}
	if d.RenderedImage != nil {
		env.RenderedImageURI = d.RenderedImage.DataURI()
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	return data, nil
}

// decodeDraft materializes a draft from the persisted form, restoring
// image bytes from their data URIs. A snapshot that references images but
// carries no decodable data is inconsistent and cannot be resumed.
func decodeDraft(data []byte) (wizard.Draft, time.Time, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return wizard.Draft{}, time.Time{}, fmt.Errorf("%w: %v", ErrInconsistent, err)
	}

	d := env.Draft
	if d.SourceImage != nil {
		if env.SourceImageURI == "" {
			return wizard.Draft{}, time.Time{}, fmt.Errorf("%w: source image data missing", ErrInconsistent)
		}
		raw, ct, err := imaging.DecodeDataURI(env.SourceImageURI)
		if err != nil {
			return wizard.Draft{}, time.Time{}, fmt.Errorf("%w: source image: %v", ErrInconsistent, err)
		}
		if len(raw) == 0 {
			return wizard.Draft{}, time.Time{}, fmt.Errorf("%w: source image data empty", ErrInconsistent)
		}
		img := *d.SourceImage
		img.Data = raw
		if img.ContentType == "" {
			img.ContentType = ct
		}
		d.SourceImage = &img
	}
	if d.RenderedImage != nil {
		if env.RenderedImageURI == "" {
			return wizard.Draft{}, time.Time{}, fmt.Errorf("%w: rendered image data missing", ErrInconsistent)
		}
		raw, ct, err := imaging.DecodeDataURI(env.RenderedImageURI)
		if err != nil {
			return wizard.Draft{}, time.Time{}, fmt.Errorf("%w: rendered image: %v", ErrInconsistent, err)
		}
		if len(raw) == 0 {
			return wizard.Draft{}, time.Time{}, fmt.Errorf("%w: rendered image data empty", ErrInconsistent)
		}
		img := *d.RenderedImage
		img.Data = raw
		if img.ContentType == "" {
			img.ContentType = ct
		}
		d.RenderedImage = &img
	}

	return d, env.Timestamp, nil
}
