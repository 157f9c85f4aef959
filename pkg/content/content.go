// Package content defines the closed set of editorial content kinds the
// magazine publishes and the per-kind validation and normalization rules.
// Dispatch is an exhaustive switch over the Kind enum, so adding a kind
// without its rules is a compile-visible hole rather than a runtime miss in
// a string-keyed registry.
package content

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies one of the editorial content types.
type Kind string

const (
	KindArticle   Kind = "article"
	KindFeature   Kind = "feature"
	KindInterview Kind = "interview"
	KindDigiMedia Kind = "digi_media"
)

// Kinds lists every valid content kind.
var Kinds = []Kind{KindArticle, KindFeature, KindInterview, KindDigiMedia}

var (
	ErrUnknownKind    = errors.New("unknown content kind")
	ErrInvalidDraft   = errors.New("invalid content draft")
	ErrMissingTitle   = errors.New("draft title is required")
	ErrMissingBody    = errors.New("draft body is required")
	ErrMissingGuest   = errors.New("interview requires a guest name")
	ErrMissingMedia   = errors.New("digital media requires a media URL")
	ErrFeatureTooThin = errors.New("feature body is below the minimum length")
)

// featureMinBodyRunes is the editorial floor for long-form features.
const featureMinBodyRunes = 1200

// ParseKind converts a raw string into a Kind, rejecting unknown values at
// the edge so the rest of the pipeline only sees the closed set.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindArticle:
		return KindArticle, nil
	case KindFeature:
		return KindFeature, nil
	case KindInterview:
		return KindInterview, nil
	case KindDigiMedia:
		return KindDigiMedia, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Draft is the authoring payload common to all kinds. Kind-specific fields
// are optional at the type level and enforced by Validate.
type Draft struct {
	Kind     Kind
	Title    string
	Subtitle string
	Body     string
	Guest    string // interview only
	MediaURL string // digi_media only
}

// Validate applies the kind-specific rules to a draft.
func Validate(d Draft) error {
	if strings.TrimSpace(d.Title) == "" {
		return errors.Join(ErrInvalidDraft, ErrMissingTitle)
	}

	switch d.Kind {
	case KindArticle:
		if strings.TrimSpace(d.Body) == "" {
			return errors.Join(ErrInvalidDraft, ErrMissingBody)
		}
	case KindFeature:
		if strings.TrimSpace(d.Body) == "" {
			return errors.Join(ErrInvalidDraft, ErrMissingBody)
		}
		if len([]rune(d.Body)) < featureMinBodyRunes {
			return errors.Join(ErrInvalidDraft, ErrFeatureTooThin)
		}
	case KindInterview:
		if strings.TrimSpace(d.Guest) == "" {
			return errors.Join(ErrInvalidDraft, ErrMissingGuest)
		}
		if strings.TrimSpace(d.Body) == "" {
			return errors.Join(ErrInvalidDraft, ErrMissingBody)
		}
	case KindDigiMedia:
		if strings.TrimSpace(d.MediaURL) == "" {
			return errors.Join(ErrInvalidDraft, ErrMissingMedia)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, d.Kind)
	}

	return nil
}

// Normalize returns a cleaned copy of the draft with kind-specific shaping
// applied. It is pure: the input draft is not modified.
func Normalize(d Draft) Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Subtitle = strings.TrimSpace(d.Subtitle)
	d.Body = strings.TrimSpace(d.Body)

	switch d.Kind {
	case KindArticle:
		// Articles drop the subtitle when it merely repeats the title.
		if strings.EqualFold(d.Subtitle, d.Title) {
			d.Subtitle = ""
		}
	case KindFeature:
		// Features keep everything as written.
	case KindInterview:
		d.Guest = strings.TrimSpace(d.Guest)
		if d.Subtitle == "" && d.Guest != "" {
			d.Subtitle = "A conversation with " + d.Guest
		}
	case KindDigiMedia:
		d.MediaURL = strings.TrimSpace(d.MediaURL)
	}

	return d
}
