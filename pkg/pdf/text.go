package pdf

import (
	"errors"
	"fmt"
)

// PageText extracts the text of a page by index (0-based). Extractors are
// tried in order and the first one that succeeds wins; options passed here
// are applied after the document defaults.
func (d *StreamDocument) PageText(index int, opts ...TextExtractionOption) (string, error) {
	if err := d.check("page text"); err != nil {
		return "", err
	}
	if index < 0 || index >= d.ctx.PageCount {
		return "", NewError(KindInvalidInput, "page text",
			fmt.Errorf("%w: %d not in [0, %d)", ErrPageRange, index, d.ctx.PageCount))
	}

	extractors, err := d.textExtractors()
	if err != nil {
		return "", loadError("page text", d.src, err)
	}

	var errs []error
	for _, ex := range extractors {
		text, err := ex.PageText(index + 1)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ex.Name(), err))
			continue
		}

		cfg := d.text
		for _, opt := range opts {
			opt(&cfg)
		}
		return cfg.apply(text), nil
	}

	if serr := sourceErr(d.src); serr != nil {
		return "", NewError(KindIO, "page text", serr)
	}
	return "", NewError(KindExtraction, "page text", errors.Join(errs...))
}

// textExtractors opens the extractor chain on first use. Readers that fail
// to open are skipped.
func (d *StreamDocument) textExtractors() ([]TextExtractor, error) {
	if d.extractors != nil {
		return d.extractors, nil
	}

	password := d.ctx.Configuration.UserPW
	var errs []error

	if ex, err := NewLedongthucExtractor(d.src, d.size, password); err == nil {
		d.extractors = append(d.extractors, ex)
	} else {
		errs = append(errs, err)
	}
	if ex, err := NewDslipakExtractor(d.src, d.size, password); err == nil {
		d.extractors = append(d.extractors, ex)
	} else {
		errs = append(errs, err)
	}

	if len(d.extractors) == 0 {
		return nil, fmt.Errorf("no text extractor could open the document: %w", errors.Join(errs...))
	}
	return d.extractors, nil
}

func sourceErr(src any) error {
	if s, ok := src.(interface{ Err() error }); ok {
		return s.Err()
	}
	return nil
}
