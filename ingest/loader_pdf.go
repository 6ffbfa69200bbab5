package ingest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	quarry "github.com/davrk/quarry"
)

// pdfReader extracts text page by page, one segment per page with a
// page_label.
type pdfReader struct{}

func (pdfReader) Read(content []byte) ([]quarry.Segment, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("empty PDF content")
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var segs []quarry.Segment
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		segs = append(segs, quarry.Segment{
			Text:     text,
			Metadata: map[string]string{"page_label": strconv.Itoa(i)},
		})
	}
	return segs, nil
}
