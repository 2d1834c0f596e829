package export

import (
	"context"
	"fmt"
	"html/template"

	"inkwell/api/internal/blocks"
	"inkwell/api/internal/store"
)

// PageStore is the narrow data dependency for exports.
type PageStore interface {
	GetPage(ctx context.Context, ownerID, pageID string) (store.Page, error)
}

// Service handles page export operations
type Service struct {
	pages PageStore
}

func NewService(pages PageStore) *Service {
	return &Service{pages: pages}
}

// Export renders a page into the requested format. The store lookup is
// owner-scoped, so a page the caller does not own surfaces as not found.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	page, err := s.pages.GetPage(ctx, req.OwnerID, req.PageID)
	if err != nil {
		return nil, err
	}

	contentHTML := BlocksToHTML(blocks.Parse(page.Content))

	html, err := RenderPageHTML(TemplateData{
		Title:       page.Title,
		Icon:        page.Icon,
		ContentHTML: template.HTML(contentHTML),
		Summary:     page.Summary,
		Tags:        page.Tags,
		UpdatedAt:   page.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("render page html: %w", err)
	}

	switch req.Format {
	case FormatPDF, "":
		return exportPDF(ctx, html, page.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}
