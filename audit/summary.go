package audit

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
)

// summariser turns a masked card's HTML subtree into a short markdown
// rendition for the audit trail. Card HTML comes from an uncontrolled
// page, so it is sanitised before conversion.
type summariser struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

func newSummariser() *summariser {
	return &summariser{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// render converts card HTML to markdown. On conversion failure it falls
// back to the sanitised HTML — an unreadable audit row beats a lost one.
func (s *summariser) render(cardHTML string) string {
	clean := s.policy.Sanitize(cardHTML)
	md, err := s.conv.ConvertString(clean)
	if err != nil || strings.TrimSpace(md) == "" {
		return strings.TrimSpace(clean)
	}
	return strings.TrimSpace(md)
}
