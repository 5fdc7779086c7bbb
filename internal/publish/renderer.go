// Package publish turns poll records into rendered aggregate views and
// pushes them to an opaque result destination.
package publish

import (
	"fmt"

	"github.com/pollwatch/pollwatch/internal/domain"
)

// Display caps apply at render time only; stored values stay untruncated.
const (
	questionDisplayCap = 256
	optionDisplayCap   = 80
)

// Render produces the aggregate view for a poll, option labels with current
// counts in ballot order.
func Render(p *domain.Poll, final bool) domain.RenderedView {
	prefix := "Live results"
	if final {
		prefix = "Final results"
	}

	lines := make([]string, len(p.Options))
	for i, opt := range p.Options {
		lines[i] = fmt.Sprintf("%s: %d votes", truncate(opt, optionDisplayCap), p.Votes[i])
	}

	return domain.RenderedView{
		Title: fmt.Sprintf("%s: %s", prefix, truncate(p.Question, questionDisplayCap)),
		Lines: lines,
		Final: final,
	}
}

// truncate caps s at max code points.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
