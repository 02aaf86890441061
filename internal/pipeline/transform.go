package pipeline

import (
	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// normalize runs the domain normalizer and reports every dropped row.
func (p *Pipeline) normalize(source string, rows []domain.RawRow) domain.Normalized {
	p.metrics.RowsRead.WithLabelValues(source).Add(float64(len(rows)))

	norm := domain.Normalize(rows, p.opts.Normalize)
	for _, r := range norm.Rejected {
		attrs := []any{
			"source", source,
			"row", r.Row,
			"reason", r.Reason,
			"date_text", r.DateText,
		}
		if r.Err != nil {
			attrs = append(attrs, "error", r.Err)
		}
		p.logger.Warn("row dropped", attrs...)
		p.metrics.RowsDropped.WithLabelValues(source, string(r.Reason)).Inc()
	}
	if norm.Inverted > 0 {
		p.logger.Warn("inverted temperature pairs",
			"source", source,
			"count", norm.Inverted,
			"swapped", p.opts.Normalize.SwapInvertedTemps,
		)
		p.metrics.InvertedTemperatures.WithLabelValues(source).Add(float64(norm.Inverted))
	}

	p.logger.Info("rows normalized",
		"source", source,
		"read", len(rows),
		"kept", len(norm.Observations),
		"dropped", len(norm.Rejected),
	)
	return norm
}
