// Package export renders history windows for offline consumers: a CSV
// listing of the samples and a plain-text report of the axis ranges.
// Both reuse the live data model and range rules, so an export always
// matches what the gateway served for the same window.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	pkgerrors "github.com/HaxIOX/Portax/errors"
	"github.com/HaxIOX/Portax/pipeline"
	"github.com/HaxIOX/Portax/pkg/timestamp"
	"github.com/HaxIOX/Portax/scale"
	"github.com/HaxIOX/Portax/telemetry"
)

// CSV writes the window as comma-separated values: a header row with
// "timestamp" and one column per configured series, then one row per
// sample. Timestamps are RFC3339 with millisecond precision in UTC.
// Undefined values render as empty cells so spreadsheet tools read them
// as missing rather than zero; hidden series keep their column, it is
// simply never populated.
func CSV(w io.Writer, window []telemetry.Sample, series []telemetry.SeriesConfig) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(series)+1)
	header = append(header, "timestamp")
	for _, s := range series {
		header = append(header, s.Name)
	}
	if err := cw.Write(header); err != nil {
		return pkgerrors.Wrap(err, "export", "CSV", "write header")
	}

	row := make([]string, len(series)+1)
	for _, sample := range window {
		row[0] = timestamp.FormatMilli(timestamp.ToUnixMs(sample.Timestamp))
		for i, s := range series {
			row[i+1] = ""
			if s.Index < len(sample.Values) && sample.Values[s.Index].Defined {
				row[i+1] = formatFloat(sample.Values[s.Index].Float64)
			}
		}
		if err := cw.Write(row); err != nil {
			return pkgerrors.Wrap(err, "export", "CSV", "write row")
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return pkgerrors.Wrap(err, "export", "CSV", "flush")
	}
	return nil
}

// RangeReport writes a plain-text listing of the ranges in set, one line
// per series in per-series mode or a single joint line in shared mode.
// Callers pass the RangeSet they serve live, so the reported bounds are
// the rendered bounds, smoothing included.
func RangeReport(w io.Writer, set pipeline.RangeSet, series []telemetry.SeriesConfig) error {
	var b strings.Builder
	fmt.Fprintf(&b, "scale mode: %s\n", set.Mode)

	if set.Mode == scale.ModeShared {
		if set.Shared == nil {
			b.WriteString("all series: no data\n")
		} else {
			fmt.Fprintf(&b, "all series: %s\n", formatRange(*set.Shared))
		}
	} else {
		for i, s := range series {
			switch {
			case !s.Visible:
				fmt.Fprintf(&b, "%s: hidden\n", s.Name)
			case i >= len(set.PerSeries) || !set.PerSeries[i].Defined:
				fmt.Fprintf(&b, "%s: no data\n", s.Name)
			default:
				fmt.Fprintf(&b, "%s: %s\n", s.Name, formatRange(set.PerSeries[i].AxisRange))
			}
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return pkgerrors.Wrap(err, "export", "RangeReport", "write report")
	}
	return nil
}

func formatRange(r scale.AxisRange) string {
	return fmt.Sprintf("min=%s max=%s span=%s",
		formatFloat(r.Min), formatFloat(r.Max), formatFloat(r.Span))
}

// formatFloat renders the shortest representation that round-trips, so
// exported values compare exactly against the live JSON feed.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
