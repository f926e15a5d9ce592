package adapters

import (
	"fmt"
	"strings"

	"github.com/de-tools/commerce-atlas/pkg/models/domain"
	"github.com/de-tools/commerce-atlas/pkg/pipeline"
)

// MapResultToReport converts a finished run into the terminal report.
// locate turns a destination name into where it was written.
func MapResultToReport(res *pipeline.Result, output domain.OutputMode, locate func(string) string) *domain.Report {
	if res == nil {
		return nil
	}
	if locate == nil {
		locate = func(dest string) string { return dest }
	}

	name := res.Pipeline
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}

	report := &domain.Report{
		Title: fmt.Sprintf("%s run %s", name, res.RunID),
		RunID: res.RunID,
		Period: domain.TimePeriod{
			Start: res.Window.Since,
			End:   res.Window.Until,
			AsOf:  res.AsOf,
		},
		Output:  output,
		Elapsed: res.Elapsed,
	}

	for _, out := range res.Outputs {
		section := domain.ReportSection{
			Title: out.Destination,
			Summary: map[string]interface{}{
				"location": locate(out.Destination),
				"rows":     out.Table.Len(),
				"columns":  len(out.Table.Columns()),
			},
		}
		for _, c := range out.Table.Columns() {
			values, _ := out.Table.ColumnValues(c.Name)
			present := 0
			for _, v := range values {
				if v != nil {
					present++
				}
			}
			section.Details = append(section.Details, domain.ReportDetail{
				Name:        c.Name,
				Value:       present,
				Unit:        c.Type.String(),
				Description: "non-missing values",
			})
		}
		report.Sections = append(report.Sections, section)
	}
	return report
}
