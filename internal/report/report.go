// Package report renders a verification session into human-readable
// documents: an HTML table of per-field comparison records and an ECharts
// bar chart of per-field mean error. It consumes records exactly as the
// session produced them and adds no interpretation of its own.
package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/linkcheck/internal/session"
)

//go:embed templates/*
var templateFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templateFS, "templates/report.html.tmpl"))

// reportData is the template context for one rendered report.
type reportData struct {
	GeneratedAt string
	Result      *session.Result
	Summary     session.Summary
}

// Filename returns the timestamped report filename for a session run at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("UART_Test_Report_%s.html", t.Format("2006-01-02_15-04-05"))
}

// ChartFilename returns the timestamped chart filename for a session run at t.
func ChartFilename(t time.Time) string {
	return fmt.Sprintf("UART_Test_Chart_%s.html", t.Format("2006-01-02_15-04-05"))
}

// Render writes the HTML report for res to w.
func Render(w io.Writer, res *session.Result, sum session.Summary) error {
	data := reportData{
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
		Result:      res,
		Summary:     sum,
	}
	return reportTemplate.Execute(w, data)
}

// RenderChart writes a bar chart of per-field mean percent error to w.
func RenderChart(w io.Writer, res *session.Result, sum session.Summary) error {
	labels := make([]string, len(sum.FieldMeanError))
	data := make([]opts.BarData, len(sum.FieldMeanError))
	for i, v := range sum.FieldMeanError {
		labels[i] = fmt.Sprintf("field %d", i+1)
		data[i] = opts.BarData{Value: v}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "UART Link Verification"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Per-field mean error (%)",
			Subtitle: fmt.Sprintf("session=%s received=%d/%d", res.ID, res.Received, res.Sent),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).AddSeries("error %", data)
	return bar.Render(w)
}

// WriteFiles renders the report and chart into dir using the timestamped
// filenames, returning the report path.
func WriteFiles(dir string, res *session.Result, sum session.Summary) (string, error) {
	reportPath := filepath.Join(dir, Filename(res.StartedAt))
	f, err := os.Create(reportPath)
	if err != nil {
		return "", err
	}
	if err := Render(f, res, sum); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	chartPath := filepath.Join(dir, ChartFilename(res.StartedAt))
	cf, err := os.Create(chartPath)
	if err != nil {
		return "", err
	}
	if err := RenderChart(cf, res, sum); err != nil {
		cf.Close()
		return "", fmt.Errorf("failed to render chart: %w", err)
	}
	return reportPath, cf.Close()
}
