// Command report runs the full analysis over an export directory and
// writes the markdown report, without the HTTP server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ignite/subscriber-analytics/internal/analytics"
	"github.com/ignite/subscriber-analytics/internal/loader"
	"github.com/ignite/subscriber-analytics/internal/report"
)

func main() {
	dataPath := flag.String("data-path", "", "path to the export directory (required)")
	output := flag.String("output", "analytics-report.md", "output markdown file")
	windowDays := flag.Int("attribution-window", 7, "conversion attribution window in days")
	flag.Parse()

	if *dataPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	ds, err := loader.Load(*dataPath)
	if err != nil {
		log.Fatalf("Failed to load export: %v", err)
	}

	analysis := analytics.Run(ds, time.Now().UTC(), analytics.Options{
		AttributionWindowDays: *windowDays,
	})

	gen, err := report.NewGenerator()
	if err != nil {
		log.Fatalf("Failed to build report generator: %v", err)
	}
	markdown, err := gen.Render(analysis)
	if err != nil {
		log.Fatalf("Failed to render report: %v", err)
	}

	if err := os.WriteFile(*output, []byte(markdown), 0o644); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}

	fmt.Printf("Report written to %s\n", *output)
	fmt.Printf("  Subscribers: %d (ever paid: %d)\n",
		analysis.Metrics.ConversionRate.TotalSubscribers, analysis.Metrics.ConversionRate.EverPaid)
	fmt.Printf("  Open rate: %s (%s)\n",
		analysis.Metrics.OpenRate.Percentage, analysis.Metrics.OpenRate.Rating)
}
