// Package report renders the markdown analytics report from a Liquid
// template.
package report

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/osteele/liquid"

	"github.com/ignite/subscriber-analytics/internal/analytics"
	"github.com/ignite/subscriber-analytics/internal/domain"
)

//go:embed report.md.liquid
var reportTemplate string

// Generator renders analysis results into the markdown report.
type Generator struct {
	tmpl *liquid.Template
}

// NewGenerator parses the embedded template once.
func NewGenerator() (*Generator, error) {
	engine := liquid.NewEngine()
	tmpl, err := engine.ParseString(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &Generator{tmpl: tmpl}, nil
}

// Render produces the full markdown report for one analysis run.
func (g *Generator) Render(a *analytics.Analysis) (string, error) {
	bindings, err := toBindings(a)
	if err != nil {
		return "", err
	}
	bindings["generated_at"] = a.GeneratedAt.Format("January 2, 2006")
	bindings["recommendations"] = Recommendations(a)
	bindings["plan_counts"] = planCounts(a)

	out, err := g.tmpl.Render(bindings)
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return string(out), nil
}

// toBindings converts the analysis to plain maps through its JSON form, so
// the template addresses fields by their snake_case wire names.
func toBindings(a *analytics.Analysis) (map[string]any, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}
	var bindings map[string]any
	if err := json.Unmarshal(data, &bindings); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return bindings, nil
}

// Recommendations derives the closing action items from the headline
// metrics: below a 30% open rate suggest subject-line testing, below a 2%
// conversion rate suggest stronger calls to action, below 2% monthly growth
// suggest acquisition work.
func Recommendations(a *analytics.Analysis) []string {
	var recs []string
	m := a.Metrics

	openRec := fmt.Sprintf("**Open Rate**: Your open rate is %s. ", strings.ToLower(string(m.OpenRate.Rating)))
	if m.OpenRate.Value < 0.30 {
		openRec += "Consider A/B testing subject lines and send times to improve engagement."
	} else {
		openRec += "Keep doing what you're doing with subject lines and content quality."
	}
	recs = append(recs, openRec)

	convRec := fmt.Sprintf("**Conversion**: With a %s conversion rate, ", m.ConversionRate.Percentage)
	if m.ConversionRate.Value < 0.02 {
		convRec += "there's room to improve: add more CTAs, create a compelling paid offer, and nurture free subscribers with targeted content."
	} else {
		convRec += "you're performing well for the newsletter space."
	}
	recs = append(recs, convRec)

	growthRec := fmt.Sprintf("**Growth**: Your %s growth rate suggests ", strings.ToLower(string(m.ListGrowth1Mo.Rating)))
	if m.ListGrowth1Mo.Value < 0.02 {
		growthRec += "you should focus on cross-promotion, SEO-optimized content, and social media presence."
	} else {
		growthRec += "your acquisition efforts are working. Focus on retention."
	}
	recs = append(recs, growthRec)

	if a.Engagement != nil && len(a.Engagement.TopPerformers) > 0 {
		titles := ""
		for i, p := range a.Engagement.TopPerformers {
			if i == 3 {
				break
			}
			if i > 0 {
				titles += ", "
			}
			titles += fmt.Sprintf("%q", truncate(p.Title, 60))
		}
		recs = append(recs, "**Top Performing Content**: Your highest-engaging posts include "+
			titles+". Consider creating more content in these themes.")
	}
	return recs
}

// planCounts flattens the plan distribution map into a sorted list the
// template can loop over.
func planCounts(a *analytics.Analysis) []map[string]any {
	if a.Acquisition == nil {
		return nil
	}
	plans := make([]string, 0, len(a.Acquisition.PlanDistribution))
	for plan := range a.Acquisition.PlanDistribution {
		plans = append(plans, string(plan))
	}
	sort.Strings(plans)

	out := make([]map[string]any, 0, len(plans))
	for _, plan := range plans {
		out = append(out, map[string]any{
			"name":  plan,
			"count": a.Acquisition.PlanDistribution[domain.Plan(plan)],
		})
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
