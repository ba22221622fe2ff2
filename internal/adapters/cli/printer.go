package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/casestar/casestar-client/internal/core/domain"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

func ValidFormat(format string) bool {
	switch format {
	case FormatText, FormatJSON, FormatYAML:
		return true
	default:
		return false
	}
}

type Printer struct {
	w      io.Writer
	format string
}

func NewPrinter(w io.Writer, format string) (*Printer, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatText
	}
	if !ValidFormat(format) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "output format", fmt.Errorf("unsupported format %q", format))
	}
	return &Printer{w: w, format: format}, nil
}

func (p *Printer) Print(v any) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return p.printText(v)
	}
}

func (p *Printer) printText(v any) error {
	var b strings.Builder
	switch x := v.(type) {
	case *domain.AnalysisResult:
		writeAnalysis(&b, x)
	case []domain.SearchResult:
		writeSearch(&b, x)
	case *domain.HealthStatus:
		writeHealth(&b, x)
	case *domain.CaseList:
		writeCases(&b, x)
	case domain.AppSettings:
		writeSettings(&b, x)
	case domain.StageSnapshot:
		fmt.Fprintf(&b, "stage: %s\n", x.Stage)
		if x.Message != "" {
			fmt.Fprintf(&b, "message: %s\n", x.Message)
		}
		if x.Result != nil {
			writeAnalysis(&b, x.Result)
		}
	case domain.StageEvent:
		fmt.Fprintf(&b, "%s  %s -> %s", x.At.Format("15:04:05"), x.Previous, x.Stage)
		if x.Message != "" {
			fmt.Fprintf(&b, "  %s", x.Message)
		}
		b.WriteByte('\n')
	case string:
		b.WriteString(x)
		b.WriteByte('\n')
	default:
		fmt.Fprintf(&b, "%v\n", x)
	}
	_, err := io.WriteString(p.w, b.String())
	return err
}

func writeAnalysis(b *strings.Builder, r *domain.AnalysisResult) {
	if r == nil {
		return
	}
	if r.CaseID != "" {
		fmt.Fprintf(b, "Case: %s\n", r.CaseID)
	}
	fmt.Fprintf(b, "\nSummary\n  %s\n", r.Summary)
	if len(r.KeyPoints) > 0 {
		b.WriteString("\nKey points\n")
		for _, kp := range r.KeyPoints {
			fmt.Fprintf(b, "  - %s\n", kp)
		}
	}
	if len(r.Entities) > 0 {
		b.WriteString("\nEntities\n")
		for _, e := range r.Entities {
			if e.Type != "" {
				fmt.Fprintf(b, "  - %s (%s)\n", e.Name, e.Type)
			} else {
				fmt.Fprintf(b, "  - %s\n", e.Name)
			}
		}
	}
}

func writeSearch(b *strings.Builder, results []domain.SearchResult) {
	if len(results) == 0 {
		b.WriteString("No results\n")
		return
	}
	for i, r := range results {
		score := "n/a"
		if r.Distance != nil {
			score = fmt.Sprintf("%.3f", *r.Distance)
		}
		fmt.Fprintf(b, "%d. [%s] %s\n", i+1, score, strings.TrimSpace(r.Text))
	}
}

func writeHealth(b *strings.Builder, h *domain.HealthStatus) {
	fmt.Fprintf(b, "status: %s\n", h.Status)
	names := make([]string, 0, len(h.Services))
	for name := range h.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		state := "down"
		if h.Services[name] {
			state = "up"
		}
		fmt.Fprintf(b, "  %-12s %s\n", name, state)
	}
}

func writeCases(b *strings.Builder, list *domain.CaseList) {
	if len(list.Cases) == 0 {
		msg := list.Message
		if msg == "" {
			msg = "No cases"
		}
		fmt.Fprintf(b, "%s\n", msg)
		return
	}
	for _, c := range list.Cases {
		fmt.Fprintf(b, "%s  %s\n", c.ID, c.Title)
	}
}

func writeSettings(b *strings.Builder, s domain.AppSettings) {
	fmt.Fprintf(b, "timeline.cardWidth       %s\n", s.Timeline.CardWidth)
	fmt.Fprintf(b, "timeline.animationSpeed  %g\n", s.Timeline.AnimationSpeed)
	fmt.Fprintf(b, "timeline.showConfidence  %t\n", s.Timeline.ShowConfidence)
	fmt.Fprintf(b, "ui.showParticles         %t\n", s.UI.ShowParticles)
	fmt.Fprintf(b, "ui.themeColor            %s\n", s.UI.ThemeColor)
}
