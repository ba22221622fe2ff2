package main

import (
	"context"
	"flag"

	"github.com/casestar/casestar-client/internal/bootstrap"
	"github.com/casestar/casestar-client/internal/core/domain"
)

func (c *command) settings(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("settings expects show, set, timeline or reset")
	}
	action, rest := args[0], args[1:]

	fs, common := c.flagSet("settings " + action)
	var patch domain.SettingsPatch
	switch action {
	case "show", "reset":
	case "set":
		patch.Timeline = bindTimelineFlags(fs)
		patch.UI = bindUIFlags(fs)
	case "timeline":
		patch.Timeline = bindTimelineFlags(fs)
	default:
		return usageError("unknown settings action %q", action)
	}
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return usageError("settings %s takes no positional arguments", action)
	}
	visited := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { visited[f.Name] = true })
	patch = keepVisited(patch, visited)
	if (action == "set" || action == "timeline") && patch.IsEmpty() {
		return usageError("settings %s needs at least one field flag", action)
	}

	app, printer, err := c.open(ctx, common, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	var settings domain.AppSettings
	switch action {
	case "show":
		settings = app.SettingsUC.Get()
	case "set":
		settings, err = app.SettingsUC.Update(ctx, patch)
	case "timeline":
		settings, err = app.SettingsUC.UpdateTimeline(ctx, *patch.Timeline)
	case "reset":
		settings, err = app.SettingsUC.Reset(ctx)
	}
	if err != nil {
		return err
	}
	return printer.Print(settings)
}

func bindTimelineFlags(fs *flag.FlagSet) *domain.TimelinePatch {
	p := &domain.TimelinePatch{
		CardWidth:      new(string),
		AnimationSpeed: new(float64),
		ShowConfidence: new(bool),
	}
	fs.StringVar(p.CardWidth, "card-width", "", "timeline card width, e.g. 450px")
	fs.Float64Var(p.AnimationSpeed, "animation-speed", 0, "timeline animation speed multiplier")
	fs.BoolVar(p.ShowConfidence, "show-confidence", false, "show confidence scores")
	return p
}

func bindUIFlags(fs *flag.FlagSet) *domain.UIPatch {
	p := &domain.UIPatch{
		ShowParticles: new(bool),
		ThemeColor:    new(string),
	}
	fs.BoolVar(p.ShowParticles, "show-particles", false, "animated background particles")
	fs.StringVar(p.ThemeColor, "theme-color", "", "theme color name")
	return p
}

// keepVisited drops every patch field whose flag was not given, so
// unspecified fields are left unchanged.
func keepVisited(p domain.SettingsPatch, visited map[string]bool) domain.SettingsPatch {
	if t := p.Timeline; t != nil {
		if !visited["card-width"] {
			t.CardWidth = nil
		}
		if !visited["animation-speed"] {
			t.AnimationSpeed = nil
		}
		if !visited["show-confidence"] {
			t.ShowConfidence = nil
		}
		if t.CardWidth == nil && t.AnimationSpeed == nil && t.ShowConfidence == nil {
			p.Timeline = nil
		}
	}
	if u := p.UI; u != nil {
		if !visited["show-particles"] {
			u.ShowParticles = nil
		}
		if !visited["theme-color"] {
			u.ThemeColor = nil
		}
		if u.ShowParticles == nil && u.ThemeColor == nil {
			p.UI = nil
		}
	}
	return p
}
