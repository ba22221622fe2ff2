package domain

import (
	"errors"
	"regexp"
	"strings"
)

// SettingsKey is the storage key holding the serialized AppSettings.
const SettingsKey = "casestar_settings"

var cardWidthPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?px$`)

type TimelineSettings struct {
	CardWidth      string  `json:"cardWidth" yaml:"cardWidth"`
	AnimationSpeed float64 `json:"animationSpeed" yaml:"animationSpeed"`
	ShowConfidence bool    `json:"showConfidence" yaml:"showConfidence"`
}

type UISettings struct {
	ShowParticles bool   `json:"showParticles" yaml:"showParticles"`
	ThemeColor    string `json:"themeColor" yaml:"themeColor"`
}

type AppSettings struct {
	Timeline TimelineSettings `json:"timeline" yaml:"timeline"`
	UI       UISettings       `json:"ui" yaml:"ui"`
}

func DefaultSettings() AppSettings {
	return AppSettings{
		Timeline: TimelineSettings{
			CardWidth:      "380px",
			AnimationSpeed: 1.0,
			ShowConfidence: true,
		},
		UI: UISettings{
			ShowParticles: true,
			ThemeColor:    "purple",
		},
	}
}

// TimelinePatch is a partial timeline update; nil fields are left as they are.
type TimelinePatch struct {
	CardWidth      *string  `json:"cardWidth,omitempty"`
	AnimationSpeed *float64 `json:"animationSpeed,omitempty"`
	ShowConfidence *bool    `json:"showConfidence,omitempty"`
}

type UIPatch struct {
	ShowParticles *bool   `json:"showParticles,omitempty"`
	ThemeColor    *string `json:"themeColor,omitempty"`
}

type SettingsPatch struct {
	Timeline *TimelinePatch `json:"timeline,omitempty"`
	UI       *UIPatch       `json:"ui,omitempty"`
}

func (p SettingsPatch) IsEmpty() bool {
	return p.Timeline == nil && p.UI == nil
}

// Apply merges the patch over s and returns the result.
func (s AppSettings) Apply(p SettingsPatch) AppSettings {
	out := s
	if p.Timeline != nil {
		out.Timeline = out.Timeline.apply(*p.Timeline)
	}
	if p.UI != nil {
		ui := *p.UI
		if ui.ShowParticles != nil {
			out.UI.ShowParticles = *ui.ShowParticles
		}
		if ui.ThemeColor != nil {
			out.UI.ThemeColor = *ui.ThemeColor
		}
	}
	return out
}

func (t TimelineSettings) apply(p TimelinePatch) TimelineSettings {
	if p.CardWidth != nil {
		t.CardWidth = *p.CardWidth
	}
	if p.AnimationSpeed != nil {
		t.AnimationSpeed = *p.AnimationSpeed
	}
	if p.ShowConfidence != nil {
		t.ShowConfidence = *p.ShowConfidence
	}
	return t
}

func (p SettingsPatch) Validate() error {
	var errs []error
	if p.Timeline != nil {
		if err := p.Timeline.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.UI != nil && p.UI.ThemeColor != nil && !ValidThemeColor(*p.UI.ThemeColor) {
		errs = append(errs, errors.New("ui.themeColor must not be empty"))
	}
	if len(errs) > 0 {
		return WrapError(ErrInvalidInput, "validate settings", errors.Join(errs...))
	}
	return nil
}

func (p TimelinePatch) Validate() error {
	var errs []error
	if p.CardWidth != nil && !ValidCardWidth(*p.CardWidth) {
		errs = append(errs, errors.New("timeline.cardWidth must be a pixel length like 380px"))
	}
	if p.AnimationSpeed != nil && !ValidAnimationSpeed(*p.AnimationSpeed) {
		errs = append(errs, errors.New("timeline.animationSpeed must be greater than zero"))
	}
	return errors.Join(errs...)
}

func ValidCardWidth(v string) bool {
	return cardWidthPattern.MatchString(v)
}

func ValidAnimationSpeed(v float64) bool {
	return v > 0
}

func ValidThemeColor(v string) bool {
	return strings.TrimSpace(v) != ""
}
