package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/casestar/casestar-client/internal/core/domain"
	"github.com/casestar/casestar-client/internal/core/ports"
)

// SettingsService keeps AppSettings in memory and writes them through to the
// store on every mutation.
type SettingsService struct {
	mu      sync.Mutex
	store   ports.KeyValueStore
	current domain.AppSettings
}

func NewSettingsService(ctx context.Context, store ports.KeyValueStore) (*SettingsService, error) {
	s := &SettingsService{
		store:   store,
		current: domain.DefaultSettings(),
	}
	if _, err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SettingsService) Get() domain.AppSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Reload re-reads the persisted value and merges it over the defaults.
func (s *SettingsService) Reload(ctx context.Context) (domain.AppSettings, error) {
	raw, ok, err := s.store.Get(ctx, domain.SettingsKey)
	if err != nil {
		return domain.AppSettings{}, fmt.Errorf("load settings: %w", err)
	}

	loaded := domain.DefaultSettings()
	if ok {
		var clean bool
		loaded, clean = decodeStoredSettings(raw)
		if !clean {
			slog.Warn("settings_partially_invalid", "key", domain.SettingsKey)
		}
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return loaded, nil
}

func (s *SettingsService) Update(ctx context.Context, patch domain.SettingsPatch) (domain.AppSettings, error) {
	if err := patch.Validate(); err != nil {
		return domain.AppSettings{}, err
	}
	return s.mutate(ctx, func(cur domain.AppSettings) domain.AppSettings {
		return cur.Apply(patch)
	})
}

func (s *SettingsService) UpdateTimeline(ctx context.Context, patch domain.TimelinePatch) (domain.AppSettings, error) {
	return s.Update(ctx, domain.SettingsPatch{Timeline: &patch})
}

func (s *SettingsService) Reset(ctx context.Context) (domain.AppSettings, error) {
	return s.mutate(ctx, func(domain.AppSettings) domain.AppSettings {
		return domain.DefaultSettings()
	})
}

// mutate persists before committing so memory never runs ahead of the store.
func (s *SettingsService) mutate(ctx context.Context, fn func(domain.AppSettings) domain.AppSettings) (domain.AppSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(s.current)
	raw, err := json.Marshal(next)
	if err != nil {
		return domain.AppSettings{}, fmt.Errorf("marshal settings: %w", err)
	}
	if err := s.store.Put(ctx, domain.SettingsKey, raw); err != nil {
		return domain.AppSettings{}, fmt.Errorf("save settings: %w", err)
	}
	s.current = next
	return next, nil
}

// decodeStoredSettings reads each field on its own so a single bad value
// only falls back for that field. clean is false when anything was dropped.
func decodeStoredSettings(raw []byte) (settings domain.AppSettings, clean bool) {
	settings = domain.DefaultSettings()
	if !gjson.ValidBytes(raw) {
		return settings, false
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return settings, false
	}
	clean = true

	if v := doc.Get("timeline.cardWidth"); v.Exists() {
		if v.Type == gjson.String && domain.ValidCardWidth(v.Str) {
			settings.Timeline.CardWidth = v.Str
		} else {
			clean = false
		}
	}
	if v := doc.Get("timeline.animationSpeed"); v.Exists() {
		if v.Type == gjson.Number && domain.ValidAnimationSpeed(v.Num) {
			settings.Timeline.AnimationSpeed = v.Num
		} else {
			clean = false
		}
	}
	if v := doc.Get("timeline.showConfidence"); v.Exists() {
		if v.IsBool() {
			settings.Timeline.ShowConfidence = v.Bool()
		} else {
			clean = false
		}
	}
	if v := doc.Get("ui.showParticles"); v.Exists() {
		if v.IsBool() {
			settings.UI.ShowParticles = v.Bool()
		} else {
			clean = false
		}
	}
	if v := doc.Get("ui.themeColor"); v.Exists() {
		if v.Type == gjson.String && domain.ValidThemeColor(v.Str) {
			settings.UI.ThemeColor = v.Str
		} else {
			clean = false
		}
	}
	return settings, clean
}
