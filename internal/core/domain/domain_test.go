package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestEntityKeepsOpenEndedFields(t *testing.T) {
	raw := `{"name":"Acme Corp","type":"organization","role":"landlord","mentions":3}`

	var e Entity
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Name != "Acme Corp" || e.Type != "organization" {
		t.Fatalf("unexpected entity %+v", e)
	}
	if e.Extra["role"] != "landlord" {
		t.Fatalf("expected extra field preserved, got %+v", e.Extra)
	}

	out, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal back: %v", err)
	}
	if back["mentions"] != float64(3) || back["name"] != "Acme Corp" {
		t.Fatalf("unexpected encoding %s", out)
	}
}

func TestEntityWithoutType(t *testing.T) {
	var e Entity
	if err := json.Unmarshal([]byte(`{"name":"March 3, 2021"}`), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, _ := json.Marshal(e)
	if string(out) != `{"name":"March 3, 2021"}` {
		t.Fatalf("expected type omitted, got %s", out)
	}
}

func TestRemoteErrorDisplayAndKinds(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("pipeline: %w", &RemoteError{Kind: ErrUpload, Detail: UploadFailedMessage, Err: cause})

	if !errors.Is(err, ErrUpload) || !errors.Is(err, cause) {
		t.Fatalf("expected kind and cause reachable, got %v", err)
	}
	if DisplayMessage(err) != UploadFailedMessage {
		t.Fatalf("expected display %q, got %q", UploadFailedMessage, DisplayMessage(err))
	}
	if DisplayMessage(errors.New("plain")) != "plain" {
		t.Fatalf("expected plain message")
	}
}

func TestSettingsPatchValidation(t *testing.T) {
	bad := "12em"
	good := "450px"
	speed := 0.5
	empty := " "

	if err := (SettingsPatch{Timeline: &TimelinePatch{CardWidth: &good, AnimationSpeed: &speed}}).Validate(); err != nil {
		t.Fatalf("expected valid patch, got %v", err)
	}
	if err := (SettingsPatch{Timeline: &TimelinePatch{CardWidth: &bad}}).Validate(); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected invalid card width, got %v", err)
	}
	if err := (SettingsPatch{UI: &UIPatch{ThemeColor: &empty}}).Validate(); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected invalid theme color, got %v", err)
	}
}

func TestApplyLeavesUntouchedFields(t *testing.T) {
	width := "450px"
	got := DefaultSettings().Apply(SettingsPatch{Timeline: &TimelinePatch{CardWidth: &width}})

	want := DefaultSettings()
	want.Timeline.CardWidth = "450px"
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestAcceptedDocuments(t *testing.T) {
	for _, name := range []string{"a.PDF", "scan.tiff", "notes.txt", "brief.docx"} {
		if !IsAcceptedDocument(name) {
			t.Fatalf("expected %s accepted", name)
		}
	}
	for _, name := range []string{"a.zip", "noext", "movie.mp4"} {
		if IsAcceptedDocument(name) {
			t.Fatalf("expected %s rejected", name)
		}
	}
}

func TestUploadResultHasText(t *testing.T) {
	cases := map[string]bool{
		"":            false,
		" \n ":        true,
		"Lease terms": true,
	}
	for text, want := range cases {
		if got := (&UploadResult{ExtractedText: text}).HasText(); got != want {
			t.Fatalf("HasText(%q) = %v, want %v", text, got, want)
		}
	}
	if (*UploadResult)(nil).HasText() {
		t.Fatalf("nil upload result has no text")
	}
}

func TestRemoteErrorKeepsPaddedDetail(t *testing.T) {
	err := &RemoteError{Kind: ErrUpload, Detail: "  X  "}
	if err.Error() != "  X  " {
		t.Fatalf("expected detail unchanged, got %q", err.Error())
	}
}
