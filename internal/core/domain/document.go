package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// NoTextExtractedMarker tags analysis input synthesized for files the backend could not read.
const NoTextExtractedMarker = "[no text extracted]"

var acceptedExtensions = map[string]struct{}{
	".pdf":  {},
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".tiff": {},
	".txt":  {},
	".doc":  {},
	".docx": {},
}

// DocumentFile is a file dropped by the user, held in memory for the upload call.
type DocumentFile struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Content     []byte `json:"-"`
}

func (f DocumentFile) Size() int64 {
	return int64(len(f.Content))
}

// IsAcceptedDocument reports whether the drop zone accepts files with this name.
func IsAcceptedDocument(name string) bool {
	_, ok := acceptedExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ValidateDocument rejects files the pipeline must not start on.
func ValidateDocument(file DocumentFile) error {
	name := strings.TrimSpace(file.Name)
	switch {
	case name == "":
		return WrapError(ErrInvalidInput, "validate document", errors.New("file name is required"))
	case file.Size() == 0:
		return WrapError(ErrInvalidInput, "validate document", fmt.Errorf("%s is empty", name))
	case !IsAcceptedDocument(name):
		return WrapError(ErrInvalidInput, "validate document", fmt.Errorf("unsupported file type: %s", name))
	}
	return nil
}

type UploadResult struct {
	Filename      string `json:"filename" yaml:"filename"`
	Size          int64  `json:"size" yaml:"size"`
	Status        string `json:"status" yaml:"status"`
	Message       string `json:"message" yaml:"message"`
	ExtractedText string `json:"extracted_text,omitempty" yaml:"extracted_text,omitempty"`
}

// HasText reports whether the backend returned extracted text at all.
func (r *UploadResult) HasText() bool {
	return r != nil && r.ExtractedText != ""
}

type AnalysisResult struct {
	Summary   string   `json:"summary" yaml:"summary"`
	KeyPoints []string `json:"key_points" yaml:"key_points"`
	Entities  []Entity `json:"entities" yaml:"entities"`
	CaseID    string   `json:"case_id,omitempty" yaml:"case_id,omitempty"`
}

// Entity is a loosely typed record returned by analysis. Keys other than
// name and type are kept in Extra so they survive a round trip.
type Entity struct {
	Name  string
	Type  string
	Extra map[string]any
}

func (e Entity) fields() map[string]any {
	out := make(map[string]any, len(e.Extra)+2)
	for k, v := range e.Extra {
		out[k] = v
	}
	out["name"] = e.Name
	if e.Type != "" {
		out["type"] = e.Type
	}
	return out
}

func (e Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.fields())
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode entity: %w", err)
	}
	*e = Entity{}
	for k, v := range raw {
		switch k {
		case "name":
			e.Name = stringify(v)
		case "type":
			e.Type = stringify(v)
		default:
			if e.Extra == nil {
				e.Extra = make(map[string]any)
			}
			e.Extra[k] = v
		}
	}
	return nil
}

func (e Entity) MarshalYAML() (any, error) {
	return e.fields(), nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// PipelineOutcome is the result of a run started in the background.
type PipelineOutcome struct {
	Result *AnalysisResult
	Err    error
}

type SearchResult struct {
	Text     string         `json:"text" yaml:"text"`
	Metadata map[string]any `json:"metadata" yaml:"metadata"`
	Distance *float64       `json:"distance" yaml:"distance"`
}

type HealthStatus struct {
	Status   string          `json:"status" yaml:"status"`
	Services map[string]bool `json:"services" yaml:"services"`
}

// Healthy is true when every reported service is up.
func (h *HealthStatus) Healthy() bool {
	if h == nil {
		return false
	}
	for _, up := range h.Services {
		if !up {
			return false
		}
	}
	return true
}

type Case struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

type CaseList struct {
	Cases   []Case `json:"cases" yaml:"cases"`
	Total   int    `json:"total" yaml:"total"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// NewCaseID mints a display-only case reference from the given instant.
func NewCaseID(now time.Time) string {
	return fmt.Sprintf("case-%d", now.UnixMilli())
}

// FallbackAnalysisText is sent to analysis when the upload yielded no text.
func FallbackAnalysisText(filename string) string {
	return fmt.Sprintf("Document: %s\n%s", filename, NoTextExtractedMarker)
}
