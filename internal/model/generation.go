package model

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// GenerationRequest is the caller's input. It is treated as immutable once
// WithDefaults has been applied.
type GenerationRequest struct {
	GenreOrArtist  string    `json:"genreOrArtist" validate:"required,notblank,max=200"`
	Topic          string    `json:"topic" validate:"required,notblank,max=1000"`
	Language       string    `json:"language" validate:"omitempty,max=50"`
	VocalType      VocalType `json:"vocalType" validate:"omitempty,oneof=Male Female Duet Choir Kids"`
	BPM            string    `json:"bpm" validate:"omitempty,bpm"`
	Duration       string    `json:"duration" validate:"omitempty,max=20"`
	MaxMode        bool      `json:"maxMode"`
	VocalDirecting bool      `json:"vocalDirecting"`
}

// Used when neither the request nor RequestDefaults set a value.
const (
	DefaultLanguage  = "English"
	DefaultVocalType = VocalFemale
	DefaultDuration  = "3:00min"
)

// RequestDefaults fills optional request fields the caller left empty.
type RequestDefaults struct {
	Language  string
	VocalType VocalType
	BPM       string
	Duration  string
}

// WithDefaults returns a copy with empty optional fields filled and string
// fields trimmed. "auto" in any casing becomes BPMAuto.
func (r GenerationRequest) WithDefaults(d RequestDefaults) GenerationRequest {
	r.GenreOrArtist = strings.TrimSpace(r.GenreOrArtist)
	r.Topic = strings.TrimSpace(r.Topic)
	r.Language = strings.TrimSpace(r.Language)
	r.BPM = strings.TrimSpace(r.BPM)
	r.Duration = strings.TrimSpace(r.Duration)

	r.Language = firstNonEmpty(r.Language, strings.TrimSpace(d.Language), DefaultLanguage)
	if r.VocalType == "" {
		r.VocalType = d.VocalType
	}
	if r.VocalType == "" {
		r.VocalType = DefaultVocalType
	}
	if r.BPM == "" || strings.EqualFold(r.BPM, BPMAuto) {
		r.BPM = d.BPM
		if r.BPM == "" || strings.EqualFold(r.BPM, BPMAuto) {
			r.BPM = BPMAuto
		}
	}
	r.Duration = firstNonEmpty(r.Duration, strings.TrimSpace(d.Duration), DefaultDuration)
	return r
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// HasBPM reports whether a concrete tempo was requested.
func (r *GenerationRequest) HasBPM() bool {
	return r.BPM != "" && r.BPM != BPMAuto
}

var bpmRe = regexp.MustCompile(`^(?i:auto|\d{1,3}(\.\d+)?)$`)

// RegisterValidations adds the custom rules used by request structs.
func RegisterValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("bpm", func(fl validator.FieldLevel) bool {
		return bpmRe.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// NewValidator returns a validator with the custom rules registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if err := RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}

// Stage names which step of a generation failed.
type Stage string

const (
	StageValidation Stage = "validation"
	StageConfig     Stage = "config"
	StageStyle      Stage = "style"
	StageLyrics     Stage = "lyrics"
)

// GenerationResult carries either the success fields or Error, never both.
type GenerationResult struct {
	Success            bool   `json:"success"`
	StylePrompt        string `json:"stylePrompt,omitempty"`
	Title              string `json:"title,omitempty"`
	Lyrics             string `json:"lyrics,omitempty"`
	BackendUsed        string `json:"backendUsed,omitempty"`
	ResearchUsed       bool   `json:"researchUsed"`
	ResearchStatus     string `json:"researchStatus,omitempty"`
	VocalDirectingUsed bool   `json:"vocalDirectingUsed"`

	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
	Stage     Stage  `json:"stage,omitempty"`
	// FailedBackend names the backend that was called when a call failed.
	FailedBackend string `json:"failedBackend,omitempty"`
}

// Failed reports whether the result is an error result.
func (r *GenerationResult) Failed() bool {
	return !r.Success
}
