package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/makeasinger/songprompt/internal/client"
	"github.com/makeasinger/songprompt/internal/logger"
	"github.com/makeasinger/songprompt/internal/model"
	"github.com/makeasinger/songprompt/internal/parser"
	"github.com/makeasinger/songprompt/internal/research"
	"github.com/makeasinger/songprompt/internal/sanitize"
	"github.com/makeasinger/songprompt/internal/vocab"
)

// ProgressFunc receives coarse progress updates (0-100) during a generation.
type ProgressFunc func(progress int, step string)

// StageError ties a failure to the generation stage it happened in.
type StageError struct {
	Stage model.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// PromptService turns a GenerationRequest into a style prompt, title and
// annotated lyrics. It holds no per-request state and is safe for concurrent use.
type PromptService struct {
	backend    client.TextBackend
	researcher *research.Researcher
	validate   *validator.Validate
	defaults   model.RequestDefaults
	log        *logger.Logger
}

func NewPromptService(backend client.TextBackend, researcher *research.Researcher, defaults model.RequestDefaults, log *logger.Logger) *PromptService {
	if researcher == nil {
		researcher = research.NewResearcher(nil, 0, log)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &PromptService{
		backend:    backend,
		researcher: researcher,
		validate:   model.NewValidator(),
		defaults:   defaults,
		log:        log,
	}
}

// Backend returns the active text backend.
func (s *PromptService) Backend() client.TextBackend {
	return s.backend
}

// Researcher returns the research adapter.
func (s *PromptService) Researcher() *research.Researcher {
	return s.researcher
}

// IsArtistLike guesses whether input names an artist or song rather than a
// genre: more than one word and at least one uppercase letter. It misfires on
// single-word artists ("Rosalía") and capitalised genres ("Deep House").
func IsArtistLike(input string) bool {
	if len(strings.Fields(input)) < 2 {
		return false
	}
	for _, r := range input {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func (s *PromptService) Generate(ctx context.Context, req *model.GenerationRequest) *model.GenerationResult {
	return s.GenerateWithProgress(ctx, req, nil)
}

// GenerateWithProgress never returns a nil result: every failure is reported
// through the result's error fields.
func (s *PromptService) GenerateWithProgress(ctx context.Context, in *model.GenerationRequest, progress ProgressFunc) *model.GenerationResult {
	if progress == nil {
		progress = func(int, string) {}
	}
	if in == nil {
		return failure(model.StageValidation, "validation", "Validation failed: request is empty")
	}

	start := time.Now()
	req := in.WithDefaults(s.defaults)

	if err := s.validate.Struct(req); err != nil {
		return failure(model.StageValidation, "validation", "Validation failed: "+describeValidation(err))
	}
	if !s.backend.IsConfigured() {
		err := client.NotConfigured(s.backend.Name())
		res := failure(model.StageConfig, string(err.Kind), "Configuration error: "+err.Error())
		res.FailedBackend = s.backend.Name()
		return res
	}

	progress(10, "Analyzing genre")
	rc := research.Context{}
	researchStatus := "Genre input, research not needed"
	if IsArtistLike(req.GenreOrArtist) {
		progress(20, "Researching artist")
		rc = s.researcher.Research(ctx, req.GenreOrArtist)
		researchStatus = rc.Describe()
	}

	var (
		style  string
		lyrics *parser.Lyrics
	)
	if rc.Usable() {
		progress(40, "Generating style and lyrics")
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			style, err = s.researchStyle(gctx, &req, rc.Text)
			return err
		})
		g.Go(func() error {
			var err error
			lyrics, err = s.lyrics(gctx, &req)
			return err
		})
		if err := g.Wait(); err != nil {
			return s.stageFailure(err, researchStatus)
		}
	} else {
		style = capStyle(templateStyle(req.GenreOrArtist), templateStyleCap)
		progress(40, "Generating lyrics")
		var err error
		lyrics, err = s.lyrics(ctx, &req)
		if err != nil {
			return s.stageFailure(err, researchStatus)
		}
	}

	progress(80, "Assembling prompt")
	if req.HasBPM() {
		style += ", " + req.BPM + " BPM"
	}
	if req.MaxMode {
		style = vocab.MaxModeTags + "\n" + style
	}

	body := sanitize.Normalize(lyrics.Lyrics)
	if !req.VocalDirecting {
		body = sanitize.StripDirecting(body)
	}
	body = ensureHeader(body, &req)

	title := strings.Trim(strings.TrimSpace(lyrics.Title), `"'`)
	if title == "" {
		title = "Untitled"
	}

	result := &model.GenerationResult{
		Success:            true,
		StylePrompt:        sanitize.Normalize(style),
		Title:              title,
		Lyrics:             sanitize.Normalize(body),
		BackendUsed:        s.backend.Name(),
		ResearchUsed:       rc.Usable(),
		ResearchStatus:     researchStatus,
		VocalDirectingUsed: req.VocalDirecting,
	}

	s.log.Info("prompt generated",
		"backend", result.BackendUsed,
		"research", string(rc.Status),
		"vocal_directing", req.VocalDirecting,
		"max_mode", req.MaxMode,
		"elapsed", time.Since(start).String(),
	)
	progress(100, "Done")
	return result
}

func (s *PromptService) researchStyle(ctx context.Context, req *model.GenerationRequest, researchText string) (string, error) {
	out, err := s.backend.Complete(ctx, buildStylePrompt(req, researchText), styleResearchSystem, false)
	if err != nil {
		return "", &StageError{Stage: model.StageStyle, Err: err}
	}
	style := capStyle(flattenStyle(sanitize.Normalize(out.Text)), researchStyleCap)
	if style == "" {
		return "", &StageError{Stage: model.StageStyle, Err: &client.BackendError{
			Backend: s.backend.Name(),
			Kind:    client.KindMalformedResponse,
			Message: "style reply contained no tags",
		}}
	}
	return style, nil
}

func (s *PromptService) lyrics(ctx context.Context, req *model.GenerationRequest) (*parser.Lyrics, error) {
	out, err := s.backend.Complete(ctx, buildLyricsPrompt(req), lyricsSystem(req.VocalDirecting), true)
	if err != nil {
		return nil, &StageError{Stage: model.StageLyrics, Err: err}
	}
	if out.Parsed != nil {
		return out.Parsed, nil
	}
	rec, err := parser.Parse(out.Text)
	if err != nil {
		return nil, &StageError{Stage: model.StageLyrics, Err: &client.BackendError{
			Backend: s.backend.Name(),
			Kind:    client.KindParse,
			Message: "reply was not valid title/lyrics JSON",
			Err:     err,
		}}
	}
	return rec, nil
}

func (s *PromptService) stageFailure(err error, researchStatus string) *model.GenerationResult {
	stage := model.StageLyrics
	var se *StageError
	if errors.As(err, &se) {
		stage = se.Stage
	}

	kind := string(client.KindOf(err))
	if kind == "" {
		kind = string(client.KindTransport)
	}

	label := "Lyrics"
	if stage == model.StageStyle {
		label = "Style"
	}
	msg := fmt.Sprintf("%s generation failed: %v", label, unwrapStage(err))

	s.log.Warn("prompt generation failed",
		"stage", string(stage),
		"kind", kind,
		"backend", s.backend.Name(),
		"research", researchStatus,
		"error", err,
	)

	res := failure(stage, kind, msg)
	res.FailedBackend = s.backend.Name()
	return res
}

func unwrapStage(err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return se.Err
	}
	return err
}

func failure(stage model.Stage, kind, msg string) *model.GenerationResult {
	return &model.GenerationResult{
		Error:     msg,
		ErrorKind: kind,
		Stage:     stage,
	}
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "notblank":
			msgs = append(msgs, fe.Field()+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		case "bpm":
			msgs = append(msgs, fe.Field()+" must be a number or AUTO")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

var (
	styleTagRe        = regexp.MustCompile(`(?i)^\[\s*style\s*:`)
	durationTagRe     = regexp.MustCompile(`(?i)\[\s*duration\s*:`)
	leadingDurationRe = regexp.MustCompile(`(?i)^\[\s*duration\s*:[^\]\n]*\]`)
	bpmTagRe          = regexp.MustCompile(`(?i)\[\s*bpm\s*:`)
)

// ensureHeader guarantees the leading [Style], [Duration] and, for a concrete
// tempo, [BPM] metadata lines.
func ensureHeader(lyrics string, req *model.GenerationRequest) string {
	lyrics = strings.TrimSpace(lyrics)
	duration := "[Duration: " + req.Duration + "]"
	bpm := "[BPM: " + req.BPM + "]"

	if !styleTagRe.MatchString(lyrics) {
		header := []string{
			fmt.Sprintf("[Style: %s, %s]", req.VocalType.Label(), req.GenreOrArtist),
			duration,
		}
		if req.HasBPM() {
			header = append(header, bpm)
		}
		return strings.Join(header, "\n") + "\n\n" + lyrics
	}

	end := strings.Index(lyrics, "]")
	if end < 0 {
		return lyrics
	}
	styleLine, rest := lyrics[:end+1], strings.TrimLeft(lyrics[end+1:], " \t\n")

	header := []string{styleLine}
	if loc := leadingDurationRe.FindStringIndex(rest); loc != nil {
		header = append(header, rest[:loc[1]])
		rest = strings.TrimLeft(rest[loc[1]:], " \t\n")
	} else if !durationTagRe.MatchString(rest) {
		header = append(header, duration)
	}
	if req.HasBPM() && !bpmTagRe.MatchString(rest) {
		header = append(header, bpm)
	}
	if rest == "" {
		return strings.Join(header, "\n")
	}
	return strings.Join(header, "\n") + "\n" + rest
}
