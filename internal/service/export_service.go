package service

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/makeasinger/songprompt/internal/client"
	"github.com/makeasinger/songprompt/internal/model"
)

// ExportService renders a generated prompt as a labeled plain-text file and
// optionally uploads it. With no store configured, exports are returned inline.
type ExportService struct {
	store client.ExportStore
	now   func() time.Time
}

func NewExportService(store client.ExportStore) *ExportService {
	return &ExportService{store: store, now: time.Now}
}

// StorageEnabled reports whether uploads are possible.
func (s *ExportService) StorageEnabled() bool {
	return s.store != nil
}

// Envelope renders the STYLE / TITLE / LYRICS text file.
func Envelope(req *model.ExportRequest) string {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Untitled"
	}

	var b strings.Builder
	b.WriteString("=== STYLE ===\n")
	b.WriteString(strings.TrimSpace(req.StylePrompt))
	b.WriteString("\n\n=== TITLE ===\n")
	b.WriteString(title)
	b.WriteString("\n\n=== LYRICS ===\n")
	b.WriteString(strings.TrimSpace(req.Lyrics))
	b.WriteString("\n")
	return b.String()
}

var fileNameUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// FileName derives a download name from the title.
func FileName(title string) string {
	slug := strings.Trim(fileNameUnsafe.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if slug == "" {
		slug = "untitled"
	}
	if len(slug) > 60 {
		slug = strings.TrimRight(slug[:60], "-")
	}
	return slug + ".txt"
}

// Export builds the envelope and uploads it when requested and possible.
func (s *ExportService) Export(ctx context.Context, req *model.ExportRequest) (*model.ExportResponse, error) {
	content := Envelope(req)
	resp := &model.ExportResponse{
		FileName:  FileName(req.Title),
		Size:      len(content),
		CreatedAt: s.now(),
	}

	if !req.Upload || s.store == nil {
		resp.Content = content
		return resp, nil
	}

	key := fmt.Sprintf("exports/%s/%s", uuid.New().String(), resp.FileName)
	url, err := s.store.Put(ctx, key, bytes.NewReader([]byte(content)), "text/plain; charset=utf-8")
	if err != nil {
		return nil, fmt.Errorf("export upload failed: %w", err)
	}
	resp.FileURL = url
	return resp, nil
}
