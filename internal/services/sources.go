package services

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	ytapi "github.com/hightemp/youtube-transcript-api-go/api"
	yt "github.com/kkdai/youtube/v2"
	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/models"
)

// MaxUploadBytes caps source file uploads.
const MaxUploadBytes = 10 << 20

var youtubeRegex = regexp.MustCompile(`(?:youtube\.com/(?:watch\?v=|embed/|shorts/)|youtu\.be/)([\w-]{11})`)

// TranscriptFetcher returns the caption text of a video.
type TranscriptFetcher interface {
	Transcript(ctx context.Context, videoID string) (string, error)
}

// VideoDescriber returns a video's title and description.
type VideoDescriber interface {
	Describe(ctx context.Context, videoID string) (title, description string, err error)
}

// SourceService turns uploads and videos into source text for generation.
// Output is cut to the generation input limit.
type SourceService struct {
	transcripts TranscriptFetcher
	videos      VideoDescriber
	log         logrus.FieldLogger
}

func NewSourceService(transcripts TranscriptFetcher, videos VideoDescriber, log logrus.FieldLogger) *SourceService {
	return &SourceService{transcripts: transcripts, videos: videos, log: log}
}

func (s *SourceService) ExtractFile(filename string, data []byte) (*models.SourceText, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var (
		text string
		err  error
	)
	switch ext {
	case ".txt":
		if !utf8.Valid(data) {
			return nil, &ValidationError{Fields: map[string]string{"file": "Text file must be UTF-8 encoded"}}
		}
		text = string(data)
	case ".pdf":
		text, err = extractPDF(data)
	case ".docx":
		text, err = extractDOCX(data)
	default:
		return nil, &ValidationError{Fields: map[string]string{"file": "Unsupported file type. Use .txt, .pdf or .docx"}}
	}
	if err != nil {
		s.log.WithError(err).WithField("filename", filename).Warn("source extraction failed")
		return nil, &ValidationError{Fields: map[string]string{"file": "Could not read text from this file"}}
	}

	text = normalizeExtractedText(text)
	if text == "" {
		return nil, &ValidationError{Fields: map[string]string{"file": "No extractable text found in file"}}
	}
	return newSourceText(text, ""), nil
}

// FromYouTube uses the video transcript, or the title and description when
// the video has no captions.
func (s *SourceService) FromYouTube(ctx context.Context, url string) (*models.SourceText, error) {
	matches := youtubeRegex.FindStringSubmatch(url)
	if len(matches) < 2 {
		return nil, &ValidationError{Fields: map[string]string{"url": "Invalid YouTube URL"}}
	}
	videoID := matches[1]
	log := s.log.WithField("video_id", videoID)

	title, description, metaErr := s.videos.Describe(ctx, videoID)
	if metaErr != nil {
		log.WithError(metaErr).Debug("video metadata unavailable")
	}

	transcript, err := s.transcripts.Transcript(ctx, videoID)
	if err == nil {
		if text := normalizeExtractedText(transcript); text != "" {
			return newSourceText(text, title), nil
		}
	}
	log.WithError(err).Info("no transcript, falling back to video description")

	text := normalizeExtractedText(strings.TrimSpace(title + "\n\n" + description))
	if utf8.RuneCountInString(text) < SourceTextMinLength {
		return nil, &ValidationError{Fields: map[string]string{"url": "No transcript or description available for this video"}}
	}
	return newSourceText(text, title), nil
}

func newSourceText(text, title string) *models.SourceText {
	out, truncated := truncateRunes(text, SourceTextMaxLength)
	return &models.SourceText{
		SourceText: out,
		Characters: utf8.RuneCountInString(out),
		Truncated:  truncated,
		Title:      title,
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	totalPage := reader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	for _, f := range r.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		documentXML, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		return stripDOCXML(documentXML), nil
	}
	return "", fmt.Errorf("docx document.xml not found")
}

var xmlTagPattern = regexp.MustCompile(`<[^>]+>`)

func stripDOCXML(src []byte) string {
	s := string(src)

	// paragraphs and line breaks
	s = strings.ReplaceAll(s, "</w:p>", "\n")
	s = strings.ReplaceAll(s, "<w:br/>", "\n")
	s = strings.ReplaceAll(s, "<w:br />", "\n")
	s = strings.ReplaceAll(s, "<w:tab/>", "\t")

	s = xmlTagPattern.ReplaceAllString(s, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
	)
	return replacer.Replace(s)
}

// normalizeExtractedText trims lines and collapses runs of blank lines.
func normalizeExtractedText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var buf bytes.Buffer
	emptyCount := 0
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			emptyCount++
			if emptyCount > 1 {
				continue
			}
			buf.WriteString("\n")
			continue
		}
		emptyCount = 0
		buf.WriteString(trimmed)
		buf.WriteString("\n")
	}

	return strings.TrimSpace(buf.String())
}

// YouTubeClient implements TranscriptFetcher and VideoDescriber.
type YouTubeClient struct {
	transcriptAPI *ytapi.YouTubeTranscriptApi
	ytClient      *yt.Client
}

func NewYouTubeClient() *YouTubeClient {
	return &YouTubeClient{
		transcriptAPI: ytapi.NewYouTubeTranscriptApi(),
		ytClient:      &yt.Client{},
	}
}

func (c *YouTubeClient) Transcript(ctx context.Context, videoID string) (string, error) {
	transcript, err := c.transcriptAPI.GetTranscript(videoID, []string{"en", "en-US", "en-GB"})
	if err != nil {
		// any available language
		transcript, err = c.transcriptAPI.GetTranscript(videoID, nil)
		if err != nil {
			return "", fmt.Errorf("no subtitles available: %w", err)
		}
	}

	var fullText strings.Builder
	for _, entry := range transcript.Entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		fullText.WriteString(text)
		fullText.WriteString(" ")
	}

	cleaned := strings.TrimSpace(fullText.String())
	if cleaned == "" {
		return "", fmt.Errorf("subtitle track is empty")
	}
	return cleaned, nil
}

func (c *YouTubeClient) Describe(ctx context.Context, videoID string) (string, string, error) {
	video, err := c.ytClient.GetVideoContext(ctx, videoID)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch YouTube video metadata: %w", err)
	}
	return video.Title, video.Description, nil
}
