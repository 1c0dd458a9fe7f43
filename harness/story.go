package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	u "github.com/paycrest/e2e/utils"
)

// Chapter is one entry of a test's narrative
type Chapter struct {
	Name    string      `json:"name"`
	Content interface{} `json:"content"`
	At      time.Time   `json:"at"`
}

// Story is the ordered narrative of one test: what was sent, what the mocks saw
// and answered, what the healthcheck found
type Story struct {
	Name string
	ID   string

	mu       sync.Mutex
	chapters []Chapter
}

// NewStory returns an empty story
func NewStory(name, id string) *Story {
	return &Story{Name: name, ID: id}
}

// Add appends a chapter
func (s *Story) Add(name string, content interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chapters = append(s.chapters, Chapter{Name: name, Content: content, At: time.Now()})
}

// Chapters returns a copy of the chapters in the order they were added
func (s *Story) Chapters() []Chapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Chapter(nil), s.chapters...)
}

// Logger is the part of testing.TB a story is flushed to
type Logger interface {
	Helper()
	Logf(format string, args ...interface{})
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Flush logs every chapter on t and, when dir is set, writes the story as JSON
// into dir. It returns the written path.
func (s *Story) Flush(t Logger, dir string) (string, error) {
	t.Helper()

	chapters := s.Chapters()
	for i, chapter := range chapters {
		t.Logf("[%d] %s %s\n%s", i+1, chapter.At.Format("15:04:05.000"), chapter.Name, render(chapter.Content))
	}

	if dir == "" {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("Flush: %w", err)
	}

	raw, err := json.MarshalIndent(struct {
		Name     string    `json:"name"`
		ID       string    `json:"id"`
		Chapters []Chapter `json:"chapters"`
	}{s.Name, s.ID, renderable(chapters)}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("Flush: %w", err)
	}

	path := filepath.Join(dir, unsafeFileChars.ReplaceAllString(s.Name, "_")+"-"+s.ID+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("Flush: %w", err)
	}
	return path, nil
}

func render(content interface{}) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return u.PrettyJSON(v)
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	}

	raw, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", content)
	}
	return string(raw)
}

// renderable replaces contents JSON cannot carry as is
func renderable(chapters []Chapter) []Chapter {
	out := make([]Chapter, len(chapters))
	for i, chapter := range chapters {
		out[i] = chapter
		switch v := chapter.Content.(type) {
		case []byte, error, fmt.Stringer:
			out[i].Content = render(v)
		default:
			if _, err := json.Marshal(v); err != nil {
				out[i].Content = render(v)
			}
		}
	}
	return out
}
