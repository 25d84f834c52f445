// Package export writes the current conversation as a Markdown transcript.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"campusiq-chat/internal/session"
)

type Exporter struct {
	overrideDir string
	cwd         string
}

func New(overrideDir string) (*Exporter, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve cwd: %w", err)
	}
	return &Exporter{overrideDir: strings.TrimSpace(overrideDir), cwd: cwd}, nil
}

// Export writes the transcript to a timestamped file and returns its path.
func (e *Exporter) Export(messages []session.Message, now time.Time) (string, error) {
	path := e.outputPath(now)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	md := BuildConversationMarkdown(messages, now)
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

func (e *Exporter) outputPath(now time.Time) string {
	dir := e.overrideDir
	if dir == "" {
		dir = filepath.Join(e.cwd, "transcripts")
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.cwd, dir)
	}
	name := "conversation-" + now.Format("20060102-150405") + ".md"
	return filepath.Join(dir, name)
}

func BuildConversationMarkdown(messages []session.Message, now time.Time) string {
	var b strings.Builder
	b.WriteString("# CampusIQ conversation\n\n")
	b.WriteString("Exported: " + now.Format(time.RFC3339) + "\n\n")

	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		stamp := m.CreatedAt.Format("15:04")

		switch m.Role {
		case session.RoleUser:
			b.WriteString("## You (" + stamp + ")\n\n")
			b.WriteString(content + "\n\n")
		case session.RoleBot:
			header := "## CampusIQ (" + stamp + ")"
			if m.Err {
				header += " — failed"
			}
			b.WriteString(header + "\n\n")
			b.WriteString(content + "\n\n")
			if m.HasSources() {
				b.WriteString(sourcesMarkdown(m.Sources))
			}
		}
	}
	return strings.TrimSpace(b.String()) + "\n"
}

func sourcesMarkdown(sources []session.Source) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Sources (%d):\n\n", len(sources)))
	for i, s := range sources {
		b.WriteString(fmt.Sprintf("%d. **%s** — %s: %.3f\n", i+1, s.Title, s.ScoreType.Label(), s.Score))
		if s.URL != "" {
			b.WriteString("   <" + s.URL + ">\n")
		}
		preview := strings.TrimSpace(s.ContentPreview)
		if preview != "" {
			b.WriteString("   " + strings.Join(strings.Fields(preview), " ") + "\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}
