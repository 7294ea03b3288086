package command

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"flow-stream/backend/internal/model"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatThread(t *model.Thread, now time.Time) string {
	status := ""
	if t.Status != "" && t.Status != model.ThreadIdle {
		status = fmt.Sprintf(" [%s]", t.Status)
	}
	return fmt.Sprintf("%s  %s%s  (%s)", t.ID, t.Title, status, humanize.RelTime(t.UpdatedAt, now, "ago", "from now"))
}

func formatMessage(m model.Message, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", roleLabel(m.Role), m.ID)
	if m.Model != "" {
		fmt.Fprintf(&sb, " (%s)", m.Model)
	}
	if !m.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, " %s", humanize.RelTime(m.CreatedAt, now, "ago", "from now"))
	}
	if m.Status != model.StatusCompleted {
		fmt.Fprintf(&sb, " [%s]", m.Status)
	}
	sb.WriteString("\n")
	if m.Content != "" {
		sb.WriteString(indent(m.Content))
		sb.WriteString("\n")
	}
	if line := formatMetadata(m.Metadata); line != "" {
		sb.WriteString("  -- ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatMetadata renders usage, duration and stop details on one line.
func formatMetadata(md *model.Metadata) string {
	if md == nil {
		return ""
	}
	var parts []string
	if md.Usage != nil && md.Usage.TotalTokens > 0 {
		parts = append(parts, fmt.Sprintf("%s tokens (%s prompt, %s completion)",
			humanize.Comma(int64(md.Usage.TotalTokens)),
			humanize.Comma(int64(md.Usage.PromptTokens)),
			humanize.Comma(int64(md.Usage.CompletionTokens))))
	}
	if md.DurationMs > 0 {
		parts = append(parts, formatDuration(time.Duration(md.DurationMs)*time.Millisecond))
	}
	if md.StopReason != "" {
		parts = append(parts, md.StopReason)
	}
	if md.Error != "" {
		parts = append(parts, "error: "+md.Error)
	}
	return strings.Join(parts, ", ")
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return humanize.FtoaWithDigits(d.Seconds(), 1) + "s"
}

func roleLabel(r model.Role) string {
	switch r {
	case model.RoleUser:
		return "you"
	case model.RoleAssistant:
		return "assistant"
	default:
		return string(r)
	}
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
