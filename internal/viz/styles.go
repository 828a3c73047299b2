package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the color scheme for CLI output.
type Theme struct {
	Name    string
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Border  lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
}

var (
	ThemeCyberpunk = Theme{
		Name:    "cyberpunk",
		Primary: lipgloss.Color("#00ffff"),
		Accent:  lipgloss.Color("#ff00ff"),
		Text:    lipgloss.Color("#ffffff"),
		Muted:   lipgloss.Color("#666688"),
		Border:  lipgloss.Color("#444466"),
		Success: lipgloss.Color("#00ff88"),
		Warning: lipgloss.Color("#ffaa00"),
		Error:   lipgloss.Color("#ff4444"),
	}

	ThemeMinimal = Theme{
		Name:    "minimal",
		Primary: lipgloss.Color("#ffffff"),
		Accent:  lipgloss.Color("#0088ff"),
		Text:    lipgloss.Color("#ffffff"),
		Muted:   lipgloss.Color("#888888"),
		Border:  lipgloss.Color("#555555"),
		Success: lipgloss.Color("#00ff00"),
		Warning: lipgloss.Color("#ffaa00"),
		Error:   lipgloss.Color("#ff0000"),
	}

	themes = map[string]Theme{
		ThemeCyberpunk.Name: ThemeCyberpunk,
		ThemeMinimal.Name:   ThemeMinimal,
	}
)

// Styles used by the render helpers. Rebuilt by SetTheme.
var (
	Title       lipgloss.Style
	Header      lipgloss.Style
	Subtle      lipgloss.Style
	MetricLabel lipgloss.Style
	MetricValue lipgloss.Style
	Success     lipgloss.Style
	Warning     lipgloss.Style
	Error       lipgloss.Style
	Panel       lipgloss.Style

	current Theme
)

func init() {
	SetTheme(ThemeCyberpunk)
}

// Themes returns the theme names.
func Themes() []string {
	names := make([]string, 0, len(themes))
	for n := range themes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LookupTheme finds a theme by name.
func LookupTheme(name string) (Theme, bool) {
	t, ok := themes[name]
	return t, ok
}

// CurrentTheme returns the active theme.
func CurrentTheme() Theme { return current }

// SetTheme rebuilds the package styles from t.
func SetTheme(t Theme) {
	current = t
	Title = lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Text).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(t.Border)
	Subtle = lipgloss.NewStyle().Foreground(t.Muted)
	MetricLabel = lipgloss.NewStyle().Foreground(t.Muted)
	MetricValue = lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
	Success = lipgloss.NewStyle().Bold(true).Foreground(t.Success)
	Warning = lipgloss.NewStyle().Bold(true).Foreground(t.Warning)
	Error = lipgloss.NewStyle().Bold(true).Foreground(t.Error)
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)
}

// KV is one labelled value.
type KV struct {
	Key   string
	Value string
}

// KeyValues renders aligned "key  value" lines.
func KeyValues(kvs []KV) string {
	width := 0
	for _, kv := range kvs {
		if len(kv.Key) > width {
			width = len(kv.Key)
		}
	}
	var b strings.Builder
	for i, kv := range kvs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(MetricLabel.Render(fmt.Sprintf("%-*s", width, kv.Key)))
		b.WriteString("  ")
		b.WriteString(MetricValue.Render(kv.Value))
	}
	return b.String()
}

// Metrics renders a metric map sorted by name.
func Metrics(m map[string]float64) string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	kvs := make([]KV, len(names))
	for i, n := range names {
		kvs[i] = KV{Key: n, Value: fmt.Sprintf("%.6g", m[n])}
	}
	return KeyValues(kvs)
}

// Box renders content in a rounded panel under a title.
func Box(title, content string) string {
	return lipgloss.JoinVertical(lipgloss.Left, Title.Render(title), Panel.Render(content))
}

// Separator draws a muted horizontal rule.
func Separator(width int) string {
	if width < 8 {
		width = 8
	}
	mid := width / 2
	return Subtle.Render(strings.Repeat("─", mid-2) + " ◆ " + strings.Repeat("─", width-mid-1))
}

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline squeezes values into width characters.
func Sparkline(values []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}
	step := len(values) / width
	if step < 1 {
		step = 1
	}
	var b strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		norm := (values[i*step] - lo) / rng
		idx := int(norm * float64(len(sparkChars)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteRune(sparkChars[idx])
	}
	return MetricValue.Render(b.String())
}
