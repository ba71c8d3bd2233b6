package present

import "github.com/charmbracelet/lipgloss"

// Styles are the shared lipgloss styles used across CLI output.
type Styles struct {
	AppName          lipgloss.Style
	CliArgs          lipgloss.Style
	Comment          lipgloss.Style
	ConversationList lipgloss.Style
	ErrPadding       lipgloss.Style
	ErrorDetails     lipgloss.Style
	ErrorHeader      lipgloss.Style
	Flag             lipgloss.Style
	FlagComma        lipgloss.Style
	FlagDesc         lipgloss.Style
	InlineCode       lipgloss.Style
	Link             lipgloss.Style
	SHA              lipgloss.Style
	Timeago          lipgloss.Style
}

// MakeStyles builds the shared styles for the given renderer.
func MakeStyles(r *lipgloss.Renderer) Styles {
	const horizontalEdgePadding = 2
	return Styles{
		AppName:          r.NewStyle().Bold(true),
		CliArgs:          r.NewStyle().Foreground(lipgloss.Color("#585858")),
		Comment:          r.NewStyle().Foreground(lipgloss.Color("#757575")),
		ConversationList: r.NewStyle().Padding(0, 1),
		ErrPadding:       r.NewStyle().Padding(0, horizontalEdgePadding),
		ErrorDetails:     r.NewStyle().Foreground(lipgloss.Color("#757575")),
		ErrorHeader: r.NewStyle().
			Foreground(lipgloss.Color("#F1F1F1")).
			Background(lipgloss.Color("#FF5F87")).
			Bold(true).
			Padding(0, 1).
			SetString("ERROR"),
		Flag: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#00B594", Dark: "#3EEFCF"}).
			Bold(true),
		FlagComma: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#5DD6C0", Dark: "#427C72"}).
			SetString(","),
		FlagDesc: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#656565", Dark: "#999999"}),
		InlineCode: r.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Background(lipgloss.Color("#3A3A3A")).
			Padding(0, 1),
		Link: r.NewStyle().Foreground(lipgloss.Color("#00AF87")).Underline(true),
		SHA:  r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF87D7", Dark: "#FF8EC7"}),
		Timeago: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#999999", Dark: "#555555"}),
	}
}
