package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pianotech/tournee/internal/domain"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg     = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)

	// StyleSelected highlights selected rows without changing their color.
	StyleSelected = lipgloss.NewStyle().Reverse(true)
)

// CategoryStyle maps a display category to its color: completed green,
// top red, proposed yellow, normal plain.
func CategoryStyle(c domain.Category) lipgloss.Style {
	switch c {
	case domain.CategoryCompleted:
		return StyleGreen
	case domain.CategoryTop:
		return StyleRed
	case domain.CategoryProposed:
		return StyleYellow
	default:
		return StyleFg
	}
}

// CategoryIndicator returns a colored marker such as "● TOP".
func CategoryIndicator(c domain.Category) string {
	return CategoryStyle(c).Render("● " + strings.ToUpper(string(c)))
}

func CampaignStatusStyle(s domain.CampaignStatus) lipgloss.Style {
	switch s {
	case domain.CampaignActive:
		return StyleGreen
	case domain.CampaignPlanned:
		return StyleBlue
	case domain.CampaignCompleted:
		return StylePurple
	default:
		return StyleDim
	}
}

// Header renders a section header with the orange header style and an underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", lipgloss.Width(upper))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

func Dim(text string) string {
	return StyleDim.Render(text)
}

func Bold(text string) string {
	return StyleBold.Render(text)
}
