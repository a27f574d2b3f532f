package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pianotech/tournee/internal/cli/formatter"
)

// tourneeHuhTheme returns a huh theme matching the Gruvbox formatter palette.
func tourneeHuhTheme() *huh.Theme {
	t := huh.ThemeBase()

	// Focused state: orange accent
	t.Focused.Title = lipgloss.NewStyle().Foreground(formatter.ColorHeader).Bold(true)
	t.Focused.SelectSelector = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(formatter.ColorGreen)
	t.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(formatter.ColorFg)
	t.Focused.FocusedButton = lipgloss.NewStyle().Foreground(formatter.ColorFg).Background(formatter.ColorHeader).Padding(0, 1)
	t.Focused.BlurredButton = lipgloss.NewStyle().Foreground(formatter.ColorDim).Padding(0, 1)
	t.Focused.TextInput.Prompt = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.TextInput.Text = lipgloss.NewStyle().Foreground(formatter.ColorFg)
	t.Focused.TextInput.Placeholder = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Focused.Description = lipgloss.NewStyle().Foreground(formatter.ColorDim)

	t.Blurred.Title = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.TextInput.Prompt = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.TextInput.Text = lipgloss.NewStyle().Foreground(formatter.ColorDim)

	return t
}

// campaignInput holds the raw strings collected by flags or the form.
type campaignInput struct {
	name        string
	institution string
	start       string
	end         string
	technician  string
	assistants  []string
	notes       string
	activate    bool
}

// campaignForm asks for the fields not already given on the command line.
func campaignForm(in *campaignInput) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Name").Value(&in.name).Validate(required("name")),
			huh.NewInput().Title("Institution").Value(&in.institution).Validate(required("institution")),
			huh.NewInput().Title("Start (YYYY-MM-DD)").Placeholder(time.Now().Format("2006-01-02")).
				Value(&in.start).Validate(validateDate),
			huh.NewInput().Title("End (YYYY-MM-DD)").Value(&in.end).Validate(validateDate),
		),
		huh.NewGroup(
			huh.NewInput().Title("Responsible technician").Value(&in.technician),
			huh.NewText().Title("Notes").Value(&in.notes),
			huh.NewConfirm().Title("Make it the active campaign?").
				Affirmative("Yes").Negative("No").Value(&in.activate),
		),
	).WithTheme(tourneeHuhTheme()).WithShowHelp(false)
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateDate(s string) error {
	if _, err := parseDate(s); err != nil {
		return fmt.Errorf("use YYYY-MM-DD format")
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(s))
}

func confirmForm(title string, result *bool) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(result),
		),
	).WithTheme(tourneeHuhTheme()).WithShowHelp(false)
}
