// Package theme holds the terminal styles of the flowedu CLI reports.
package theme

import (
	"charm.land/lipgloss/v2"
)

// Color palette.
var (
	Primary   = lipgloss.Color("#2563EB") // Blue
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Warning   = lipgloss.Color("#F59E0B") // Amber
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Slate

	Bronze = lipgloss.Color("#B45309")
	Silver = lipgloss.Color("#CBD5E1")
	Gold   = lipgloss.Color("#EAB308")
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Text)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Rule = lipgloss.NewStyle().
		Foreground(Border)
)

// States
var (
	Correct = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Incorrect = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	Flagged = lipgloss.NewStyle().
		Foreground(Warning)

	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)
)

// Bucket styles a review priority bucket name.
func Bucket(name string) lipgloss.Style {
	switch name {
	case "high":
		return Incorrect
	case "medium":
		return Flagged
	default:
		return Hint
	}
}

// Tier styles a wallet tier name.
func Tier(name string) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true)
	switch name {
	case "gold":
		return s.Foreground(Gold)
	case "silver":
		return s.Foreground(Silver)
	default:
		return s.Foreground(Bronze)
	}
}

// Confidence styles a judge confidence against the review threshold.
func Confidence(confidence, threshold int) lipgloss.Style {
	if confidence < threshold {
		return Flagged
	}
	return Correct
}
