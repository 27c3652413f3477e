package main

import "github.com/charmbracelet/lipgloss"

// theme holds the output styles. Colors are dropped for NO_COLOR / --no-color.
type theme struct {
	prompt  lipgloss.Style
	agent   lipgloss.Style
	success lipgloss.Style
	warn    lipgloss.Style
	err     lipgloss.Style
	dim     lipgloss.Style
	title   lipgloss.Style
}

func newTheme(color bool) theme {
	if !color {
		plain := lipgloss.NewStyle()
		return theme{plain, plain, plain, plain, plain, plain, plain}
	}
	return theme{
		prompt:  lipgloss.NewStyle().Foreground(lipgloss.Color("#06b6d4")).Bold(true),
		agent:   lipgloss.NewStyle().Foreground(lipgloss.Color("#e0e0e8")),
		success: lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e")),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308")),
		err:     lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("#5a5a70")),
		title:   lipgloss.NewStyle().Foreground(lipgloss.Color("#f97316")).Bold(true),
	}
}
