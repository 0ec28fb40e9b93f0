// Package ui holds the terminal styles shared by the CLI commands.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// RenderAccent styles informational highlights.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderPass styles success markers.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn styles warnings.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail styles failures.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderDim styles secondary detail.
func RenderDim(s string) string { return dimStyle.Render(s) }
