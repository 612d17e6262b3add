package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vvka-141/mssqlretry/internal/retry"
)

// Color palette - keeping it minimal and accessible.
var (
	ColorPrimary   = lipgloss.Color("39")  // Blue
	ColorSecondary = lipgloss.Color("245") // Gray
	ColorSuccess   = lipgloss.Color("34")  // Green
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorError     = lipgloss.Color("196") // Red
	ColorMuted     = lipgloss.Color("240") // Dark gray
)

// Symbols for visual feedback.
const (
	SymbolCheck      = "✓"
	SymbolCross      = "✗"
	SymbolArrowRight = "→"
	SymbolBullet     = "•"
)

// styles is the style set bound to one lipgloss renderer.
type styles struct {
	title   lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
	border  lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
	primary lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(ColorPrimary),
		header:  r.NewStyle().Bold(true).Foreground(ColorPrimary).Padding(0, 1),
		cell:    r.NewStyle().Padding(0, 1),
		border:  r.NewStyle().Foreground(ColorSecondary),
		success: r.NewStyle().Foreground(ColorSuccess),
		warning: r.NewStyle().Foreground(ColorWarning),
		failure: r.NewStyle().Foreground(ColorError),
		muted:   r.NewStyle().Foreground(ColorMuted),
		primary: r.NewStyle().Foreground(ColorPrimary),
	}
}

// categoryStyle colours a category by how a caller should react to it.
func (s styles) categoryStyle(c retry.ErrorCategory) lipgloss.Style {
	switch c {
	case retry.CategoryNonRetryableDataTransfer:
		return s.failure
	case retry.CategoryCloudTransient:
		return s.warning
	case retry.CategoryNetworkConnectivity:
		return s.primary
	default:
		return s.muted
	}
}
