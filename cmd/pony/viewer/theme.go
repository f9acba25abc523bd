// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package viewer

import "github.com/charmbracelet/lipgloss"

// Theme holds the viewer's colors.
type Theme struct {
	Accent    lipgloss.Color
	Muted     lipgloss.Color
	Selected  lipgloss.Color
	Error     lipgloss.Color
	Border    lipgloss.Color
	Highlight lipgloss.Color
}

// DefaultTheme suits a dark terminal. The purple border follows the web
// client's palette.
var DefaultTheme = Theme{
	Accent:    lipgloss.Color("#4ade80"),
	Muted:     lipgloss.Color("#6b7280"),
	Selected:  lipgloss.Color("#1e293b"),
	Error:     lipgloss.Color("#f87171"),
	Border:    lipgloss.Color("#c084fc"),
	Highlight: lipgloss.Color("#facc15"),
}
