package config

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// Color is a color name or #rrggbb hex value
type Color string

// DefaultColor leaves the terminal's own color in place
const DefaultColor Color = "default"

// String returns color as a hex string, "-" for the terminal default
func (c Color) String() string {
	if c.isHex() {
		return string(c)
	}
	if c == DefaultColor || c == "" {
		return "-"
	}
	col := c.Color().Hex()
	if col < 0 {
		return "-"
	}
	return fmt.Sprintf("#%06x", col)
}

func (c Color) isHex() bool {
	return len(c) == 7 && c[0] == '#'
}

// Color returns the tcell color
func (c Color) Color() tcell.Color {
	if c == DefaultColor || c == "" {
		return tcell.ColorDefault
	}
	return tcell.GetColor(string(c)).TrueColor()
}

// ColorsConfig holds the row and chrome colors of the list view
type ColorsConfig struct {
	Foreground Color `mapstructure:"foreground" yaml:"foreground"`
	Background Color `mapstructure:"background" yaml:"background"`
	Unread     Color `mapstructure:"unread" yaml:"unread"`
	Deleted    Color `mapstructure:"deleted" yaml:"deleted"`
	Selected   Color `mapstructure:"selected" yaml:"selected"`
	Group      Color `mapstructure:"group" yaml:"group"`
	Due        Color `mapstructure:"due" yaml:"due"`
	Overdue    Color `mapstructure:"overdue" yaml:"overdue"`
	Tags       Color `mapstructure:"tags" yaml:"tags"`
	Status     Color `mapstructure:"status" yaml:"status"`
}

// DefaultColors returns the default color configuration
func DefaultColors() ColorsConfig {
	return ColorsConfig{
		Foreground: "#f8f8f2",
		Background: DefaultColor,
		Unread:     "#ffb86c",
		Deleted:    "#6272a4",
		Selected:   "#50fa7b",
		Group:      "#bd93f9",
		Due:        "#8be9fd",
		Overdue:    "#ff5555",
		Tags:       "#f1fa8c",
		Status:     "#44475a",
	}
}
