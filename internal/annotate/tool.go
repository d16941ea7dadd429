package annotate

import "fmt"

// Tool is the active canvas tool.
type Tool int

const (
	ToolSelect Tool = iota
	ToolRect
	ToolPolygon
	ToolPoint
	ToolMove
)

var toolNames = map[Tool]string{
	ToolSelect:  "select",
	ToolRect:    "rect",
	ToolPolygon: "polygon",
	ToolPoint:   "point",
	ToolMove:    "move",
}

func (t Tool) String() string {
	if s, ok := toolNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Tool(%d)", int(t))
}

// Draws reports whether the tool creates shapes and therefore needs an image.
func (t Tool) Draws() bool {
	return t == ToolRect || t == ToolPolygon || t == ToolPoint
}

// ParseTool parses a tool name.
func ParseTool(s string) (Tool, error) {
	for t, name := range toolNames {
		if name == s {
			return t, nil
		}
	}
	return ToolSelect, fmt.Errorf("unknown tool %q", s)
}

// Button identifies the pointer button of a press.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonSecondary
	ButtonMiddle
)
