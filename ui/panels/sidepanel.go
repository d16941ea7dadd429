// Package panels provides UI panels for the application.
package panels

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"

	"image-annotator/internal/annotate"
	"image-annotator/internal/app"
	"image-annotator/internal/label"
	"image-annotator/pkg/colorutil"
)

// SidePanel provides the annotation side panel with tabbed sections.
type SidePanel struct {
	state     *app.State
	container *container.AppTabs

	labelsTab      *container.TabItem
	suggestionsTab *container.TabItem

	labelPanel      *LabelPanel
	suggestionPanel *SuggestionPanel
	promptPanel     *PromptPanel
}

// NewSidePanel creates a new side panel.
func NewSidePanel(state *app.State, ctrl *annotate.Controller, colors *colorutil.Assigner) *SidePanel {
	sp := &SidePanel{state: state}

	sp.labelPanel = NewLabelPanel(state, ctrl, colors)
	sp.suggestionPanel = NewSuggestionPanel(state, ctrl, colors)
	sp.promptPanel = NewPromptPanel(state, ctrl)

	sp.labelsTab = container.NewTabItem("Labels", sp.labelPanel.Container())
	sp.suggestionsTab = container.NewTabItem("AI Suggestions", sp.suggestionPanel.Container())
	sp.container = container.NewAppTabs(
		sp.labelsTab,
		sp.suggestionsTab,
		container.NewTabItem("Detect", sp.promptPanel.Container()),
	)

	state.On(app.EventLabelsChanged, func(data any) {
		labels, _ := data.([]label.Label)
		sp.updateTitles(labels)
	})
	state.On(app.EventDetectionFinished, func(any) {
		sp.container.Select(sp.suggestionsTab)
	})
	return sp
}

// Container returns the panel container.
func (sp *SidePanel) Container() fyne.CanvasObject {
	return sp.container
}

// SetWindow sets the parent window for dialogs.
func (sp *SidePanel) SetWindow(w fyne.Window) {
	sp.labelPanel.SetWindow(w)
	sp.promptPanel.SetWindow(w)
}

// SyncSelection mirrors the canvas selection into the label list.
func (sp *SidePanel) SyncSelection(id string) {
	sp.labelPanel.SyncSelection(id)
}

func (sp *SidePanel) updateTitles(labels []label.Label) {
	pending := 0
	for _, l := range labels {
		if l.IsPendingSuggestion() {
			pending++
		}
	}
	sp.labelsTab.Text = fmt.Sprintf("Labels (%d)", len(labels)-pending)
	if pending > 0 {
		sp.suggestionsTab.Text = fmt.Sprintf("AI Suggestions (%d)", pending)
	} else {
		sp.suggestionsTab.Text = "AI Suggestions"
	}
	sp.container.Refresh()
}
