// Package tui is a terminal front end for the document review flow:
// pick a document type, point at a file, review the extracted fields and
// read the validation bundle.
package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joseph-ayodele/tradedocs/constants"
	"github.com/joseph-ayodele/tradedocs/internal/async"
	"github.com/joseph-ayodele/tradedocs/internal/extract"
	"github.com/joseph-ayodele/tradedocs/internal/feedback"
	"github.com/joseph-ayodele/tradedocs/internal/pipeline"
	"github.com/joseph-ayodele/tradedocs/internal/session"
)

// Pipeline is the part of pipeline.Processor the UI drives.
type Pipeline interface {
	Extract(ctx context.Context, req extract.Request) (extract.Document, error)
	RunExtracted(ctx context.Context, doc extract.Document) pipeline.Result
}

type docTypeItem struct {
	docType constants.DocType
}

func (i docTypeItem) Title() string       { return i.docType.Label() }
func (i docTypeItem) Description() string { return string(i.docType) }
func (i docTypeItem) FilterValue() string { return i.docType.Label() }

type extractedMsg struct {
	doc extract.Document
	err error
}

type processedMsg struct {
	res pipeline.Result
	err error
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle = lipgloss.NewStyle().Bold(true)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// App is the bubbletea model. The current page lives in flow.
type App struct {
	pipeline Pipeline
	feedback feedback.Store
	timeout  time.Duration

	flow      session.Flow
	docTypes  list.Model
	pathInput textinput.Model
	busy      bool
	status    string
	err       error

	width  int
	height int
}

type Option func(*App)

// WithFeedbackStore saves every validation bundle the UI produces.
func WithFeedbackStore(s feedback.Store) Option {
	return func(a *App) { a.feedback = s }
}

func WithTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func NewApp(p Pipeline, opts ...Option) *App {
	items := make([]list.Item, 0, len(constants.DocTypes()))
	for _, dt := range constants.DocTypes() {
		items = append(items, docTypeItem{docType: dt})
	}
	menu := list.New(items, list.NewDefaultDelegate(), 0, 0)
	menu.Title = "Select document type"
	menu.SetShowStatusBar(false)
	menu.SetFilteringEnabled(false)

	in := textinput.New()
	in.Placeholder = "path/to/document.pdf"
	in.CharLimit = 512

	a := &App{
		pipeline:  p,
		timeout:   10 * time.Minute,
		flow:      session.Flow{Page: session.Home},
		docTypes:  menu,
		pathInput: in,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Page reports the page currently shown.
func (a *App) Page() session.Page { return a.flow.Page }

func (a *App) Init() tea.Cmd { return nil }

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.docTypes.SetSize(max(0, msg.Width-4), max(0, msg.Height-6))
		a.pathInput.Width = max(20, msg.Width-10)
		return a, nil

	case extractedMsg:
		a.busy = false
		if msg.err != nil {
			a.err = msg.err
			return a, nil
		}
		doc := msg.doc
		a.flow.Extraction = &doc
		a.transition(session.Review)
		a.status = fmt.Sprintf("Extracted %d fields", len(doc.Fields))
		return a, nil

	case processedMsg:
		a.busy = false
		if msg.err != nil {
			a.err = msg.err
		}
		res := msg.res
		a.flow.Result = &res
		a.transition(session.Feedback)
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "q":
			if a.flow.Page != session.Upload {
				return a, tea.Quit
			}
		case "esc":
			if a.flow.Page != session.Home && !a.busy {
				a.transition(session.Home)
				a.pathInput.Blur()
				a.pathInput.SetValue("")
				return a, nil
			}
		case "enter":
			if a.busy {
				return a, nil
			}
			return a.advance()
		}
	}

	var cmd tea.Cmd
	switch a.flow.Page {
	case session.Home:
		a.docTypes, cmd = a.docTypes.Update(msg)
	case session.Upload:
		a.pathInput, cmd = a.pathInput.Update(msg)
	}
	return a, cmd
}

// advance performs the enter action for the current page.
func (a *App) advance() (tea.Model, tea.Cmd) {
	a.err = nil
	switch a.flow.Page {
	case session.Home:
		item, ok := a.docTypes.SelectedItem().(docTypeItem)
		if !ok {
			return a, nil
		}
		a.flow.DocType = item.docType
		a.transition(session.Upload)
		a.status = ""
		return a, a.pathInput.Focus()

	case session.Upload:
		path := strings.TrimSpace(a.pathInput.Value())
		if path == "" {
			a.err = errors.New("enter a file path")
			return a, nil
		}
		a.flow.Filename = filepath.Base(path)
		a.busy = true
		a.status = "Extracting " + a.flow.Filename + "..."
		return a, a.extractCmd(path, a.flow.DocType)

	case session.Review:
		a.busy = true
		a.status = "Running analysis, compliance and enhancement agents..."
		return a, a.processCmd(*a.flow.Extraction)

	case session.Feedback:
		a.transition(session.Home)
		a.pathInput.SetValue("")
		return a, nil
	}
	return a, nil
}

func (a *App) transition(to session.Page) {
	if err := a.flow.Transition(to); err != nil {
		a.err = err
	}
}

func (a *App) extractCmd(path string, docType constants.DocType) tea.Cmd {
	return func() tea.Msg {
		req, err := async.LoadRequest(path, docType)
		if err != nil {
			return extractedMsg{err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		doc, err := a.pipeline.Extract(ctx, req)
		return extractedMsg{doc: doc, err: err}
	}
}

func (a *App) processCmd(doc extract.Document) tea.Cmd {
	docType, filename := a.flow.DocType, a.flow.Filename
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		res := a.pipeline.RunExtracted(ctx, doc)
		var err error
		if a.feedback != nil {
			err = a.feedback.Save(ctx, feedback.Record{
				ID:        res.RequestID,
				DocType:   docType,
				Filename:  filename,
				Result:    res,
				CreatedAt: time.Now().UTC(),
			})
		}
		return processedMsg{res: res, err: err}
	}
}

func (a *App) View() string {
	var b strings.Builder
	switch a.flow.Page {
	case session.Home:
		b.WriteString(a.docTypes.View())
		b.WriteString("\n" + hintStyle.Render("enter: choose · q: quit"))
	case session.Upload:
		b.WriteString(titleStyle.Render("Upload "+a.flow.DocType.Label()) + "\n\n")
		b.WriteString(a.pathInput.View())
		b.WriteString("\n\n" + hintStyle.Render("enter: extract · esc: back"))
	case session.Review:
		b.WriteString(titleStyle.Render("Review "+a.flow.Filename) + "\n\n")
		if a.flow.Extraction != nil {
			b.WriteString(boxStyle.Render(renderFields(a.flow.Extraction.Fields)))
		}
		b.WriteString("\n\n" + hintStyle.Render("enter: validate · esc: start over"))
	case session.Feedback:
		b.WriteString(titleStyle.Render("Validation "+a.flow.Filename) + "\n\n")
		if a.flow.Result != nil {
			b.WriteString(renderResult(*a.flow.Result))
		}
		b.WriteString("\n\n" + hintStyle.Render("enter: done"))
	}
	if a.status != "" {
		b.WriteString("\n" + a.status)
	}
	if a.err != nil {
		b.WriteString("\n" + errStyle.Render("Error: "+a.err.Error()))
	}
	return b.String()
}

func renderFields(fields extract.Fields) string {
	if len(fields) == 0 {
		return hintStyle.Render("no fields extracted")
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, labelStyle.Render(k+":")+" "+fields[k])
	}
	return strings.Join(lines, "\n")
}

func renderResult(res pipeline.Result) string {
	var b strings.Builder
	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString(labelStyle.Render(title) + "\n")
		for _, it := range items {
			b.WriteString("  • " + it + "\n")
		}
	}

	b.WriteString(labelStyle.Render("Summary: ") + res.Analysis.Summary + "\n")
	section("Missing fields", res.Analysis.MissingFields)
	section("Critical issues", res.Analysis.CriticalIssues)
	b.WriteString(labelStyle.Render("Compliance: ") + string(res.Compliance.Status) +
		" (risk " + string(res.Compliance.Risk) + ")\n")
	section("Violations", res.Compliance.Violations)
	section("Recommendations", res.Compliance.Recommendations)

	if len(res.Enhancement.SuggestedValues) > 0 {
		b.WriteString(labelStyle.Render("Suggested values") + "\n")
		keys := make([]string, 0, len(res.Enhancement.SuggestedValues))
		for k := range res.Enhancement.SuggestedValues {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sv := res.Enhancement.SuggestedValues[k]
			b.WriteString(fmt.Sprintf("  • %s: %s (%.0f%%)\n", k, sv.Value, sv.Confidence*100))
		}
	}
	section("Verification steps", res.Enhancement.VerificationSteps)
	section("Additional sources", res.Enhancement.AdditionalSources)

	if len(res.Degraded) > 0 {
		b.WriteString(warnStyle.Render("Fell back: "+strings.Join(res.Degraded, ", ")) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
