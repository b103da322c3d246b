// Package tui renders a dashboard in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docdash/internal/dashboard"
	"docdash/internal/document/model"
)

type mode int

const (
	modeList mode = iota
	modeNew
	modeEdit
	modeConfirmDelete
)

type pane int

const (
	panePrivate pane = iota
	panePublic
)

type (
	startedMsg struct{ result dashboard.BootstrapResult }
	changedMsg struct{}
	createdMsg struct{ err error }
	opDoneMsg  struct{ err error }
	signedOut  struct{ err error }
)

// App is the Bubble Tea model for the dashboard.
type App struct {
	ctx    context.Context
	dash   *dashboard.Dashboard
	keys   *KeyMap
	styles *Styles
	help   help.Model

	mode     mode
	focus    pane
	selected [2]int
	width    int
	height   int

	title     textinput.Model
	content   textarea.Model
	newPublic bool
	pending   model.Document

	spinner spinner.Model
}

func NewApp(ctx context.Context, d *dashboard.Dashboard) *App {
	title := textinput.New()
	title.Placeholder = model.DefaultTitle
	title.CharLimit = 200

	content := textarea.New()
	content.Placeholder = "Start writing..."
	content.ShowLineNumbers = false

	return &App{
		ctx:     ctx,
		dash:    d,
		keys:    DefaultKeyMap(),
		styles:  DefaultStyles(),
		help:    help.New(),
		title:   title,
		content: content,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.start(), a.waitForChange(), a.spinner.Tick)
}

func (a *App) start() tea.Cmd {
	return func() tea.Msg {
		return startedMsg{result: a.dash.Start(a.ctx)}
	}
}

// waitForChange blocks until the dashboard reports new state.
func (a *App) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-a.dash.Changes():
			return changedMsg{}
		case <-a.ctx.Done():
			return nil
		}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.content.SetWidth(max(msg.Width-10, 20))
		a.content.SetHeight(max(msg.Height-14, 5))
		return a, nil

	case startedMsg, changedMsg:
		a.clampSelection()
		return a, a.waitForChange()

	case createdMsg:
		if msg.err != nil {
			a.mode = modeList
			return a, nil
		}
		return a, a.openEditor()

	case opDoneMsg:
		if a.mode == modeConfirmDelete {
			a.mode = modeList
		}
		return a, nil

	case signedOut:
		a.mode = modeList
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		switch a.mode {
		case modeNew:
			return a.updateForm(msg)
		case modeEdit:
			return a.updateEditor(msg)
		case modeConfirmDelete:
			return a.updateConfirm(msg)
		default:
			return a.updateList(msg)
		}
	}
	return a, nil
}

func (a *App) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		a.dash.Close()
		return a, tea.Quit
	case key.Matches(msg, a.keys.SwitchPane):
		a.focus = 1 - a.focus
	case key.Matches(msg, a.keys.Up):
		if a.selected[a.focus] > 0 {
			a.selected[a.focus]--
		}
	case key.Matches(msg, a.keys.Down):
		if a.selected[a.focus] < len(a.docs(a.focus))-1 {
			a.selected[a.focus]++
		}
	case key.Matches(msg, a.keys.New):
		a.mode = modeNew
		a.newPublic = a.focus == panePublic
		a.title.SetValue("")
		return a, a.title.Focus()
	case key.Matches(msg, a.keys.Open):
		if doc, ok := a.current(); ok {
			a.dash.Open(doc)
			return a, a.openEditor()
		}
	case key.Matches(msg, a.keys.Delete):
		if doc, ok := a.current(); ok && a.dash.CanDelete(doc) {
			a.pending = doc
			a.mode = modeConfirmDelete
		}
	case key.Matches(msg, a.keys.Dismiss):
		a.dash.Dismiss()
	case key.Matches(msg, a.keys.SignOut):
		d, ctx := a.dash, a.ctx
		return a, func() tea.Msg { return signedOut{err: d.SignOut(ctx)} }
	}
	return a, nil
}

func (a *App) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Close):
		a.title.Blur()
		a.mode = modeList
		return a, nil
	case key.Matches(msg, a.keys.TogglePublic):
		a.newPublic = !a.newPublic
		return a, nil
	case key.Matches(msg, a.keys.Submit):
		a.title.Blur()
		d, ctx := a.dash, a.ctx
		title, public := a.title.Value(), a.newPublic
		return a, func() tea.Msg {
			_, err := d.Create(ctx, title, "", public)
			return createdMsg{err: err}
		}
	}
	var cmd tea.Cmd
	a.title, cmd = a.title.Update(msg)
	return a, cmd
}

func (a *App) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Close):
		a.dash.CloseEditor()
		a.title.Blur()
		a.content.Blur()
		a.mode = modeList
		return a, nil
	case key.Matches(msg, a.keys.Save):
		doc, ok := a.dash.Editor()
		if !ok {
			a.mode = modeList
			return a, nil
		}
		doc.Title = a.title.Value()
		doc.Content = a.content.Value()
		d, ctx := a.dash, a.ctx
		return a, func() tea.Msg {
			_, err := d.Save(ctx, doc)
			return opDoneMsg{err: err}
		}
	case key.Matches(msg, a.keys.NextField):
		if a.title.Focused() {
			a.title.Blur()
			return a, a.content.Focus()
		}
		a.content.Blur()
		return a, a.title.Focus()
	}

	var cmd tea.Cmd
	if a.title.Focused() {
		a.title, cmd = a.title.Update(msg)
	} else {
		a.content, cmd = a.content.Update(msg)
	}
	return a, cmd
}

func (a *App) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Confirm):
		d, ctx, doc := a.dash, a.ctx, a.pending
		return a, func() tea.Msg {
			return opDoneMsg{err: d.Delete(ctx, doc, true)}
		}
	case key.Matches(msg, a.keys.Deny):
		a.mode = modeList
	}
	return a, nil
}

// openEditor loads the dashboard's open document into the inputs.
func (a *App) openEditor() tea.Cmd {
	doc, ok := a.dash.Editor()
	if !ok {
		a.mode = modeList
		return nil
	}
	a.title.SetValue(doc.Title)
	a.content.SetValue(doc.Content)
	a.content.Blur()
	a.mode = modeEdit
	return a.title.Focus()
}

func (a *App) docs(p pane) []model.Document {
	if p == panePublic {
		return a.dash.Public()
	}
	return a.dash.Private()
}

func (a *App) current() (model.Document, bool) {
	docs := a.docs(a.focus)
	i := a.selected[a.focus]
	if i < 0 || i >= len(docs) {
		return model.Document{}, false
	}
	return docs[i], true
}

func (a *App) clampSelection() {
	for _, p := range []pane{panePrivate, panePublic} {
		n := len(a.docs(p))
		if a.selected[p] >= n {
			a.selected[p] = max(n-1, 0)
		}
	}
}

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(a.header())
	b.WriteString("\n\n")

	switch a.mode {
	case modeNew:
		b.WriteString(a.formView())
	case modeEdit:
		b.WriteString(a.editorView())
	case modeConfirmDelete:
		b.WriteString(a.confirmView())
	default:
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			a.paneView(panePrivate, "Private"),
			" ",
			a.paneView(panePublic, "Public"),
		))
	}

	b.WriteString("\n")
	if line := a.noticeView(); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(a.helpView())
	return b.String()
}

func (a *App) header() string {
	title := a.styles.Title.Render("docdash")
	if !a.dash.Ready() {
		return title + " " + a.spinner.View() + a.styles.Muted.Render(" signing in...")
	}
	id := a.dash.Identity()
	who := "signed out"
	if !id.IsZero() {
		who = dashboard.FormatUserID(id.ID)
		if id.Anonymous {
			who += " (anonymous)"
		}
		if id.IsPlaceholder() {
			who += " (offline)"
		}
	}
	line := title + "  " + a.styles.Muted.Render(who)
	if a.dash.Busy() {
		line += " " + a.spinner.View()
	}
	return line
}

func (a *App) paneView(p pane, name string) string {
	docs := a.docs(p)
	var b strings.Builder
	b.WriteString(a.styles.PaneTitle.Render(fmt.Sprintf("%s (%d)", name, len(docs))))
	b.WriteString("\n")
	if len(docs) == 0 {
		b.WriteString(a.styles.Muted.Render("No documents"))
	}
	for i, doc := range docs {
		line := fmt.Sprintf("%s  %s", doc.Title, a.styles.Muted.Render(dashboard.FormatTimestamp(doc.LastUpdated)))
		if p == panePublic {
			line += a.styles.Muted.Render(" by " + dashboard.FormatUserID(doc.AuthorID))
		}
		if p == a.focus && i == a.selected[p] {
			line = a.styles.Selected.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		if i < len(docs)-1 {
			b.WriteString("\n")
		}
	}

	style := a.styles.Pane
	if p == a.focus {
		style = a.styles.ActivePane
	}
	if a.width > 0 {
		style = style.Width(max(a.width/2-4, 20))
	}
	return style.Render(b.String())
}

func (a *App) formView() string {
	visibility := "private"
	if a.newPublic {
		visibility = "public"
	}
	body := a.styles.PaneTitle.Render("New document") + "\n\n" +
		a.title.View() + "\n\n" +
		"Visibility: " + a.styles.Info.Render(visibility)
	return a.styles.Modal.Render(body)
}

func (a *App) editorView() string {
	doc, _ := a.dash.Editor()
	heading := "Editing"
	if doc.IsPublic {
		heading += " public document by " + dashboard.FormatUserID(doc.AuthorID)
	}
	if !a.dash.CanEdit(doc) {
		heading += " (read only)"
	}
	body := a.styles.PaneTitle.Render(heading) + "\n" +
		a.styles.Muted.Render("Last updated "+dashboard.FormatTimestamp(doc.LastUpdated)) + "\n\n" +
		a.title.View() + "\n\n" +
		a.content.View()
	return a.styles.Modal.Render(body)
}

func (a *App) confirmView() string {
	return a.styles.Modal.Render(fmt.Sprintf("Delete %q? This cannot be undone. (y/n)", a.pending.Title))
}

func (a *App) noticeView() string {
	n, ok := a.dash.Notice()
	if !ok {
		return ""
	}
	switch n.Kind {
	case dashboard.NoticeError:
		return a.styles.Error.Render(n.Message)
	case dashboard.NoticeSuccess:
		return a.styles.Success.Render(n.Message)
	default:
		return a.styles.Info.Render(n.Message)
	}
}

func (a *App) helpView() string {
	var bindings []key.Binding
	switch a.mode {
	case modeNew:
		bindings = a.keys.FormHelp()
	case modeEdit:
		bindings = a.keys.EditorHelp()
	case modeConfirmDelete:
		bindings = a.keys.ConfirmHelp()
	default:
		bindings = a.keys.ListHelp()
	}
	return a.help.ShortHelpView(bindings)
}
