package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hostbridge/wasm-bridge/server"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	methodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type inspectorState int

const (
	stateSelectRoute inspectorState = iota
	stateEditRequest
	stateShowResponse
)

// inspectorModel drives the route inspector: pick a route, fill in path,
// body, and cookie, send the request through the real pipeline, read the
// response. The server is fully booted before the program starts.
type inspectorModel struct {
	srv      *server.Server
	routes   []server.Route
	filename string

	state    inspectorState
	selected int
	inputs   []textinput.Model // path, body, cookie
	focusIdx int

	status  int
	headers string
	body    string
	reqErr  error

	// cookie is the last pair a response set, re-offered on the next
	// request so login flows carry their session forward.
	cookie string
}

func newInspectorModel(filename string, srv *server.Server) *inspectorModel {
	return &inspectorModel{
		srv:      srv,
		routes:   srv.Routes(),
		filename: filename,
		state:    stateSelectRoute,
	}
}

type dispatchedMsg struct {
	err       error
	status    int
	headers   string
	body      string
	cookie    string
	sawCookie bool
}

func (m *inspectorModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state != stateEditRequest || msg.String() == "ctrl+c" {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectRoute && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectRoute && m.selected < len(m.routes)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectRoute:
				if len(m.routes) == 0 {
					return m, nil
				}
				m.prepareInputs()
				m.state = stateEditRequest

			case stateEditRequest:
				return m, m.dispatch

			case stateShowResponse:
				m.state = stateSelectRoute
				m.reqErr = nil
			}

		case "tab":
			if m.state == stateEditRequest {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateEditRequest:
				m.state = stateSelectRoute
				m.inputs = nil
			case stateShowResponse:
				m.state = stateSelectRoute
				m.reqErr = nil
			}
		}

	case dispatchedMsg:
		m.reqErr = msg.err
		m.status = msg.status
		m.headers = msg.headers
		m.body = msg.body
		if msg.sawCookie {
			m.cookie = msg.cookie
		}
		m.state = stateShowResponse
	}

	if m.state == stateEditRequest {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *inspectorModel) prepareInputs() {
	rt := m.routes[m.selected]

	path := textinput.New()
	path.Prompt = "path:   "
	path.SetValue(rt.Pattern)
	path.Width = 48
	path.Focus()

	body := textinput.New()
	body.Prompt = "body:   "
	body.Placeholder = `{"key":"value"}`
	body.Width = 48

	cookie := textinput.New()
	cookie.Prompt = "cookie: "
	cookie.Placeholder = "session=<id>"
	cookie.Width = 48
	if m.cookie != "" {
		cookie.SetValue(m.cookie)
	}

	m.inputs = []textinput.Model{path, body, cookie}
	m.focusIdx = 0
}

// recorder is a minimal in-process http.ResponseWriter for synthetic
// dispatch.
type recorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header), status: http.StatusOK}
}

func (r *recorder) Header() http.Header         { return r.header }
func (r *recorder) Write(p []byte) (int, error) { return r.body.Write(p) }
func (r *recorder) WriteHeader(status int)      { r.status = status }

func (m *inspectorModel) dispatch() tea.Msg {
	rt := m.routes[m.selected]
	path := strings.TrimSpace(m.inputs[0].Value())
	if path == "" {
		path = rt.Pattern
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	reqBody := m.inputs[1].Value()
	cookie := strings.TrimSpace(m.inputs[2].Value())

	req, err := http.NewRequest(rt.Method, "http://bridge.local"+path, strings.NewReader(reqBody))
	if err != nil {
		return dispatchedMsg{err: err}
	}
	req.RemoteAddr = "127.0.0.1:0"
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	if reqBody != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := newRecorder()
	m.srv.ServeHTTP(rec, req)

	msg := dispatchedMsg{
		status:  rec.status,
		headers: renderHeaders(rec.header),
		body:    prettyBody(rec.body.String()),
	}
	// The last Set-Cookie wins; an emptied value means the handler
	// cleared the session.
	if setCookies := rec.header.Values("Set-Cookie"); len(setCookies) > 0 {
		pair := setCookies[len(setCookies)-1]
		if i := strings.IndexByte(pair, ';'); i >= 0 {
			pair = pair[:i]
		}
		msg.sawCookie = true
		if !strings.HasSuffix(pair, "=") {
			msg.cookie = pair
		}
	}
	return msg
}

func renderHeaders(h http.Header) string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		for _, v := range h[name] {
			fmt.Fprintf(&b, "%s: %s\n", name, v)
		}
	}
	return b.String()
}

// prettyBody re-indents JSON bodies; anything else passes through.
func prettyBody(body string) string {
	trimmed := strings.TrimSpace(body)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return body
	}
	var out bytes.Buffer
	if json.Indent(&out, []byte(trimmed), "", "  ") != nil {
		return body
	}
	return out.String()
}

func (m *inspectorModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Route Inspector"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectRoute:
		if len(m.routes) == 0 {
			b.WriteString("No routes registered.\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			break
		}
		b.WriteString("Select a route:\n\n")
		for i, rt := range m.routes {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + m.formatRoute(rt)))
			} else {
				b.WriteString("  " + m.formatRoute(rt))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter open • q quit"))

	case stateEditRequest:
		rt := m.routes[m.selected]
		fmt.Fprintf(&b, "%s %s\n\n", methodStyle.Render(rt.Method), rt.Pattern)
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		if m.cookie != "" {
			b.WriteString("\n")
			b.WriteString(helpStyle.Render("session carried over from the last response"))
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter send • esc back"))

	case stateShowResponse:
		rt := m.routes[m.selected]
		fmt.Fprintf(&b, "%s %s\n\n", methodStyle.Render(rt.Method), m.inputs[0].Value())
		if m.reqErr != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.reqErr)))
		} else {
			statusStyle := okStyle
			if m.status >= 400 {
				statusStyle = errorStyle
			}
			b.WriteString(statusStyle.Render(fmt.Sprintf("%d %s", m.status, http.StatusText(m.status))))
			b.WriteString("\n\n")
			b.WriteString(helpStyle.Render(m.headers))
			if m.body != "" {
				b.WriteString("\n")
				b.WriteString(m.body)
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *inspectorModel) formatRoute(rt server.Route) string {
	line := fmt.Sprintf("%s %-28s handler %d", methodStyle.Render(fmt.Sprintf("%-7s", rt.Method)), rt.Pattern, rt.Handler)
	if rt.Protected {
		tag := "protected"
		if rt.Role != "" {
			tag += " role=" + rt.Role
		}
		line += "  " + tagStyle.Render(tag)
	}
	return line
}

func runInspector(filename string, srv *server.Server) error {
	p := tea.NewProgram(newInspectorModel(filename, srv), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
