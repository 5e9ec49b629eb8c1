package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bep/debounce"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-acordeon/catalog"
	"go-acordeon/config"
	"go-acordeon/debug"
	"go-acordeon/midi"
	"go-acordeon/sequencer"
	"go-acordeon/theme"
	"go-acordeon/widgets"
)

// terminals report presses only, so a key is released after this long
const holdDuration = 180 * time.Millisecond

const (
	laneHeight   = 14
	labelWidth   = 6
	laneSpeedMin = 0.1
	laneSpeedMax = 2.0
)

// layoutBounds holds cached layout info for mouse hit tests
type layoutBounds struct {
	keyboardTop int
}

type Model struct {
	Manager   *sequencer.Manager
	DeviceMgr *midi.DeviceManager // nil when MIDI input is off
	Theme     *theme.Theme
	Config    *config.Config

	ctx      context.Context
	save     func(func())
	bounds   *layoutBounds
	holds    map[string]int // key -> press generation
	mouseKey string

	laneSong  string
	laneCols  map[int]int // engine lane -> display column
	laneNames []string

	feedback *sequencer.Feedback
	framing  bool // a frame tick is pending
	status   string
	showHelp bool
	quitting bool
}

type UpdateMsg struct{}

type FeedbackMsg sequencer.Feedback

type DeviceEventMsg midi.DeviceEvent

type frameMsg struct{}

type releaseMsg struct {
	key string
	gen int
}

// NewModel creates the TUI. deviceMgr may be nil.
func NewModel(ctx context.Context, manager *sequencer.Manager, deviceMgr *midi.DeviceManager, th *theme.Theme, cfg *config.Config) Model {
	m := Model{
		Manager:   manager,
		DeviceMgr: deviceMgr,
		Theme:     th,
		Config:    cfg,
		ctx:       ctx,
		save:      debounce.New(500 * time.Millisecond),
		bounds:    &layoutBounds{},
		holds:     make(map[string]int),
		laneCols:  make(map[int]int),
	}
	m.refreshLanes()
	return m
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForFeedback(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		return FeedbackMsg(<-manager.Feedback())
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

// frame redraws while a song is running
func frame() tea.Cmd {
	return tea.Tick(time.Second/30, func(time.Time) tea.Msg { return frameMsg{} })
}

// startFrames begins the redraw ticks unless they already run
func (m *Model) startFrames() tea.Cmd {
	if m.framing {
		return nil
	}
	m.framing = true
	return frame()
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		ListenForUpdates(m.Manager),
		ListenForFeedback(m.Manager),
	}
	if m.DeviceMgr != nil {
		cmds = append(cmds, ListenForDevices(m.DeviceMgr))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case releaseMsg:
		if m.holds[msg.key] == msg.gen {
			delete(m.holds, msg.key)
			m.Manager.ReleaseKey(msg.key)
		}

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case UpdateMsg:
		m.refreshLanes()
		if m.Manager.Snapshot().Playing {
			return m, tea.Batch(ListenForUpdates(m.Manager), m.startFrames())
		}
		return m, ListenForUpdates(m.Manager)

	case frameMsg:
		m.framing = false
		if m.Manager.Snapshot().Playing {
			return m, m.startFrames()
		}

	case FeedbackMsg:
		fb := sequencer.Feedback(msg)
		m.feedback = &fb
		return m, ListenForFeedback(m.Manager)

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		switch event.Type {
		case midi.DeviceConnected:
			var cc uint8
			if ctrl := m.Config.FindController(event.ID); ctrl != nil {
				cc = ctrl.BellowsCC
			}
			go midi.NewRouter(m.Manager, cc).Run(m.ctx, event.Controller.Events())
			m.status = "MIDI: " + event.ID
		case midi.DeviceDisconnected:
			m.status = "MIDI disconnected: " + event.ID
		}
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		m.Manager.Stop()
		return m, tea.Quit

	case " ":
		m.Manager.ToggleBellows()
	case "left":
		m.Manager.Flip(catalog.Pull)
	case "right":
		m.Manager.Flip(catalog.Push)

	case "enter":
		if m.Manager.Song() == nil {
			m.status = "no song loaded"
			break
		}
		if err := m.Manager.Restart(m.ctx); err != nil {
			m.status = err.Error()
			break
		}
		return m, m.startFrames()
	case "esc":
		m.Manager.Stop()
	case "tab":
		if snap := m.Manager.Snapshot(); snap.Paused {
			m.Manager.Resume()
		} else {
			m.Manager.Pause()
		}
	case "ctrl+f":
		if m.Manager.Mode() == sequencer.ModeFree {
			m.Manager.SetMode(sequencer.ModePlay)
		} else {
			m.Manager.SetMode(sequencer.ModeFree)
		}

	case "+", "=":
		m.adjustLaneSpeed(0.05)
	case "-", "_":
		m.adjustLaneSpeed(-0.05)
	case "?":
		m.showHelp = !m.showHelp

	default:
		key := msg.String()
		res := m.Manager.PressKey(key)
		if res.NoteID == "" {
			break
		}
		m.holds[key]++
		gen := m.holds[key]
		return m, tea.Tick(holdDuration, func(time.Time) tea.Msg {
			return releaseMsg{key: key, gen: gen}
		})
	}
	return m, nil
}

// adjustLaneSpeed changes how fast notes fall and saves it once edits settle
func (m *Model) adjustLaneSpeed(delta float64) {
	t := m.Config.Timing
	t.LaneSpeed = min(max(t.LaneSpeed+delta, laneSpeedMin), laneSpeedMax)
	m.Config.Timing = t
	m.Manager.SetTiming(t)
	m.status = fmt.Sprintf("lane speed %.2f (lead %dms)", t.LaneSpeed, t.LeadTimeMs())

	cfg := m.Config
	m.save(func() {
		if err := cfg.Save(); err != nil {
			debug.Log("config", "save: %v", err)
		}
	})
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		if pos, ok := m.hitTest(msg.X, msg.Y); ok {
			key := "hw:" + pos.String()
			m.Manager.SetMouseHeld(true)
			m.Manager.PressKey(key)
			m.mouseKey = key
		}
	case msg.Action == tea.MouseActionRelease:
		if m.mouseKey != "" {
			m.Manager.ReleaseKey(m.mouseKey)
			m.Manager.SetMouseHeld(false)
			m.mouseKey = ""
		}
	}
	return m, nil
}

// keyboardRows are the button rows top to bottom as drawn
var keyboardRows = []struct {
	label   string
	row     int
	columns int
	bass    bool
}{
	{"3", 3, 10, false},
	{"2", 2, 10, false},
	{"1", 1, 10, false},
	{"bajo2", 2, 6, true},
	{"bajo1", 1, 6, true},
}

func (m Model) hitTest(x, y int) (catalog.Position, bool) {
	r := y - m.bounds.keyboardTop
	if r < 0 || r >= len(keyboardRows) {
		return catalog.Position{}, false
	}
	kr := keyboardRows[r]
	rel := x - labelWidth
	if kr.row == 2 && !kr.bass {
		rel-- // middle row is staggered
	}
	if rel < 0 || rel%2 != 0 {
		return catalog.Position{}, false
	}
	col := rel/2 + 1
	if col > kr.columns {
		return catalog.Position{}, false
	}
	return catalog.Position{Row: kr.row, Column: col, Bass: kr.bass}, true
}

// refreshLanes picks the lanes the loaded song uses
func (m *Model) refreshLanes() {
	sng := m.Manager.Song()
	id := ""
	if sng != nil {
		id = sng.ID
	}
	if id == m.laneSong {
		return
	}
	m.laneSong = id
	m.laneCols = make(map[int]int)
	m.laneNames = nil
	if sng == nil {
		return
	}

	var positions []catalog.Position
	for _, l := range m.Manager.Snapshot().Lanes {
		positions = append(positions, l.Position)
	}
	lanes := sequencer.NewLanes(positions)
	all := lanes.All()
	used := make(map[int]string)
	for _, n := range sng.Notes {
		if idx, ok := lanes.For(n.NoteID); ok {
			used[idx] = all[idx].Name
		}
	}
	var idxs []int
	for idx := range used {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	for col, idx := range idxs {
		m.laneCols[idx] = col
		m.laneNames = append(m.laneNames, used[idx])
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	snap := m.Manager.Snapshot()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	statusStyle := lipgloss.NewStyle().
		Foreground(m.Theme.FG()).
		Background(m.Theme.BG()).
		Padding(0, 1)

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(headerStyle.Render(m.header(snap)))
	out.WriteString("\n\n")

	lines := 3
	if snap.SongID != "" {
		lanes := m.renderLanes(snap)
		out.WriteString(lanes)
		out.WriteString("\n\n")
		lines += lipgloss.Height(lanes) + 1

		score := m.renderScore(snap)
		out.WriteString(score)
		out.WriteString("\n\n")
		lines += lipgloss.Height(score) + 1
	}

	bellows := m.renderBellows(snap)
	out.WriteString(bellows)
	out.WriteString("\n\n")
	lines += 2

	m.bounds.keyboardTop = lines
	out.WriteString(m.renderKeyboard(snap))
	out.WriteString("\n\n")

	if m.showHelp {
		out.WriteString(widgets.RenderKeyHelp(helpSections))
		out.WriteString("\n\n")
	}
	out.WriteString(dimStyle.Render("1-0 q-p a-; zxcvbn:buttons  space:bellows  enter:play  tab:pause  esc:stop  +/-:speed  ?:help  ctrl+c:quit"))

	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(statusStyle.Render(m.status))
	}
	return out.String()
}

func (m Model) header(snap sequencer.Snapshot) string {
	state := "LIBRE"
	switch {
	case snap.Finished:
		state = "FIN"
	case snap.Paused:
		state = "PAUSA"
	case snap.Playing:
		state = "TOCANDO"
	case snap.Mode == sequencer.ModePlay:
		state = "LISTO"
	}
	title := snap.SongTitle
	if title == "" {
		title = snap.SongID
	}
	clock := time.Duration(snap.ClockMs) * time.Millisecond
	return fmt.Sprintf("go-acordeon  %s  %s  %s", state, title, clock.Truncate(100*time.Millisecond))
}

func (m Model) renderLanes(snap sequencer.Snapshot) string {
	var marks []widgets.Mark
	for _, fn := range snap.Falling {
		col, ok := m.laneCols[fn.Lane]
		if !ok {
			continue
		}
		dir := catalog.Pull
		if id, err := catalog.ParseID(fn.NoteID); err == nil {
			dir = id.Direction
		}
		marks = append(marks, widgets.Mark{
			Lane:  col,
			Row:   widgets.LaneRow(fn.TimeMs-snap.ClockMs, snap.LeadMs, laneHeight),
			Color: m.Theme.DirectionRGB(dir),
		})
	}

	return widgets.RenderLanes(widgets.LaneGrid{
		Lanes:     len(m.laneNames),
		Height:    laneHeight,
		Labels:    m.laneNames,
		LaneColor: m.Theme.RGB(theme.RoleSurface),
		HitColor:  m.Theme.RGB(theme.RoleSuccess),
		LaneGlyph: m.Theme.Symbols.Lane,
		NoteGlyph: m.Theme.Symbols.Note,
		HitGlyph:  m.Theme.Symbols.HitLine,
	}, marks)
}

func (m Model) renderScore(snap sequencer.Snapshot) string {
	g := snap.Game
	line := fmt.Sprintf("puntos %d  combo %d (max %d)  precisión %.0f%%  %d/%d",
		g.Score, g.Combo, g.ComboMax, snap.Accuracy*100, snap.Total-snap.Pending, snap.Total)
	health := widgets.RenderMeter("vida", g.Health, 100, 20, m.Theme.RGB(theme.RoleActive))

	fb := ""
	if m.feedback != nil {
		style := lipgloss.NewStyle().Foreground(m.Theme.Tier(m.feedback.Tier)).Bold(true)
		fb = style.Render(fmt.Sprintf("%s x%d", strings.ToUpper(m.feedback.Tier.String()), m.feedback.Combo))
	}
	return line + "\n" + health + "  " + fb
}

func (m Model) renderBellows(snap sequencer.Snapshot) string {
	dir := snap.Bellows.Direction
	style := lipgloss.NewStyle().Foreground(m.Theme.Direction(dir)).Bold(true)
	if dir == catalog.Push {
		return style.Render(fmt.Sprintf("fuelle: EMPUJAR %c", m.Theme.Symbols.PushArrow))
	}
	return style.Render(fmt.Sprintf("fuelle: %c HALAR", m.Theme.Symbols.PullArrow))
}

func (m Model) renderKeyboard(snap sequencer.Snapshot) string {
	active := make(map[catalog.Position]string)
	for _, n := range snap.Active {
		active[n.ID.Position()] = n.ColorTag
	}

	idle := m.Theme.RGB(theme.RoleMuted)
	labelStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())

	var lines []string
	for _, kr := range keyboardRows {
		var buttons []widgets.Button
		for c := 1; c <= kr.columns; c++ {
			pos := catalog.Position{Row: kr.row, Column: c, Bass: kr.bass}
			b := widgets.Button{Color: idle, Glyph: m.Theme.Symbols.ButtonIdle}
			if tag, ok := active[pos]; ok {
				b.Color = m.Theme.TagRGB(tag)
				b.Glyph = m.Theme.Symbols.ButtonActive
			}
			buttons = append(buttons, b)
		}
		if kr.row == 2 && !kr.bass {
			buttons[0].Offset = true
		}
		label := labelStyle.Render(fmt.Sprintf("%-*s", labelWidth, kr.label))
		lines = append(lines, label+widgets.RenderButtonRow(buttons))
	}
	return strings.Join(lines, "\n")
}

var helpSections = []widgets.KeySection{
	{Title: "Botones", Keys: []widgets.KeyBinding{
		{Key: "1-0", Desc: "fila 1"},
		{Key: "q-p", Desc: "fila 2"},
		{Key: "a-;", Desc: "fila 3"},
		{Key: "zxcvbn", Desc: "bajos 1 (mayúsculas: bajos 2)"},
		{Key: "repetir", Desc: fmt.Sprintf("un botón suena %dms tras la última pulsación; repetirlo antes no cuenta como nota nueva", holdDuration.Milliseconds())},
	}},
	{Title: "Fuelle", Keys: []widgets.KeyBinding{
		{Key: "space", Desc: "invertir"},
		{Key: "left/right", Desc: "halar / empujar"},
	}},
	{Title: "Canción", Keys: []widgets.KeyBinding{
		{Key: "enter", Desc: "tocar desde el inicio"},
		{Key: "tab", Desc: "pausa"},
		{Key: "esc", Desc: "parar"},
		{Key: "ctrl+f", Desc: "modo libre / juego"},
		{Key: "+/-", Desc: "velocidad de las notas"},
	}},
}
