package record

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestTUIWriterMessages(t *testing.T) {
	p := &fakeProgram{}
	w := &TUIWriter{program: p}
	row := sampleRow(1, time.Unix(0, 0).UTC())
	if err := w.Write(row); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(p.msgs) != 1 {
		t.Fatalf("on-time step should send one message, got %d", len(p.msgs))
	}
	if _, ok := p.msgs[0].(stateMsg); !ok {
		t.Fatalf("expected stateMsg, got %T", p.msgs[0])
	}
	row.Late = true
	w.Write(row)
	if _, ok := p.msgs[2].(logMsg); !ok {
		t.Fatalf("expected logMsg for late step, got %T", p.msgs[2])
	}
	if err := w.WriteEvent(EventRow{From: "synchronized", To: "faulted", Cause: "closed"}); err != nil {
		t.Fatalf("event: %v", err)
	}
	if _, ok := p.msgs[3].(eventMsg); !ok {
		t.Fatalf("expected eventMsg, got %T", p.msgs[3])
	}
	if _, ok := p.msgs[4].(logMsg); !ok {
		t.Fatalf("expected logMsg, got %T", p.msgs[4])
	}
	w.SetAdminStatus(true)
	if _, ok := p.msgs[5].(adminMsg); !ok {
		t.Fatalf("expected adminMsg, got %T", p.msgs[5])
	}
}

func TestModelTracksState(t *testing.T) {
	m := newTUIModel("127.0.0.1:5556", 120)
	if got := m.table.Rows()[1][1]; got != "-" {
		t.Fatalf("lat before first step = %q", got)
	}
	row := sampleRow(42, time.Unix(0, 0).UTC())
	row.Late = true
	mi, _ := m.Update(stateMsg{row})
	m = mi.(tuiModel)
	mi, _ = m.Update(eventMsg{EventRow{From: "connecting", To: "synchronized"}})
	m = mi.(tuiModel)

	rows := m.table.Rows()
	if rows[0][3] != "42" {
		t.Fatalf("step cell = %q", rows[0][3])
	}
	if rows[2][1] != "5000.0000" {
		t.Fatalf("alt cell = %q", rows[2][1])
	}
	if rows[7][3] != "1" || m.steps != 1 {
		t.Fatalf("late=%q steps=%d", rows[7][3], m.steps)
	}
	if m.status != "synchronized" {
		t.Fatalf("status = %s", m.status)
	}
}

func TestWrapToggle(t *testing.T) {
	m := newTUIModel("sim", 60)
	m.vp.Width = 20
	m.vp.Height = 5
	mi, _ := m.Update(logMsg{line: "one two three four five six"})
	m = mi.(tuiModel)
	if n := m.vp.TotalLineCount(); n != 1 {
		t.Fatalf("expected single line before wrap, got %d", n)
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	m = mi.(tuiModel)
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	if n := m.vp.TotalLineCount(); n < 2 {
		t.Fatalf("expected wrapped content, got %d lines", n)
	}
}

func TestScrollToggle(t *testing.T) {
	m := newTUIModel("sim", 60)
	m.vp.Height = 1
	m.vp.Width = 20
	mi, _ := m.Update(logMsg{line: "l1"})
	m = mi.(tuiModel)
	mi, _ = m.Update(logMsg{line: "l2"})
	m = mi.(tuiModel)
	if m.vp.YOffset != 1 {
		t.Fatalf("expected YOffset 1, got %d", m.vp.YOffset)
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = mi.(tuiModel)
	if m.autoscroll {
		t.Fatalf("autoscroll should be off")
	}
	mi, _ = m.Update(logMsg{line: "l3"})
	m = mi.(tuiModel)
	if m.vp.YOffset != 1 {
		t.Fatalf("expected YOffset unchanged, got %d", m.vp.YOffset)
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = mi.(tuiModel)
	if m.vp.YOffset != 0 {
		t.Fatalf("expected YOffset 0 after scrolling up, got %d", m.vp.YOffset)
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = mi.(tuiModel)
	if want := len(m.logs) - m.vp.Height; m.vp.YOffset != want {
		t.Fatalf("expected YOffset %d, got %d", want, m.vp.YOffset)
	}
}
