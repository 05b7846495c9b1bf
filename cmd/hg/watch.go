package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jonashappcreative/hotelgame/internal/api/ws"
	cl "github.com/jonashappcreative/hotelgame/internal/cli"
	"github.com/jonashappcreative/hotelgame/internal/game"
)

type snapshotMsg ws.Message

type streamErrMsg struct{ err error }

type watchModel struct {
	code      string
	spinner   spinner.Model
	room      *game.RoomView
	err       error
	updatedAt time.Time
	logLines  int
}

func newWatchModel(code string) watchModel {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = activeStyle
	return watchModel{code: code, spinner: s, logLines: 6}
}

func (m watchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "+":
			m.logLines = min(m.logLines+2, 30)
		case "-":
			m.logLines = max(m.logLines-2, 0)
		}
		return m, nil
	case snapshotMsg:
		if msg.Type == "error" {
			m.err = fmt.Errorf("%s", msg.Error)
			return m, nil
		}
		m.room = msg.Room
		m.err = nil
		m.updatedAt = time.Now()
		return m, nil
	case streamErrMsg:
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	if m.room == nil {
		if m.err != nil {
			return danger.Sprintf("room %s: %v\n", m.code, m.err)
		}
		return fmt.Sprintf("%s connecting to room %s...\n", m.spinner.View(), m.code)
	}
	footer := mutedStyle.Render(fmt.Sprintf("live %s  updated %s  q quit  +/- log", m.spinner.View(), m.updatedAt.Format("15:04:05")))
	if m.err != nil {
		footer = danger.Sprint(m.err.Error())
	}
	return renderRoom(*m.room, m.logLines) + "\n\n" + footer + "\n"
}

// runWatch drives the TUI from the room's websocket stream.
func runWatch(parent context.Context, client *cl.Client, token, code string) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	p := tea.NewProgram(newWatchModel(code), tea.WithAltScreen(), tea.WithContext(ctx))
	msgs := make(chan ws.Message, 4)
	go func() {
		err := client.Watch(ctx, token, code, msgs)
		if err != nil {
			p.Send(streamErrMsg{err: err})
		}
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-msgs:
				p.Send(snapshotMsg(m))
			}
		}
	}()

	final, err := p.Run()
	if err != nil && ctx.Err() == nil {
		return err
	}
	if fm, ok := final.(watchModel); ok && fm.err != nil {
		return fm.err
	}
	return nil
}
