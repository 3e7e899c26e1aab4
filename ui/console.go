package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/anancus/domain"
	"github.com/deemkeen/anancus/ui/common"
	"github.com/deemkeen/anancus/ui/compose"
	"github.com/deemkeen/anancus/ui/follow"
	"github.com/deemkeen/anancus/ui/followers"
	"github.com/deemkeen/anancus/ui/queue"
	"github.com/deemkeen/anancus/ui/timeline"
)

var (
	modelStyle = lipgloss.NewStyle().
			Align(lipgloss.Top, lipgloss.Top).
			BorderStyle(lipgloss.HiddenBorder()).MarginLeft(1)
	focusedModelStyle = lipgloss.NewStyle().
				Align(lipgloss.Top, lipgloss.Top).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color(common.COLOR_LIGHTBLUE)).MarginLeft(1)
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_MAGENTA)).
			Bold(true).
			Padding(0, 2)
)

// MainModel is the root of the operator console served over SSH. The
// compose pane stays on the left, tab cycles the right pane between
// timeline, followers and the delivery queue.
type MainModel struct {
	width          int
	height         int
	account        domain.Account
	state          common.SessionState
	composeModel   compose.Model
	timelineModel  timeline.Model
	followersModel followers.Model
	followModel    follow.Model
	queueModel     queue.Model
}

func NewModel(acc domain.Account, width int, height int) MainModel {
	width = common.DefaultWindowWidth(width)
	height = common.DefaultWindowHeight(height)

	m := MainModel{state: common.ComposeView}
	m.composeModel = compose.InitialModel(width/3, acc.Id)
	m.timelineModel = timeline.InitialModel(width, height)
	m.followersModel = followers.InitialModel(acc.Id, width, height)
	m.followModel = follow.InitialModel(acc.Id)
	m.queueModel = queue.InitialModel(width, height)
	m.account = acc
	m.width = width
	m.height = height
	return m
}

func (m MainModel) Init() tea.Cmd {
	return tea.Batch(
		m.composeModel.Init(),
		m.timelineModel.Init(),
		m.followersModel.Init(),
		m.followModel.Init(),
		m.queueModel.Init(),
	)
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case common.SessionState:
		switch msg {
		case common.NoteSaved:
			// A note was stored, refresh the timeline
			m.timelineModel = timeline.InitialModel(m.width, m.height)
			return m, m.timelineModel.Init()
		default:
			m.state = msg
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "tab":
			switch m.state {
			case common.ComposeView:
				m.state = common.TimelineView
			case common.TimelineView:
				m.state = common.FollowersView
			case common.FollowersView:
				m.state = common.FollowView
			case common.FollowView:
				m.state = common.QueueView
			case common.QueueView:
				m.state = common.ComposeView
			}
			return m, nil
		case "shift+tab":
			switch m.state {
			case common.ComposeView:
				m.state = common.QueueView
			case common.TimelineView:
				m.state = common.ComposeView
			case common.FollowersView:
				m.state = common.TimelineView
			case common.FollowView:
				m.state = common.FollowersView
			case common.QueueView:
				m.state = common.FollowView
			}
			return m, nil
		}
	}

	// Data messages reach every view so loads finish regardless of
	// which pane has focus. Keyboard input goes only to the active one.
	if _, isKeyMsg := msg.(tea.KeyMsg); !isKeyMsg {
		m.timelineModel, cmd = m.timelineModel.Update(msg)
		cmds = append(cmds, cmd)
		m.followersModel, cmd = m.followersModel.Update(msg)
		cmds = append(cmds, cmd)
		m.followModel, cmd = m.followModel.Update(msg)
		cmds = append(cmds, cmd)
		m.queueModel, cmd = m.queueModel.Update(msg)
		cmds = append(cmds, cmd)
		m.composeModel, cmd = m.composeModel.Update(msg)
		cmds = append(cmds, cmd)
	} else {
		switch m.state {
		case common.ComposeView:
			m.composeModel, cmd = m.composeModel.Update(msg)
		case common.TimelineView:
			m.timelineModel, cmd = m.timelineModel.Update(msg)
		case common.FollowersView:
			m.followersModel, cmd = m.followersModel.Update(msg)
		case common.FollowView:
			m.followModel, cmd = m.followModel.Update(msg)
		case common.QueueView:
			m.queueModel, cmd = m.queueModel.Update(msg)
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m MainModel) View() string {
	availableHeight := m.height - 8
	leftPanelWidth := m.width / 3
	rightPanelWidth := m.width - leftPanelWidth - 6

	leftPane := lipgloss.NewStyle().
		MaxHeight(availableHeight).
		Height(availableHeight).
		Width(leftPanelWidth).
		MaxWidth(leftPanelWidth).
		Render(m.composeModel.View())

	rightStyle := lipgloss.NewStyle().
		MaxHeight(availableHeight).
		Height(availableHeight).
		Width(rightPanelWidth).
		MaxWidth(rightPanelWidth).
		Margin(1)

	var rightPane string
	switch m.state {
	case common.TimelineView:
		rightPane = rightStyle.Render(m.timelineModel.View())
	case common.FollowersView:
		rightPane = rightStyle.Render(m.followersModel.View())
	case common.FollowView:
		rightPane = rightStyle.Render(m.followModel.View())
	case common.QueueView:
		rightPane = rightStyle.Render(m.queueModel.View())
	default:
		rightPane = rightStyle.Render(m.timelineModel.View())
	}

	header := headerStyle.Render(fmt.Sprintf("anancus · @%s", m.account.Username))

	var body string
	if m.state == common.ComposeView {
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			focusedModelStyle.Render(leftPane),
			modelStyle.Render(rightPane))
	} else {
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			modelStyle.Render(leftPane),
			focusedModelStyle.Render(rightPane))
	}

	help := common.HelpStyle.Render("tab: switch pane • ctrl+c: quit")

	return header + "\n" + body + "\n" + help
}
