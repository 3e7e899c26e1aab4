package queue

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/anancus/db"
	"github.com/deemkeen/anancus/domain"
	"github.com/deemkeen/anancus/ui/common"
	"log"
)

var (
	itemStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			MarginBottom(0)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	deadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_RED)).
			PaddingLeft(2)
)

// Model pages through the delivery queue, newest first. Dead entries are
// the unrecoverable ones a 4xx buried.
type Model struct {
	Items  []domain.DeliveryQueueItem
	Offset int
	Width  int
	Height int
}

func InitialModel(width, height int) Model {
	return Model{
		Items:  []domain.DeliveryQueueItem{},
		Offset: 0,
		Width:  width,
		Height: height,
	}
}

func (m Model) Init() tea.Cmd {
	return loadQueue()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case queueLoadedMsg:
		m.Items = msg.items
		m.Offset = 0
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.Offset > 0 {
				m.Offset--
			}
		case "down", "j":
			if len(m.Items) > 0 && m.Offset < len(m.Items)-1 {
				m.Offset++
			}
		case "r":
			return m, loadQueue()
		}
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("delivery queue (%d)", len(m.Items))))
	s.WriteString("\n\n")

	if len(m.Items) == 0 {
		s.WriteString(emptyStyle.Render("Queue is empty."))
		return s.String()
	}

	itemsPerPage := 10
	start := m.Offset
	end := start + itemsPerPage
	if end > len(m.Items) {
		end = len(m.Items)
	}

	for i := start; i < end; i++ {
		item := m.Items[i]
		line := fmt.Sprintf("%s  attempts=%d", item.InboxURI, item.Attempts)
		if item.LatestStatus != 0 {
			line += fmt.Sprintf("  status=%d", item.LatestStatus)
		}
		if item.LatestSentAt != nil {
			line += "  last=" + item.LatestSentAt.Format("15:04:05")
		}
		if item.Unrecoverable {
			s.WriteString(deadStyle.Render("✗ " + line))
		} else {
			s.WriteString(itemStyle.Render("• " + line))
		}
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(common.HelpStyle.Render("r: refresh • j/k: scroll"))
	return s.String()
}

type queueLoadedMsg struct {
	items []domain.DeliveryQueueItem
}

func loadQueue() tea.Cmd {
	return func() tea.Msg {
		database := db.GetDB()
		err, items := database.ReadRecentDeliveries(100)
		if err != nil {
			log.Printf("Failed to load delivery queue: %v", err)
			return queueLoadedMsg{items: []domain.DeliveryQueueItem{}}
		}
		if items == nil {
			return queueLoadedMsg{items: []domain.DeliveryQueueItem{}}
		}
		return queueLoadedMsg{items: *items}
	}
}
