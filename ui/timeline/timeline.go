package timeline

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/anancus/db"
	"github.com/deemkeen/anancus/domain"
	"github.com/deemkeen/anancus/ui/common"
	"log"
)

var (
	timeStyle = lipgloss.NewStyle().
			Align(lipgloss.Left).
			Foreground(lipgloss.Color(common.COLOR_GREY))

	authorStyle = lipgloss.NewStyle().
			Align(lipgloss.Left).
			Foreground(lipgloss.Color(common.COLOR_LIGHTBLUE)).
			Bold(true)

	contentStyle = lipgloss.NewStyle().
			Align(lipgloss.Left)

	pollStyle = lipgloss.NewStyle().
			Align(lipgloss.Left).
			Foreground(lipgloss.Color(common.COLOR_MAGENTA))

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)
)

type Model struct {
	Posts  []domain.Note
	Offset int // Pagination offset
	Width  int
	Height int
}

func InitialModel(width, height int) Model {
	return Model{
		Posts:  []domain.Note{},
		Offset: 0,
		Width:  width,
		Height: height,
	}
}

func (m Model) Init() tea.Cmd {
	return loadPosts()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case postsLoadedMsg:
		m.Posts = msg.posts
		m.Offset = 0 // Reset offset on reload
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.Offset > 0 {
				m.Offset--
			}
		case "down", "j":
			if len(m.Posts) > 0 && m.Offset < len(m.Posts)-1 {
				m.Offset++
			}
		case "r":
			return m, loadPosts()
		}
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("timeline (%d posts)", len(m.Posts))))
	s.WriteString("\n\n")

	if len(m.Posts) == 0 {
		s.WriteString(emptyStyle.Render("No posts yet."))
		return s.String()
	}

	itemsPerPage := 5
	start := m.Offset
	end := start + itemsPerPage
	if end > len(m.Posts) {
		end = len(m.Posts)
	}

	for i := start; i < end; i++ {
		post := m.Posts[i]

		timeStr := timeStyle.Render(formatTime(post.CreatedAt))
		if post.EditedAt != nil {
			timeStr += timeStyle.Render(" (edited)")
		}
		authorStr := authorStyle.Render("@" + post.CreatedBy)
		contentStr := contentStyle.Render(truncate(post.Message, 150))

		parts := []string{timeStr, authorStr, contentStr}
		if post.HasPoll() {
			parts = append(parts, pollStyle.Render(renderPoll(&post)))
		}

		s.WriteString(lipgloss.JoinVertical(lipgloss.Left, parts...))
		s.WriteString("\n\n")
	}

	s.WriteString(common.HelpStyle.Render("r: refresh • j/k: scroll"))
	return s.String()
}

func renderPoll(note *domain.Note) string {
	var b strings.Builder
	for i, choice := range note.PollChoices {
		votes := 0
		if i < len(note.PollVotes) {
			votes = note.PollVotes[i]
		}
		b.WriteString(fmt.Sprintf("  %s: %d\n", choice, votes))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return t.Format("Jan 2 15:04")
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// postsLoadedMsg is sent when posts are loaded
type postsLoadedMsg struct {
	posts []domain.Note
}

func loadPosts() tea.Cmd {
	return func() tea.Msg {
		database := db.GetDB()
		err, notes := database.ReadAllNotes()
		if err != nil {
			log.Printf("Failed to load timeline: %v", err)
			return postsLoadedMsg{posts: []domain.Note{}}
		}
		if notes == nil {
			return postsLoadedMsg{posts: []domain.Note{}}
		}
		return postsLoadedMsg{posts: *notes}
	}
}
