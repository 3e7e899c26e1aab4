package follow

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/anancus/db"
	"github.com/deemkeen/anancus/federation"
	"github.com/deemkeen/anancus/ui/common"
	"github.com/deemkeen/anancus/util"
	"github.com/deemkeen/anancus/web"
	"github.com/google/uuid"
	"log"
)

type Model struct {
	TextInput textinput.Model
	AccountId uuid.UUID
	Status    string
	Error     string
}

func InitialModel(accountId uuid.UUID) Model {
	ti := textinput.New()
	ti.Placeholder = "user@mastodon.social"
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 50

	return Model{
		TextInput: ti,
		AccountId: accountId,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

type followResultMsg struct {
	handle string
	err    error
}

type moveResultMsg struct {
	target string
	err    error
}

func followCmd(accountId uuid.UUID, username, host string) tea.Cmd {
	return func() tea.Msg {
		handle := username + "@" + host
		if err := followRemoteUser(accountId, username, host); err != nil {
			log.Printf("Follow failed: %v", err)
			return followResultMsg{handle: handle, err: err}
		}
		return followResultMsg{handle: handle}
	}
}

type unfollowResultMsg struct {
	handle string
	err    error
}

func unfollowCmd(accountId uuid.UUID, username, host string) tea.Cmd {
	return func() tea.Msg {
		handle := username + "@" + host
		if err := unfollowRemoteUser(accountId, username, host); err != nil {
			log.Printf("Unfollow failed: %v", err)
			return unfollowResultMsg{handle: handle, err: err}
		}
		return unfollowResultMsg{handle: handle}
	}
}

func moveCmd(accountId uuid.UUID, username, host string) tea.Cmd {
	return func() tea.Msg {
		handle := username + "@" + host
		if err := moveAccountTo(accountId, username, host); err != nil {
			log.Printf("Move failed: %v", err)
			return moveResultMsg{target: handle, err: err}
		}
		return moveResultMsg{target: handle}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case followResultMsg:
		if msg.err != nil {
			m.Error = fmt.Sprintf("Failed: %v", msg.err)
			m.Status = ""
		} else {
			m.Status = fmt.Sprintf("✓ Sent follow request to %s", msg.handle)
			m.Error = ""
			m.TextInput.SetValue("")
		}
		return m, nil

	case unfollowResultMsg:
		if msg.err != nil {
			m.Error = fmt.Sprintf("Failed: %v", msg.err)
			m.Status = ""
		} else {
			m.Status = fmt.Sprintf("✓ Unfollowed %s", msg.handle)
			m.Error = ""
			m.TextInput.SetValue("")
		}
		return m, nil

	case moveResultMsg:
		if msg.err != nil {
			m.Error = fmt.Sprintf("Failed: %v", msg.err)
			m.Status = ""
		} else {
			m.Status = fmt.Sprintf("✓ Announced move to %s", msg.target)
			m.Error = ""
			m.TextInput.SetValue("")
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			input := strings.TrimSpace(m.TextInput.Value())
			isMove := false
			isUnfollow := false
			if rest, ok := strings.CutPrefix(input, "move "); ok {
				isMove = true
				input = strings.TrimSpace(rest)
			} else if rest, ok := strings.CutPrefix(input, "unfollow "); ok {
				isUnfollow = true
				input = strings.TrimSpace(rest)
			}
			input = strings.TrimPrefix(input, "@")
			if input == "" {
				m.Error = "Please enter a user@domain"
				return m, nil
			}

			parts := strings.Split(input, "@")
			if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
				m.Error = "Invalid format. Use: user@domain.com"
				return m, nil
			}

			if isMove {
				m.Status = fmt.Sprintf("Moving account to %s...", input)
				m.Error = ""
				return m, moveCmd(m.AccountId, parts[0], parts[1])
			}
			if isUnfollow {
				m.Status = fmt.Sprintf("Unfollowing %s...", input)
				m.Error = ""
				return m, unfollowCmd(m.AccountId, parts[0], parts[1])
			}

			m.Status = fmt.Sprintf("Following %s...", input)
			m.Error = ""
			return m, followCmd(m.AccountId, parts[0], parts[1])
		case "esc":
			m.TextInput.SetValue("")
			m.Status = ""
			m.Error = ""
			return m, nil
		}
	}

	m.TextInput, cmd = m.TextInput.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render("follow remote user"))
	s.WriteString("\n\n")
	s.WriteString("Enter ActivityPub address (e.g., user@mastodon.social):\n\n")
	s.WriteString(m.TextInput.View())
	s.WriteString("\n\n")

	if m.Status != "" {
		s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render(m.Status))
		s.WriteString("\n")
	}

	if m.Error != "" {
		s.WriteString(common.AlertStyle.Render(m.Error))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(common.HelpStyle.Render("enter: follow • \"unfollow user@domain\" • \"move user@domain\": migrate account • esc: clear"))

	return s.String()
}

// followRemoteUser resolves the handle and sends the Follow activity
func followRemoteUser(accountId uuid.UUID, username, host string) error {
	database := db.GetDB()
	err, localAccount := database.ReadAccById(accountId)
	if err != nil {
		return fmt.Errorf("failed to get local account: %w", err)
	}

	actorURI, err := web.ResolveWebFinger(username, host)
	if err != nil {
		return fmt.Errorf("webfinger resolution failed: %w", err)
	}

	conf, err := util.ReadConf()
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := federation.SendFollow(localAccount, actorURI, conf); err != nil {
		return fmt.Errorf("failed to send follow: %w", err)
	}

	log.Printf("Sent follow request from %s to %s@%s (%s)",
		localAccount.Username, username, host, actorURI)
	return nil
}

// unfollowRemoteUser resolves the handle and queues an Undo of the follow
func unfollowRemoteUser(accountId uuid.UUID, username, host string) error {
	database := db.GetDB()
	err, localAccount := database.ReadAccById(accountId)
	if err != nil {
		return fmt.Errorf("failed to get local account: %w", err)
	}

	actorURI, err := web.ResolveWebFinger(username, host)
	if err != nil {
		return fmt.Errorf("webfinger resolution failed: %w", err)
	}

	conf, err := util.ReadConf()
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := federation.SendUnfollow(localAccount, actorURI, conf); err != nil {
		return fmt.Errorf("failed to send unfollow: %w", err)
	}

	log.Printf("Queued unfollow from %s of %s@%s (%s)",
		localAccount.Username, username, host, actorURI)
	return nil
}

// moveAccountTo announces a migration of the local account to the given
// remote handle. The destination must already list this account in its
// alsoKnownAs for other servers to act on the Move.
func moveAccountTo(accountId uuid.UUID, username, host string) error {
	database := db.GetDB()
	err, localAccount := database.ReadAccById(accountId)
	if err != nil {
		return fmt.Errorf("failed to get local account: %w", err)
	}

	targetURI, err := web.ResolveWebFinger(username, host)
	if err != nil {
		return fmt.Errorf("webfinger resolution failed: %w", err)
	}

	conf, err := util.ReadConf()
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := federation.SendMove(localAccount, targetURI, conf); err != nil {
		return fmt.Errorf("failed to send move: %w", err)
	}

	log.Printf("Announced move of %s to %s", localAccount.Username, targetURI)
	return nil
}
