package compose

import (
	"fmt"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/anancus/db"
	"github.com/deemkeen/anancus/domain"
	"github.com/deemkeen/anancus/federation"
	"github.com/deemkeen/anancus/ui/common"
	"github.com/deemkeen/anancus/util"
	"github.com/google/uuid"
	"log"
)

const MaxLetters = 150

type Model struct {
	Textarea    textarea.Model
	userId      uuid.UUID
	lettersLeft int
	width       int
}

func InitialModel(contentWidth int, userId uuid.UUID) Model {
	ti := textarea.New()
	ti.Placeholder = "enter your message"
	ti.CharLimit = MaxLetters
	ti.ShowLineNumbers = false
	ti.SetWidth(30)

	return Model{
		Textarea:    ti,
		userId:      userId,
		lettersLeft: MaxLetters,
		width:       contentWidth,
	}
}

func createNoteCmd(note *domain.SaveNote) tea.Cmd {
	return func() tea.Msg {
		database := db.GetDB()

		if err := database.CreateNote(note.UserId, note.Message); err != nil {
			log.Println("Note could not be saved!")
			return common.NoteSaved
		}

		// Federate in the background, the console must not block on
		// remote instances.
		go func() {
			err, account := database.ReadAccById(note.UserId)
			if err != nil {
				log.Printf("Failed to get account for federation: %v", err)
				return
			}

			conf, err := util.ReadConf()
			if err != nil {
				log.Printf("Failed to read config for federation: %v", err)
				return
			}

			if !conf.Conf.WithAp {
				return
			}

			domainNote := &domain.Note{
				Id:         uuid.New(),
				CreatedBy:  account.Username,
				Message:    note.Message,
				Visibility: federation.VisibilityPublic,
			}

			if err := federation.SendCreate(domainNote, account, conf); err != nil {
				log.Printf("Failed to federate note: %v", err)
			} else {
				log.Printf("Note federated successfully for %s", account.Username)
			}
		}()

		return common.NoteSaved
	}
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlA:
			if m.Textarea.Focused() {
				m.Textarea.Blur()
			}
		case tea.KeyCtrlS:
			value := util.NormalizeInput(m.Textarea.Value())
			if value == "" {
				return m, nil
			}
			note := domain.SaveNote{
				UserId:  m.userId,
				Message: value,
			}
			m.Textarea.SetValue("")
			return m, createNoteCmd(&note)
		case tea.KeyCtrlC:
			return m, tea.Quit
		default:
			if !m.Textarea.Focused() {
				cmd = m.Textarea.Focus()
				cmds = append(cmds, cmd)
			}
		}
	}

	m.Textarea, cmd = m.Textarea.Update(msg)
	m.lettersLeft = m.CharCount()
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) CharCount() int {
	return m.Textarea.CharLimit - m.Textarea.Length() + m.Textarea.LineCount() - 1
}

func (m Model) View() string {
	styledTextarea := lipgloss.NewStyle().PaddingLeft(5).PaddingRight(5).Margin(2).Render(m.Textarea.View())
	charsLeft := common.HelpStyle.PaddingLeft(7).Render(fmt.Sprintf("characters left: %d\n\npost message: ctrl+s",
		m.lettersLeft))
	caption := common.CaptionStyle.PaddingLeft(7).Render("new note")

	return fmt.Sprintf("%s\n\n%s\n\n%s", caption, styledTextarea, charsLeft)
}
