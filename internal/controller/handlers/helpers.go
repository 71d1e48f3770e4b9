package handlers

import (
	"fmt"
	"strings"

	"github.com/Freeeeeet/trial_scheduler/internal/casestate"
	"github.com/Freeeeeet/trial_scheduler/internal/model"
)

// StatusDisplay содержит emoji и текст для отображения статуса
type StatusDisplay struct {
	Emoji string
	Text  string
}

var statusDisplays = map[casestate.Status]StatusDisplay{
	casestate.StatusPending:       {"⏳", "Awaiting admin review"},
	casestate.StatusRejected:      {"❌", "Rejected"},
	casestate.StatusWarRoom:       {"🗂", "War room, seating jurors"},
	casestate.StatusAwaitingTrial: {"📅", "Scheduled"},
	casestate.StatusJoinTrial:     {"🚪", "Room is open"},
	casestate.StatusInTrial:       {"🔴", "In trial"},
	casestate.StatusViewDetails:   {"📄", "Trial ended, results available"},
	casestate.StatusCompleted:     {"✅", "Completed"},
	casestate.StatusCancelled:     {"🚫", "Cancelled"},
}

// GetStatusDisplay возвращает emoji и текст для статуса дела
func GetStatusDisplay(status casestate.Status) StatusDisplay {
	if d, ok := statusDisplays[status]; ok {
		return d
	}
	return StatusDisplay{Emoji: "❔", Text: string(status)}
}

// FormatCase форматирует дело для отображения
func FormatCase(c *model.Case) string {
	display := GetStatusDisplay(casestate.Of(c))

	text := fmt.Sprintf(
		"%s #%d %s\n"+
			"📊 %s\n"+
			"📅 %s",
		display.Emoji, c.ID, c.Title,
		display.Text,
		c.Slot(),
	)
	if c.RescheduleRequired {
		text += "\n⚠️ Slot conflict, pick a new slot"
	}
	return text
}

func FormatNotification(n *model.Notification) string {
	text := "🔔 " + n.Title
	if n.Message != "" {
		text += "\n" + n.Message
	}
	if n.CaseID != nil {
		text += fmt.Sprintf("\nCase #%d", *n.CaseID)
	}
	return text
}

// StartPayload extracts the deep-link argument of "/start <code>".
func StartPayload(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "/start") {
		return ""
	}
	return fields[1]
}

func displayName(u *model.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return fmt.Sprintf("%s #%d", u.UserType, u.ID)
}
