package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"timesheet-bot/internal/attendance"
	"timesheet-bot/internal/models"
	"timesheet-bot/internal/service"
)

var dateFormats = []string{
	"02.01.2006",
	"02/01/2006",
	"02-01-2006",
	"2006-01-02",
	"02.01",
	"02/01",
	"02-01",
}

// parseDate accepts day-first dates. Without a year the most recent
// matching day not after today is used.
func parseDate(value string, today time.Time) (time.Time, error) {
	for _, format := range dateFormats {
		t, err := time.Parse(format, value)
		if err != nil {
			continue
		}
		if !strings.Contains(format, "2006") {
			t = time.Date(today.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			if t.After(models.Day(today)) {
				t = t.AddDate(-1, 0, 0)
			}
		}
		return models.Day(t), nil
	}

	return time.Time{}, fmt.Errorf("fecha inválida %q. Use DD/MM/AAAA o DD/MM", value)
}

// parseCellArgs splits "<employee ...> <date>"; the employee may contain spaces.
func parseCellArgs(args string, today time.Time) (string, time.Time, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return "", time.Time{}, errors.New("indique empleado y fecha, por ejemplo: /celda Juan Pérez 10/02/2024")
	}

	date, err := parseDate(fields[len(fields)-1], today)
	if err != nil {
		return "", time.Time{}, err
	}
	return strings.Join(fields[:len(fields)-1], " "), date, nil
}

// resolveEmployee maps a typed name to the spelling already used in the
// data. Unknown names are kept as typed.
func resolveEmployee(name string, rows []models.SubmissionRow) string {
	for _, row := range rows {
		if strings.EqualFold(row.Employee, name) {
			return row.Employee
		}
	}
	return name
}

func (h *Handler) openCell(message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	if _, ok := h.requireAdmin(chatID); !ok {
		return
	}
	if !h.ensureLoaded(chatID) {
		return
	}

	employee, date, err := parseCellArgs(args, h.workflow.Today())
	if err != nil {
		h.send(chatID, "❌ "+err.Error())
		return
	}

	snap, err := h.workflow.Snapshot()
	if err != nil {
		h.send(chatID, "❌ "+err.Error())
		return
	}
	h.activateCell(chatID, resolveEmployee(employee, snap.Rows), date)
}

func (h *Handler) activateCell(chatID int64, employee string, date time.Time) {
	form, err := h.workflow.ActivateCell(employee, date)
	if errors.Is(err, service.ErrRefreshRequired) {
		h.send(chatID, "⚠️ "+err.Error()+". Use /refrescar.")
		return
	}
	if err != nil {
		h.send(chatID, "❌ "+err.Error())
		return
	}

	if form.Mode == models.FormDisambiguate {
		h.showCandidates(chatID, form)
		return
	}
	h.startForm(chatID, form)
}

// showCandidates lists the rows of a duplicated cell with delete buttons.
func (h *Handler) showCandidates(chatID int64, form models.PendingForm) {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ %s tiene %d registros el %s.\nElimine los sobrantes hasta dejar uno para poder editarlo:\n",
		form.Employee, len(form.Candidates), form.Date.Format("02/01/2006"))

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(form.Candidates))
	for _, c := range form.Candidates {
		b.WriteString("\n" + describeRow(c))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Borrar #"+c.ID, "del:"+c.ID),
		))
	}

	h.sendWithKeyboard(chatID, b.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func describeRow(row models.SubmissionRow) string {
	text := fmt.Sprintf("#%s · %s · %s · %sh", row.ID, row.CostCenter, row.Task, attendance.FormatHours(row.Hours))
	if row.OvertimeHours.IsPositive() {
		text += fmt.Sprintf(" (+%sh extra)", attendance.FormatHours(row.OvertimeHours))
	}
	if row.Note != "" {
		text += " · " + row.Note
	}
	return text
}

func (h *Handler) deleteCommand(message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	if _, ok := h.requireAdmin(chatID); !ok {
		return
	}
	if !h.ensureLoaded(chatID) {
		return
	}

	id := strings.TrimSpace(args)
	if id == "" {
		h.send(chatID, "❌ Indique el id del registro: /borrar 123")
		return
	}
	h.confirmDelete(chatID, strings.TrimPrefix(id, "#"))
}

func (h *Handler) confirmDelete(chatID int64, id string) {
	if _, ok := h.requireAdmin(chatID); !ok {
		return
	}

	row, err := h.workflow.FindRow(id)
	if err != nil {
		h.send(chatID, "❌ "+err.Error())
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Sí, eliminar", "delok:"+row.ID),
			tgbotapi.NewInlineKeyboardButtonData("❌ No", "delno"),
		),
	)
	text := fmt.Sprintf("⚠️ ¿Eliminar este registro de %s del %s?\n%s\nEsta acción no se puede deshacer.",
		row.Employee, row.Date.Format("02/01/2006"), describeRow(row))
	h.sendWithKeyboard(chatID, text, keyboard)
}

func (h *Handler) deleteRecord(chatID int64, id string) {
	if _, ok := h.requireAdmin(chatID); !ok {
		return
	}

	row, err := h.workflow.FindRow(id)
	if err != nil {
		h.send(chatID, "❌ "+err.Error())
		return
	}

	if err := h.workflow.Delete(h.ctx, id); err != nil {
		h.send(chatID, "❌ No se pudo eliminar el registro: "+err.Error())
		return
	}
	h.send(chatID, "✅ Registro #"+id+" eliminado.")

	// keep reducing a duplicated cell until a single row is left
	form, err := h.workflow.ActivateCell(row.Employee, row.Date)
	if err == nil && form.Mode == models.FormDisambiguate {
		h.showCandidates(chatID, form)
	}
}
