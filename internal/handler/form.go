package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"timesheet-bot/internal/attendance"
	"timesheet-bot/internal/kobo"
	"timesheet-bot/internal/models"
	"timesheet-bot/internal/service"
)

const (
	stateCostCenter = "form_ceco"
	stateTask       = "form_tarea"
	stateNote       = "form_nota"
	stateHours      = "form_horas"
	stateOvertime   = "form_horas_extra"
	stateOnCall     = "form_guardia"
	stateConfirm    = "form_confirmar"
)

// formSession holds the values typed so far for one cell.
type formSession struct {
	form   models.PendingForm
	values models.SubmissionValues
}

func (h *Handler) startForm(chatID int64, form models.PendingForm) {
	values := form.Values
	if values.Date.IsZero() {
		values.Date = form.Date
	}
	h.setSession(chatID, &formSession{form: form, values: values})

	title := "📝 Nueva carga"
	if form.IsEdit() {
		title = "✏️ Edición del registro #" + form.PriorID + "\nEnvíe \"=\" para mantener el valor actual."
	}
	h.send(chatID, fmt.Sprintf("%s\n👤 %s · 📅 %s\nUse /cancelar para salir.",
		title, form.Employee, form.Date.Format("02/01/2006")))

	h.goTo(chatID, stateCostCenter)
}

func (h *Handler) cancelForm(chatID int64) {
	h.clearForm(chatID)
	h.send(chatID, "❌ Carga cancelada.")
}

func (h *Handler) goTo(chatID int64, state string) {
	h.setState(chatID, state)
	h.prompt(chatID, state)
}

func (h *Handler) prompt(chatID int64, state string) {
	session := h.session(chatID)
	if session == nil {
		return
	}
	edit := session.form.IsEdit()
	v := session.values

	switch state {
	case stateCostCenter:
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(h.catalog.CostCenters))
		for i, cc := range h.catalog.CostCenters {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(cc.Code, "form:ceco:"+strconv.Itoa(i)))
		}
		h.sendWithKeyboard(chatID, "🏷 Centro de costo"+current(edit, v.CostCenter)+":", grid(buttons, 3, edit))
	case stateTask:
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(h.catalog.Tasks))
		for i, task := range h.catalog.Tasks {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(task, "form:tarea:"+strconv.Itoa(i)))
		}
		h.sendWithKeyboard(chatID, "🔧 Tarea"+current(edit, v.Task)+". Elija una o escríbala:", grid(buttons, 2, edit))
	case stateNote:
		h.send(chatID, "🗒 Nota"+current(edit, v.Note)+". Es obligatoria para \""+v.Task+"\":")
	case stateHours:
		hours := ""
		if v.Hours.Valid {
			hours = attendance.FormatHours(v.Hours.Decimal)
		}
		h.send(chatID, "⏱ Horas trabajadas"+current(edit, hours)+" (por ejemplo 8 o 7,5):")
	case stateOvertime:
		h.send(chatID, "➕ Horas extra"+current(edit, attendance.FormatHours(v.OvertimeHours))+" (0 si no hubo):")
	case stateOnCall:
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(h.catalog.OnCallOptions))
		for i, option := range h.catalog.OnCallOptions {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(option, "form:guardia:"+strconv.Itoa(i)))
		}
		h.sendWithKeyboard(chatID, "📟 ¿Estuvo de guardia?", grid(buttons, 2, false))
	case stateConfirm:
		keyboard := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Enviar", "form:send"),
				tgbotapi.NewInlineKeyboardButtonData("❌ Cancelar", "form:cancel"),
			),
		)
		h.sendWithKeyboard(chatID, h.formSummary(session)+"\n\n¿Enviar?", keyboard)
	}
}

func current(edit bool, value string) string {
	if !edit || value == "" {
		return ""
	}
	return " (actual: " + value + ")"
}

// grid lays buttons out in rows of n, with a keep button for edits.
func grid(buttons []tgbotapi.InlineKeyboardButton, n int, keep bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for len(buttons) > 0 {
		end := min(n, len(buttons))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons[:end]...))
		buttons = buttons[end:]
	}
	if keep {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("↩️ Mantener", "form:keep"),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// nextState returns the step after state. The note is only asked for
// tasks that require one.
func (h *Handler) nextState(state string, session *formSession) string {
	switch state {
	case stateCostCenter:
		return stateTask
	case stateTask:
		if h.catalog.NeedsNote(session.values.Task) {
			return stateNote
		}
		return stateHours
	case stateNote:
		return stateHours
	case stateHours:
		return stateOvertime
	case stateOvertime:
		return stateOnCall
	default:
		return stateConfirm
	}
}

func (h *Handler) advance(chatID int64, state string) {
	session := h.session(chatID)
	if session == nil {
		return
	}
	h.goTo(chatID, h.nextState(state, session))
}

func (h *Handler) handleFormCallback(chatID int64, data string) {
	session := h.session(chatID)
	state, _ := h.state(chatID)
	if session == nil || state == "" {
		h.send(chatID, "ℹ️ La carga ya no está activa. Use /celda para empezar de nuevo.")
		return
	}

	kind, arg, _ := strings.Cut(data, ":")
	switch {
	case kind == "cancel":
		h.cancelForm(chatID)
	case kind == "send" && state == stateConfirm:
		h.submitForm(chatID)
	case kind == "keep":
		h.keepValue(chatID, state)
	case kind == "ceco" && state == stateCostCenter:
		i, err := strconv.Atoi(arg)
		if err != nil || i < 0 || i >= len(h.catalog.CostCenters) {
			h.prompt(chatID, state)
			return
		}
		session.values.CostCenter = h.catalog.CostCenters[i].Code
		h.advance(chatID, state)
	case kind == "tarea" && state == stateTask:
		i, err := strconv.Atoi(arg)
		if err != nil || i < 0 || i >= len(h.catalog.Tasks) {
			h.prompt(chatID, state)
			return
		}
		session.values.Task = h.catalog.Tasks[i]
		h.advance(chatID, state)
	case kind == "guardia" && state == stateOnCall:
		i, err := strconv.Atoi(arg)
		if err != nil || i < 0 || i >= len(h.catalog.OnCallOptions) {
			h.prompt(chatID, state)
			return
		}
		session.values.OnCall = models.ParseOnCall(h.catalog.OnCallOptions[i])
		h.advance(chatID, state)
	default:
		// a button from an earlier step
		h.prompt(chatID, state)
	}
}

func (h *Handler) handleFormState(message *tgbotapi.Message, state string) {
	chatID := message.Chat.ID
	session := h.session(chatID)
	if session == nil {
		h.clearForm(chatID)
		h.handleMessage(message)
		return
	}

	text := strings.TrimSpace(message.Text)
	if text == "=" {
		h.keepValue(chatID, state)
		return
	}

	switch state {
	case stateCostCenter:
		if text == "" {
			h.prompt(chatID, state)
			return
		}
		session.values.CostCenter = h.costCenterCode(text)
	case stateTask:
		if text == "" {
			h.prompt(chatID, state)
			return
		}
		session.values.Task = text
	case stateNote:
		if text == "-" {
			text = ""
		}
		if text == "" && h.catalog.NeedsNote(session.values.Task) {
			h.send(chatID, "❌ La nota es obligatoria para esta tarea.")
			return
		}
		session.values.Note = text
	case stateHours:
		hours, err := parseHours(text)
		if err != nil {
			h.send(chatID, "❌ "+err.Error())
			return
		}
		session.values.Hours = decimal.NewNullDecimal(hours)
	case stateOvertime:
		hours, err := parseHours(text)
		if err != nil {
			h.send(chatID, "❌ "+err.Error())
			return
		}
		session.values.OvertimeHours = hours
	case stateOnCall:
		onCall, ok := h.onCallValue(text)
		if !ok {
			h.prompt(chatID, state)
			return
		}
		session.values.OnCall = onCall
	case stateConfirm:
		switch strings.ToLower(text) {
		case "si", "sí", "enviar":
			h.submitForm(chatID)
		case "no", "cancelar":
			h.cancelForm(chatID)
		default:
			h.prompt(chatID, state)
		}
		return
	}

	h.advance(chatID, state)
}

// keepValue moves on without changing the field, as long as it already
// holds a usable value.
func (h *Handler) keepValue(chatID int64, state string) {
	session := h.session(chatID)
	if session == nil {
		return
	}

	v := session.values
	missing := false
	switch state {
	case stateCostCenter:
		missing = strings.TrimSpace(v.CostCenter) == ""
	case stateTask:
		missing = strings.TrimSpace(v.Task) == ""
	case stateNote:
		missing = strings.TrimSpace(v.Note) == "" && h.catalog.NeedsNote(v.Task)
	case stateHours:
		missing = !v.Hours.Valid
	case stateConfirm:
		h.prompt(chatID, state)
		return
	}
	if missing {
		h.send(chatID, "❌ Este campo no tiene un valor actual, ingrese uno.")
		h.prompt(chatID, state)
		return
	}
	h.advance(chatID, state)
}

// costCenterCode maps a typed code or label to its catalog code.
func (h *Handler) costCenterCode(text string) string {
	for _, cc := range h.catalog.CostCenters {
		if strings.EqualFold(cc.Code, text) || strings.EqualFold(cc.Label, text) {
			return cc.Code
		}
	}
	return text
}

// onCallValue reads a typed on-call answer, either one of the catalog
// options or a plain si/no.
func (h *Handler) onCallValue(text string) (bool, bool) {
	for _, option := range h.catalog.OnCallOptions {
		if strings.EqualFold(option, text) {
			return models.ParseOnCall(option), true
		}
	}
	switch strings.ToLower(text) {
	case "si", "sí":
		return true, true
	case "no":
		return false, true
	}
	return false, false
}

func (h *Handler) submitForm(chatID int64) {
	session := h.clearForm(chatID)
	if session == nil {
		return
	}

	result, err := h.workflow.Submit(h.ctx, session.form, session.values)
	h.send(chatID, submitMessage(session.form, result, err))
}

// parseHours reads a non-negative decimal; a comma separator is accepted.
func parseHours(text string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(text), ",", "."))
	if err != nil {
		return decimal.Zero, fmt.Errorf("cantidad de horas inválida %q", text)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("las horas no pueden ser negativas")
	}
	return d, nil
}

func (h *Handler) formSummary(session *formSession) string {
	v := session.values
	hours := "-"
	if v.Hours.Valid {
		hours = attendance.FormatHours(v.Hours.Decimal)
	}
	onCall := "No"
	if v.OnCall {
		onCall = "Sí"
	}

	costCenter := v.CostCenter
	if cc, ok := h.catalog.CostCenter(v.CostCenter); ok && cc.Label != "" {
		costCenter += " (" + cc.Label + ")"
	}

	lines := []string{
		"📋 Resumen",
		"👤 Empleado: " + session.form.Employee,
		"📅 Fecha: " + v.Date.Format("02/01/2006"),
		"🏷 Centro de costo: " + costCenter,
		"🔧 Tarea: " + v.Task,
	}
	if v.Note != "" {
		lines = append(lines, "🗒 Nota: "+v.Note)
	}
	lines = append(lines,
		"⏱ Horas: "+hours,
		"➕ Horas extra: "+attendance.FormatHours(v.OvertimeHours),
		"📟 Guardia: "+onCall,
	)
	return strings.Join(lines, "\n")
}

// submitMessage describes the outcome of a write to the user. Failures
// from the service are shown verbatim.
func submitMessage(form models.PendingForm, result kobo.SubmitResult, err error) string {
	switch {
	case errors.Is(err, kobo.ErrValidation):
		return "❌ No se envió, faltan datos: " + err.Error()
	case errors.Is(err, service.ErrRefreshRequired):
		return "⚠️ " + err.Error() + ". Use /refrescar y vuelva a abrir la celda."
	case errors.Is(err, service.ErrAmbiguousCell):
		return "⚠️ " + err.Error() + ". Elimine los duplicados primero."
	case err != nil:
		return "❌ Error al enviar: " + err.Error()
	}

	switch result.Outcome {
	case kobo.OutcomeSuccess:
		if form.IsEdit() {
			return "✅ Registro actualizado."
		}
		return "✅ Registro guardado."
	case kobo.OutcomeConflict:
		return "⚠️ El registro fue modificado por otra persona. Los datos se recargaron, abra la celda de nuevo con /celda."
	default:
		return fmt.Sprintf("❌ El servidor rechazó el envío (%d):\n%s", result.StatusCode, result.Message)
	}
}
