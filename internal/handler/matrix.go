package handler

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"timesheet-bot/internal/attendance"
	"timesheet-bot/internal/export"
	"timesheet-bot/internal/models"
	"timesheet-bot/internal/service"
)

const (
	maxMessageLength = 4000
	maxPeriodButtons = 12
)

type exportKind struct {
	ext    string
	render func(*attendance.Matrix, []attendance.CellStyleRule) ([]byte, error)
}

var (
	exportXLSX = exportKind{ext: "xlsx", render: export.XLSX}
	exportPDF  = exportKind{ext: "pdf", render: export.PDF}
)

func (h *Handler) showPeriods(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if _, ok := h.requireUser(chatID); !ok {
		return
	}
	if !h.ensureLoaded(chatID) {
		return
	}

	periods, err := h.workflow.Periods()
	if err != nil {
		h.send(chatID, "❌ "+err.Error())
		return
	}

	h.sendWithKeyboard(chatID, "📅 Elija un período:", periodKeyboard(periods))
}

// periodKeyboard offers the most recent periods, one per row.
func periodKeyboard(periods []models.Period) tgbotapi.InlineKeyboardMarkup {
	if len(periods) > maxPeriodButtons {
		periods = periods[:maxPeriodButtons]
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(periods))
	for _, p := range periods {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(p.Label, "period:"+p.Key),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (h *Handler) showMatrixCommand(message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	if _, ok := h.requireUser(chatID); !ok {
		return
	}
	h.showMatrix(chatID, strings.TrimSpace(args))
}

func (h *Handler) showMatrix(chatID int64, key string) {
	view, ok := h.matrixFor(chatID, key)
	if !ok {
		return
	}

	h.sendLong(chatID, renderMatrix(view.Matrix))

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📥 Excel", "xlsx:"+view.Matrix.Period.Key),
			tgbotapi.NewInlineKeyboardButtonData("📄 PDF", "pdf:"+view.Matrix.Period.Key),
		),
	)
	h.sendWithKeyboard(chatID, "Descargar la planilla:", keyboard)
}

// matrixFor resolves the chat's period and builds its matrix.
func (h *Handler) matrixFor(chatID int64, key string) (service.MatrixView, bool) {
	if !h.ensureLoaded(chatID) {
		return service.MatrixView{}, false
	}

	period, err := h.periodService.Select(chatID, key)
	if err != nil {
		h.send(chatID, "❌ Período inválido: "+err.Error())
		return service.MatrixView{}, false
	}

	view, err := h.workflow.Matrix(period)
	if err != nil {
		h.send(chatID, "❌ "+err.Error())
		return service.MatrixView{}, false
	}
	return view, true
}

func (h *Handler) exportCommand(message *tgbotapi.Message, args string, kind exportKind) {
	chatID := message.Chat.ID
	if _, ok := h.requireUser(chatID); !ok {
		return
	}
	h.sendExport(chatID, strings.TrimSpace(args), kind)
}

func (h *Handler) sendExport(chatID int64, key string, kind exportKind) {
	view, ok := h.matrixFor(chatID, key)
	if !ok {
		return
	}

	data, err := kind.render(view.Matrix, view.Styles)
	if errors.Is(err, export.ErrEmptyMatrix) {
		h.send(chatID, "ℹ️ No hay registros en "+view.Matrix.Period.Label+".")
		return
	}
	if err != nil {
		h.send(chatID, "❌ Error al generar el archivo: "+err.Error())
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  export.FileName(view.Matrix, kind.ext),
		Bytes: data,
	})
	doc.Caption = view.Matrix.Title
	if _, err := h.bot.Send(doc); err != nil {
		h.send(chatID, "❌ No se pudo enviar el archivo: "+err.Error())
	}
}

func (h *Handler) showMissing(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if _, ok := h.requireUser(chatID); !ok {
		return
	}

	report, err := h.alertJob.Report(h.ctx)
	if err != nil {
		h.send(chatID, "❌ No se pudieron cargar los datos: "+err.Error())
		return
	}
	h.send(chatID, service.FormatMissingReport(report))
}

func (h *Handler) broadcastMissing(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if _, ok := h.requireAdmin(chatID); !ok {
		return
	}

	report, err := h.alertJob.RunNow(h.ctx)
	if err != nil {
		h.send(chatID, "❌ Error al enviar el aviso: "+err.Error())
		return
	}
	h.send(chatID, fmt.Sprintf("📣 Aviso enviado a los administradores (%d faltantes).", len(report.Employees)))
}

func (h *Handler) refresh(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if _, ok := h.requireUser(chatID); !ok {
		return
	}

	snap, err := h.workflow.Refresh(h.ctx)
	if errors.Is(err, service.ErrSuperseded) {
		h.send(chatID, "🔄 Ya hay una actualización en curso.")
		return
	}
	if err != nil {
		h.send(chatID, "❌ Error al actualizar: "+err.Error())
		return
	}
	h.send(chatID, fmt.Sprintf("🔄 Datos actualizados: %d registros, versión del formulario %s.", len(snap.Rows), snap.Version))
}

// renderMatrix lists the non-empty cells of every employee.
func renderMatrix(m *attendance.Matrix) string {
	var b strings.Builder
	b.WriteString("📊 " + m.Title + "\n")

	if m.IsEmpty() {
		b.WriteString("\nNo hay registros en este período.")
		return b.String()
	}

	for _, row := range m.Rows {
		b.WriteString("\n👤 " + row.Employee + "\n")

		var cells []string
		for _, c := range row.Cells {
			if c.Text == "" {
				continue
			}
			cells = append(cells, c.Date.Format("02/01")+" "+c.Text)
		}
		if len(cells) == 0 {
			b.WriteString("   sin cargas\n")
			continue
		}
		b.WriteString("   " + strings.Join(cells, " · ") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// splitMessage cuts text into chunks of at most limit bytes, breaking on
// newlines where possible.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if current.Len() > 0 && current.Len()+1+len(line) > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
