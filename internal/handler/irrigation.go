package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"timesheet-bot/internal/models"
	"timesheet-bot/internal/repository"
)

func (h *Handler) listIrrigations(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if _, ok := h.requireUser(chatID); !ok {
		return
	}

	items, err := h.irrigationService.List()
	if err != nil {
		h.send(chatID, "❌ Error al obtener los riegos: "+err.Error())
		return
	}
	if len(items) == 0 {
		h.send(chatID, "📭 No hay riegos registrados.")
		return
	}

	lines := []string{"💧 Riegos:", ""}
	for _, item := range items {
		lines = append(lines, formatIrrigation(item))
	}
	h.sendLong(chatID, strings.Join(lines, "\n"))
}

func formatIrrigation(item models.Irrigation) string {
	line := fmt.Sprintf("#%d · %s · %s", item.ID, item.Date, item.Lot)
	if item.Note != "" {
		line += " · " + item.Note
	}
	return line
}

// addIrrigation handles "/addriego <lote> <fecha> [nota...]".
func (h *Handler) addIrrigation(message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	if _, ok := h.requireAdmin(chatID); !ok {
		return
	}

	fields := strings.Fields(args)
	if len(fields) < 2 {
		h.send(chatID, "❌ Formato: /addriego lote fecha [nota]\n    Ejemplo: /addriego L4 10/02/2024 goteo")
		return
	}

	date, err := parseDate(fields[1], h.workflow.Today())
	if err != nil {
		h.send(chatID, "❌ "+err.Error())
		return
	}

	item, err := h.irrigationService.Create(fields[0], date.Format(models.DateLayout), strings.Join(fields[2:], " "))
	if err != nil {
		h.send(chatID, "❌ Error al registrar el riego: "+err.Error())
		return
	}
	h.send(chatID, "✅ Riego registrado: "+formatIrrigation(*item))
}

func (h *Handler) deleteIrrigation(message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	if _, ok := h.requireAdmin(chatID); !ok {
		return
	}

	id, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(args), "#"), 10, 64)
	if err != nil {
		h.send(chatID, "❌ Indique el id del riego: /delriego 3")
		return
	}

	err = h.irrigationService.Delete(uint(id))
	if errors.Is(err, repository.ErrIrrigationNotFound) {
		h.send(chatID, "❌ No existe un riego con ese id.")
		return
	}
	if err != nil {
		h.send(chatID, "❌ Error al eliminar el riego: "+err.Error())
		return
	}
	h.send(chatID, fmt.Sprintf("✅ Riego #%d eliminado.", id))
}
