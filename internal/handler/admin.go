package handler

import (
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"timesheet-bot/internal/models"
	"timesheet-bot/internal/repository"
	"timesheet-bot/internal/service"
)

// showAllUsers lists every registered chat (admins only).
func (h *Handler) showAllUsers(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if _, ok := h.requireAdmin(chatID); !ok {
		return
	}

	allUsers, err := h.userService.FormatAllUsers()
	if err != nil {
		h.send(chatID, "❌ Error al obtener la lista de usuarios: "+err.Error())
		return
	}
	h.sendLong(chatID, allUsers)
}

func (h *Handler) setRole(message *tgbotapi.Message, args string, role models.Role) {
	chatID := message.Chat.ID

	targetID, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		h.send(chatID, "❌ Indique el ID de chat del usuario. Lo puede ver con /usuarios.")
		return
	}
	if targetID == chatID && role != models.RoleAdmin {
		h.send(chatID, "❌ No puede quitarse sus propios permisos.")
		return
	}

	err = h.userService.UpdateRole(chatID, targetID, role)
	switch {
	case errors.Is(err, service.ErrForbidden):
		h.send(chatID, "❌ Acceso denegado. Este comando es solo para administradores.")
		return
	case errors.Is(err, repository.ErrUserNotFound):
		h.send(chatID, "❌ El usuario no está registrado.")
		return
	case err != nil:
		h.send(chatID, "❌ Error al cambiar el rol: "+err.Error())
		return
	}

	if role == models.RoleAdmin {
		h.send(chatID, "✅ El usuario ahora es administrador.")
		h.send(targetID, "👑 Ahora es administrador del bot. Use /help para ver los comandos.")
		return
	}
	h.send(chatID, "✅ Se quitaron los permisos de administrador.")
}
