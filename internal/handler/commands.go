package handler

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"timesheet-bot/internal/models"
)

const helpText = `📋 Comandos disponibles:

📊 Planilla de horas:
/periodos - Elegir un período (16 al 15)
/matriz [período] - Horas por empleado del período
    Ejemplo: /matriz 2024-2
/xlsx [período] - Descargar la planilla en Excel
/pdf [período] - Descargar la planilla en PDF
/faltantes - Empleados sin carga del día de referencia
/refrescar - Volver a leer los datos del formulario

✏️ Cargas (administradores):
/celda empleado fecha - Crear o editar la carga de un día
    Ejemplo: /celda Juan Pérez 10/02/2024
/borrar id - Eliminar un registro
/cancelar - Abandonar la carga en curso

💧 Riegos:
/riegos - Listar riegos
/addriego lote fecha [nota] - Registrar un riego (administradores)
/delriego id - Eliminar un riego (administradores)

👑 Administración:
/usuarios - Listar usuarios
/promover chat_id - Dar permisos de administrador
/degradar chat_id - Quitar permisos de administrador
/alerta - Enviar ahora el aviso de cargas faltantes

🛠 Utilidades:
/start - Registrarse
/help - Mostrar este mensaje`

func (h *Handler) handleCommand(message *tgbotapi.Message) {
	command := message.Command()
	args := message.CommandArguments()

	switch command {
	case "start":
		h.sendStartMessage(message)
	case "help", "ayuda":
		h.send(message.Chat.ID, helpText)

	case "periodos":
		h.showPeriods(message)
	case "matriz":
		h.showMatrixCommand(message, args)
	case "xlsx":
		h.exportCommand(message, args, exportXLSX)
	case "pdf":
		h.exportCommand(message, args, exportPDF)
	case "faltantes":
		h.showMissing(message)
	case "refrescar":
		h.refresh(message)

	case "celda":
		h.openCell(message, args)
	case "borrar":
		h.deleteCommand(message, args)
	case "cancelar":
		h.send(message.Chat.ID, "ℹ️ No hay ninguna carga en curso.")

	case "riegos":
		h.listIrrigations(message)
	case "addriego":
		h.addIrrigation(message, args)
	case "delriego":
		h.deleteIrrigation(message, args)

	case "usuarios":
		h.showAllUsers(message)
	case "promover":
		h.setRole(message, args, models.RoleAdmin)
	case "degradar":
		h.setRole(message, args, models.RoleClient)
	case "alerta":
		h.broadcastMissing(message)

	default:
		h.send(message.Chat.ID, "❌ Comando desconocido. Use /help para ver la lista de comandos.")
	}
}

func (h *Handler) sendStartMessage(message *tgbotapi.Message) {
	chatID := message.Chat.ID

	var username, firstName, lastName string
	if message.From != nil {
		username = message.From.UserName
		firstName = message.From.FirstName
		lastName = message.From.LastName
	}

	user, created, err := h.userService.Register(chatID, username, firstName, lastName)
	if err != nil {
		h.send(chatID, "❌ Error de registro: "+err.Error())
		return
	}

	greeting := "👋 ¡Hola de nuevo, " + user.DisplayName() + "!"
	if created {
		greeting = "🎉 ¡Bienvenido, " + user.DisplayName() + "! Quedó registrado."
	}
	h.send(chatID, greeting+"\n\n"+helpText)
}
