package handler

import (
	"context"
	"errors"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"timesheet-bot/internal/catalog"
	"timesheet-bot/internal/config"
	"timesheet-bot/internal/models"
	"timesheet-bot/internal/repository"
	"timesheet-bot/internal/service"
	"timesheet-bot/pkg/telegram"
)

// botAPI is the part of *tgbotapi.BotAPI the handler talks to.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// chatQueueSize bounds the updates waiting behind a busy chat.
const chatQueueSize = 64

type Handler struct {
	bot               botAPI
	userService       *service.UserService
	workflow          *service.Workflow
	periodService     *service.PeriodService
	irrigationService *service.IrrigationService
	alertJob          *service.AlertJob
	catalog           *catalog.Catalog
	config            *config.BotConfig
	ctx               context.Context

	mu         sync.Mutex
	userStates map[int64]string
	forms      map[int64]*formSession

	// workers is only touched by the HandleUpdates goroutine.
	workers map[int64]chan tgbotapi.Update
	wg      sync.WaitGroup
}

func NewHandler(
	client *telegram.Client,
	userService *service.UserService,
	workflow *service.Workflow,
	periodService *service.PeriodService,
	irrigationService *service.IrrigationService,
	alertJob *service.AlertJob,
	cat *catalog.Catalog,
	cfg *config.BotConfig,
) *Handler {
	return newHandler(client.Bot, userService, workflow, periodService, irrigationService, alertJob, cat, cfg)
}

func newHandler(
	bot botAPI,
	userService *service.UserService,
	workflow *service.Workflow,
	periodService *service.PeriodService,
	irrigationService *service.IrrigationService,
	alertJob *service.AlertJob,
	cat *catalog.Catalog,
	cfg *config.BotConfig,
) *Handler {
	return &Handler{
		bot:               bot,
		userService:       userService,
		workflow:          workflow,
		periodService:     periodService,
		irrigationService: irrigationService,
		alertJob:          alertJob,
		catalog:           cat,
		config:            cfg,
		userStates:        make(map[int64]string),
		forms:             make(map[int64]*formSession),
		workers:           make(map[int64]chan tgbotapi.Update),
		ctx:               context.Background(),
	}
}

// HandleUpdates runs until ctx is cancelled or the channel closes. Each
// chat gets its own worker, so a chat waiting on the form service does not
// hold up the others while its own updates keep their order.
func (h *Handler) HandleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	h.ctx = ctx
	defer h.stopWorkers()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.dispatch(ctx, update)
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, update tgbotapi.Update) {
	chatID, ok := updateChatID(update)
	if !ok {
		return
	}

	queue, exists := h.workers[chatID]
	if !exists {
		queue = make(chan tgbotapi.Update, chatQueueSize)
		h.workers[chatID] = queue
		h.wg.Add(1)
		go h.work(ctx, queue)
	}

	select {
	case queue <- update:
	default:
		logrus.WithField("chat_id", chatID).Warn("Chat queue full, dropping update")
	}
}

func (h *Handler) work(ctx context.Context, queue <-chan tgbotapi.Update) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-queue:
			if !ok {
				return
			}
			h.handleUpdate(update)
		}
	}
}

func (h *Handler) stopWorkers() {
	for chatID, queue := range h.workers {
		close(queue)
		delete(h.workers, chatID)
	}
	h.wg.Wait()
}

func updateChatID(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		return update.CallbackQuery.Message.Chat.ID, true
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID, true
	}
	return 0, false
}

func (h *Handler) handleUpdate(update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		h.handleCallbackQuery(update.CallbackQuery)
		return
	}

	if update.Message == nil {
		return
	}

	h.handleMessage(update.Message)
}

func (h *Handler) handleCallbackQuery(callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	data := callback.Data

	// drop the keyboard so a button cannot be pressed twice
	editMsg := tgbotapi.NewEditMessageReplyMarkup(chatID, callback.Message.MessageID, tgbotapi.NewInlineKeyboardMarkup())
	h.bot.Request(editMsg)

	switch {
	case strings.HasPrefix(data, "period:"):
		h.showMatrix(chatID, strings.TrimPrefix(data, "period:"))
	case strings.HasPrefix(data, "xlsx:"):
		h.sendExport(chatID, strings.TrimPrefix(data, "xlsx:"), exportXLSX)
	case strings.HasPrefix(data, "pdf:"):
		h.sendExport(chatID, strings.TrimPrefix(data, "pdf:"), exportPDF)
	case strings.HasPrefix(data, "del:"):
		h.confirmDelete(chatID, strings.TrimPrefix(data, "del:"))
	case strings.HasPrefix(data, "delok:"):
		h.deleteRecord(chatID, strings.TrimPrefix(data, "delok:"))
	case data == "delno":
		h.send(chatID, "❌ Eliminación cancelada.")
	case strings.HasPrefix(data, "form:"):
		h.handleFormCallback(chatID, strings.TrimPrefix(data, "form:"))
	}

	h.bot.Request(tgbotapi.NewCallback(callback.ID, ""))
}

func (h *Handler) handleMessage(message *tgbotapi.Message) {
	if message.From != nil {
		logrus.Infof("[%s] %s", message.From.UserName, message.Text)
	}

	chatID := message.Chat.ID

	if state, exists := h.state(chatID); exists {
		if message.IsCommand() {
			switch message.Command() {
			case "cancelar":
				h.cancelForm(chatID)
				return
			case "celda":
				// activating another cell discards the pending form
				h.clearForm(chatID)
				h.handleCommand(message)
				return
			}
			h.send(chatID, "ℹ️ Hay una carga en curso. Complétela o use /cancelar.")
			return
		}
		h.handleFormState(message, state)
		return
	}

	if message.IsCommand() {
		h.handleCommand(message)
		return
	}

	h.send(chatID, "🤔 No entendí el mensaje. Use /help para ver los comandos.")
}

func (h *Handler) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Warn("Failed to send message")
	}
}

func (h *Handler) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	if _, err := h.bot.Send(msg); err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Warn("Failed to send message")
	}
}

// sendLong splits text on line boundaries to stay under the message limit.
func (h *Handler) sendLong(chatID int64, text string) {
	for _, chunk := range splitMessage(text, maxMessageLength) {
		h.send(chatID, chunk)
	}
}

// requireUser returns the registered user or tells the chat to register.
func (h *Handler) requireUser(chatID int64) (*models.User, bool) {
	user, err := h.userService.GetUser(chatID)
	if errors.Is(err, repository.ErrUserNotFound) {
		h.send(chatID, "👋 Primero regístrese con /start.")
		return nil, false
	}
	if err != nil {
		h.send(chatID, "❌ Error al consultar el usuario: "+err.Error())
		return nil, false
	}
	return user, true
}

func (h *Handler) requireAdmin(chatID int64) (*models.User, bool) {
	user, ok := h.requireUser(chatID)
	if !ok {
		return nil, false
	}
	if !user.IsAdmin() {
		h.send(chatID, "❌ Acceso denegado. Este comando es solo para administradores.")
		return nil, false
	}
	return user, true
}

// ensureLoaded fetches the data on first use and reports failures to the
// chat. A load overtaken by a newer refresh still counts once that refresh
// has left a snapshot behind.
func (h *Handler) ensureLoaded(chatID int64) bool {
	_, err := h.workflow.EnsureLoaded(h.ctx)
	if errors.Is(err, service.ErrSuperseded) {
		_, err = h.workflow.Snapshot()
	}
	if err != nil {
		h.send(chatID, "❌ No se pudieron cargar los datos: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) state(chatID int64) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	state, ok := h.userStates[chatID]
	return state, ok
}

func (h *Handler) setState(chatID int64, state string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.userStates[chatID] = state
}

func (h *Handler) session(chatID int64) *formSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.forms[chatID]
}

func (h *Handler) setSession(chatID int64, session *formSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forms[chatID] = session
}

// clearForm drops the chat's dialog and returns the session it held.
func (h *Handler) clearForm(chatID int64) *formSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	session := h.forms[chatID]
	delete(h.userStates, chatID)
	delete(h.forms, chatID)
	return session
}
