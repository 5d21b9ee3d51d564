package handler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"timesheet-bot/internal/catalog"
	"timesheet-bot/internal/kobo"
	"timesheet-bot/internal/models"
	"timesheet-bot/internal/repository"
	"timesheet-bot/internal/service"
)

const adminChat int64 = 100

type fakeBot struct {
	mu        sync.Mutex
	texts     []string
	documents []string
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		b.texts = append(b.texts, m.Text)
	case tgbotapi.DocumentConfig:
		if f, ok := m.File.(tgbotapi.FileBytes); ok {
			b.documents = append(b.documents, f.Name)
		}
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.texts) == 0 {
		return ""
	}
	return b.texts[len(b.texts)-1]
}

func (b *fakeBot) sent(text string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.texts {
		if t == text {
			return true
		}
	}
	return false
}

// memoryStore serves rows from memory. When holdCall is set, that fetch
// closes started and waits for release.
type memoryStore struct {
	mu        sync.Mutex
	rows      []models.SubmissionRow
	submitted []kobo.Submission

	calls    int
	holdCall int
	started  chan struct{}
	release  chan struct{}
}

func (s *memoryStore) hold(call int) {
	s.holdCall = call
	s.started = make(chan struct{})
	s.release = make(chan struct{})
}

func (s *memoryStore) FetchAll(ctx context.Context, token string) ([]models.SubmissionRow, models.FormVersion, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if s.holdCall != 0 && call == s.holdCall {
		close(s.started)
		<-s.release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SubmissionRow(nil), s.rows...), "v3", nil
}

func (s *memoryStore) Submit(ctx context.Context, token string, sub kobo.Submission) (kobo.SubmitResult, error) {
	if err := sub.Validate(); err != nil {
		return kobo.SubmitResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, sub)
	return kobo.SubmitResult{Outcome: kobo.OutcomeSuccess}, nil
}

func (s *memoryStore) Delete(ctx context.Context, token, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.ID == id {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return &kobo.RemoteError{StatusCode: 404, Body: "not found"}
}

type nopNotifier struct{}

func (nopNotifier) Notify(chatID int64, text string) error { return nil }

func day(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestHandler(t *testing.T, store *memoryStore) (*Handler, *fakeBot) {
	t.Helper()

	db, err := repository.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { repository.Close(db) })

	userRepo, err := repository.NewUserRepository(db)
	if err != nil {
		t.Fatalf("user repo: %v", err)
	}
	irrigationRepo, err := repository.NewIrrigationRepository(db)
	if err != nil {
		t.Fatalf("irrigation repo: %v", err)
	}
	selectionRepo, err := repository.NewPeriodSelectionRepository(db)
	if err != nil {
		t.Fatalf("selection repo: %v", err)
	}

	userService := service.NewUserService(userRepo)
	if err := userService.InitializeAdmin(adminChat); err != nil {
		t.Fatalf("init admin: %v", err)
	}

	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	clock := time.Date(2024, 2, 12, 12, 0, 0, 0, time.UTC)
	workflow := service.NewWorkflow(store, "token", time.UTC).WithClock(func() time.Time { return clock })
	alertJob := service.NewAlertJob(workflow, userService, nopNotifier{}, 10, time.Minute)

	bot := &fakeBot{}
	h := newHandler(bot, userService, workflow, service.NewPeriodService(workflow, selectionRepo),
		service.NewIrrigationService(irrigationRepo), alertJob, cat, nil)
	return h, bot
}

func command(chatID int64, text string) *tgbotapi.Message {
	name := strings.Fields(text)[0]
	return &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: chatID, UserName: "tester", FirstName: "Test"},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func text(chatID int64, body string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID, UserName: "tester"},
		Text: body,
	}
}

func press(h *Handler, chatID int64, data string) {
	h.handleCallbackQuery(&tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: chatID}},
	})
}

func TestParseDate(t *testing.T) {
	today := day("2024-02-12")

	tests := []struct {
		in   string
		want string
	}{
		{"10/02/2024", "2024-02-10"},
		{"10.02.2024", "2024-02-10"},
		{"10-02-2024", "2024-02-10"},
		{"2024-02-10", "2024-02-10"},
		{"10/02", "2024-02-10"},
		{"20.12", "2023-12-20"},
	}
	for _, tt := range tests {
		got, err := parseDate(tt.in, today)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tt.in, err)
		}
		if got.Format(models.DateLayout) != tt.want {
			t.Fatalf("%s: expected %s, got %s", tt.in, tt.want, got.Format(models.DateLayout))
		}
	}

	if _, err := parseDate("mañana", today); err == nil {
		t.Fatal("expected an error for free text")
	}
}

func TestParseCellArgs(t *testing.T) {
	employee, date, err := parseCellArgs("  Juan  Pérez 10/02/2024 ", day("2024-02-12"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if employee != "Juan Pérez" || date.Format(models.DateLayout) != "2024-02-10" {
		t.Fatalf("unexpected args %q %s", employee, date)
	}

	if _, _, err := parseCellArgs("10/02/2024", day("2024-02-12")); err == nil {
		t.Fatal("expected an error without employee")
	}
}

func TestParseHours(t *testing.T) {
	h, err := parseHours("7,5")
	if err != nil || !h.Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("unexpected %v %v", h, err)
	}
	if _, err := parseHours("-1"); err == nil {
		t.Fatal("expected negative hours to be rejected")
	}
	if _, err := parseHours("ocho"); err == nil {
		t.Fatal("expected text to be rejected")
	}
}

func TestSplitMessage(t *testing.T) {
	if got := splitMessage("corto", 10); len(got) != 1 || got[0] != "corto" {
		t.Fatalf("unexpected %q", got)
	}

	got := splitMessage("aaaa\nbbbb\ncccc", 9)
	if len(got) != 2 || got[0] != "aaaa\nbbbb" || got[1] != "cccc" {
		t.Fatalf("unexpected chunks %q", got)
	}

	got = splitMessage(strings.Repeat("ñ", 6), 5)
	for _, chunk := range got {
		if len(chunk) > 5 || !strings.HasPrefix(chunk, "ñ") {
			t.Fatalf("chunk split a rune: %q", got)
		}
	}
	if strings.Join(got, "") != strings.Repeat("ñ", 6) {
		t.Fatalf("lost text: %q", got)
	}
}

func TestSubmitMessage(t *testing.T) {
	create := models.PendingForm{Mode: models.FormCreate}
	edit := models.PendingForm{Mode: models.FormEdit, PriorID: "4"}

	if got := submitMessage(create, kobo.SubmitResult{Outcome: kobo.OutcomeSuccess}, nil); got != "✅ Registro guardado." {
		t.Fatalf("unexpected %q", got)
	}
	if got := submitMessage(edit, kobo.SubmitResult{Outcome: kobo.OutcomeSuccess}, nil); got != "✅ Registro actualizado." {
		t.Fatalf("unexpected %q", got)
	}
	if got := submitMessage(edit, kobo.SubmitResult{Outcome: kobo.OutcomeConflict}, nil); !strings.Contains(got, "modificado") {
		t.Fatalf("unexpected %q", got)
	}

	failure := kobo.SubmitResult{Outcome: kobo.OutcomeFailure, StatusCode: 500, Message: "<error>boom</error>"}
	if got := submitMessage(create, failure, nil); !strings.Contains(got, "(500)") || !strings.Contains(got, "<error>boom</error>") {
		t.Fatalf("expected the failure verbatim, got %q", got)
	}
	if got := submitMessage(edit, kobo.SubmitResult{}, service.ErrRefreshRequired); !strings.Contains(got, "/refrescar") {
		t.Fatalf("unexpected %q", got)
	}
}

func TestCreateFlow(t *testing.T) {
	store := &memoryStore{}
	h, bot := newTestHandler(t, store)

	h.handleMessage(command(adminChat, "/celda Ana 10/02/2024"))
	if h.userStates[adminChat] != stateCostCenter {
		t.Fatalf("expected cost center step, got %q (%s)", h.userStates[adminChat], bot.last())
	}

	press(h, adminChat, "form:ceco:0")
	h.handleMessage(text(adminChat, "Poda"))
	if h.userStates[adminChat] != stateHours {
		t.Fatalf("expected the note step to be skipped, got %q", h.userStates[adminChat])
	}
	h.handleMessage(text(adminChat, "menos"))
	if h.userStates[adminChat] != stateHours {
		t.Fatal("expected invalid hours to keep the step")
	}
	h.handleMessage(text(adminChat, "7,5"))
	h.handleMessage(text(adminChat, "0"))
	press(h, adminChat, "form:guardia:0")
	if h.userStates[adminChat] != stateConfirm || !strings.Contains(bot.last(), "NOGA11 (Nogales Chacra Vieja)") {
		t.Fatalf("expected summary, got %q", bot.last())
	}
	press(h, adminChat, "form:send")

	if len(store.submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(store.submitted))
	}
	sub := store.submitted[0]
	if sub.Employee != "Ana" || sub.IsEdit() || sub.Version != "v3" {
		t.Fatalf("unexpected submission %+v", sub)
	}
	v := sub.Values
	if v.CostCenter != "NOGA11" || v.Task != "Poda" || !v.Hours.Decimal.Equal(decimal.RequireFromString("7.5")) || !v.OnCall {
		t.Fatalf("unexpected values %+v", v)
	}
	if !v.Date.Equal(day("2024-02-10")) {
		t.Fatalf("unexpected date %s", v.Date)
	}
	if bot.last() != "✅ Registro guardado." {
		t.Fatalf("unexpected reply %q", bot.last())
	}
	if _, ok := h.userStates[adminChat]; ok {
		t.Fatal("expected the dialog to be closed")
	}
}

func TestEditFlowKeepsValues(t *testing.T) {
	store := &memoryStore{rows: []models.SubmissionRow{{
		ID: "5", InstanceID: "uuid:5", Employee: "Ana", Date: day("2024-02-10"),
		CostCenter: "BAPRO", Task: "Riego", Hours: decimal.NewFromInt(8),
	}}}
	h, _ := newTestHandler(t, store)

	h.handleMessage(command(adminChat, "/celda ana 10.02.2024"))
	h.handleMessage(text(adminChat, "="))
	h.handleMessage(text(adminChat, "="))
	h.handleMessage(text(adminChat, "9"))
	h.handleMessage(text(adminChat, "="))
	h.handleMessage(text(adminChat, "no"))
	h.handleMessage(text(adminChat, "si"))

	if len(store.submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(store.submitted))
	}
	sub := store.submitted[0]
	if sub.Employee != "Ana" || sub.PriorID != "5" || sub.PriorInstanceID != "uuid:5" {
		t.Fatalf("expected an edit of #5, got %+v", sub)
	}
	if sub.Values.CostCenter != "BAPRO" || sub.Values.Task != "Riego" || !sub.Values.Hours.Decimal.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("unexpected values %+v", sub.Values)
	}
}

func TestNoteRequiredTask(t *testing.T) {
	store := &memoryStore{}
	h, bot := newTestHandler(t, store)

	h.handleMessage(command(adminChat, "/celda Ana 10/02/2024"))
	h.handleMessage(text(adminChat, "Faltas"))
	h.handleMessage(text(adminChat, "Falta con aviso"))
	if h.userStates[adminChat] != stateNote {
		t.Fatalf("expected note step, got %q", h.userStates[adminChat])
	}
	h.handleMessage(text(adminChat, "-"))
	if h.userStates[adminChat] != stateNote || !strings.Contains(bot.last(), "obligatoria") {
		t.Fatalf("expected the note to be required, got %q", bot.last())
	}

	h.handleMessage(command(adminChat, "/matriz"))
	if h.userStates[adminChat] != stateNote {
		t.Fatal("expected commands to be refused during the dialog")
	}
	h.handleMessage(command(adminChat, "/celda Beto 11/02/2024"))
	if h.userStates[adminChat] != stateCostCenter || h.forms[adminChat].form.Employee != "Beto" {
		t.Fatal("expected activating another cell to replace the pending form")
	}

	h.handleMessage(command(adminChat, "/cancelar"))
	if _, ok := h.userStates[adminChat]; ok || len(store.submitted) != 0 {
		t.Fatal("expected the dialog to be cancelled without sending")
	}
}

func TestDisambiguateThenDelete(t *testing.T) {
	store := &memoryStore{rows: []models.SubmissionRow{
		{ID: "1", Employee: "Ana", Date: day("2024-02-10"), CostCenter: "BAPRO", Task: "Riego", Hours: decimal.NewFromInt(4)},
		{ID: "2", Employee: "Ana", Date: day("2024-02-10"), CostCenter: "BAPRO", Task: "Poda", Hours: decimal.NewFromInt(4)},
	}}
	h, bot := newTestHandler(t, store)

	h.handleMessage(command(adminChat, "/celda Ana 10/02/2024"))
	if !strings.Contains(bot.last(), "tiene 2 registros") {
		t.Fatalf("expected the candidate list, got %q", bot.last())
	}
	if _, ok := h.userStates[adminChat]; ok {
		t.Fatal("expected no form for a duplicated cell")
	}

	press(h, adminChat, "del:1")
	if !strings.Contains(bot.last(), "¿Eliminar") {
		t.Fatalf("expected a confirmation, got %q", bot.last())
	}
	press(h, adminChat, "delok:1")
	if bot.last() != "✅ Registro #1 eliminado." {
		t.Fatalf("unexpected reply %q", bot.last())
	}
	if len(store.rows) != 1 || store.rows[0].ID != "2" {
		t.Fatalf("unexpected rows %+v", store.rows)
	}

	h.handleMessage(command(adminChat, "/celda Ana 10/02/2024"))
	if h.userStates[adminChat] != stateCostCenter || h.forms[adminChat].form.PriorID != "2" {
		t.Fatal("expected the remaining row to open for edit")
	}
}

func TestClientCannotWrite(t *testing.T) {
	store := &memoryStore{}
	h, bot := newTestHandler(t, store)

	h.handleMessage(command(7, "/celda Ana 10/02/2024"))
	if !strings.Contains(bot.last(), "/start") {
		t.Fatalf("expected a registration hint, got %q", bot.last())
	}

	h.handleMessage(command(7, "/start"))
	if !strings.Contains(bot.texts[len(bot.texts)-1], "Bienvenido") {
		t.Fatalf("unexpected greeting %q", bot.last())
	}

	h.handleMessage(command(7, "/celda Ana 10/02/2024"))
	if !strings.Contains(bot.last(), "Acceso denegado") {
		t.Fatalf("expected access to be denied, got %q", bot.last())
	}

	h.handleMessage(command(7, "/matriz 2024-2"))
	if !strings.Contains(bot.texts[len(bot.texts)-2], "No hay registros") {
		t.Fatalf("expected an empty matrix, got %q", bot.texts[len(bot.texts)-2])
	}
}

func TestMatrixAndExport(t *testing.T) {
	store := &memoryStore{rows: []models.SubmissionRow{
		{ID: "1", Employee: "Ana", Date: day("2024-02-10"), Task: "Riego", Hours: decimal.NewFromInt(8)},
		{ID: "2", Employee: "Beto", Date: day("2024-02-12"), Task: "Falta"},
	}}
	h, bot := newTestHandler(t, store)

	press(h, adminChat, "period:2024-2")
	matrix := bot.texts[len(bot.texts)-2]
	if !strings.Contains(matrix, "👤 Ana") || !strings.Contains(matrix, "10/02 8") || !strings.Contains(matrix, "12/02 FALTA") {
		t.Fatalf("unexpected matrix text %q", matrix)
	}

	press(h, adminChat, "xlsx:2024-2")
	h.handleMessage(command(adminChat, "/pdf"))
	if len(bot.documents) != 2 || bot.documents[0] != "horas_2024-2.xlsx" || bot.documents[1] != "horas_2024-2.pdf" {
		t.Fatalf("unexpected documents %v", bot.documents)
	}
}

func TestIrrigationCommands(t *testing.T) {
	h, bot := newTestHandler(t, &memoryStore{})

	h.handleMessage(command(adminChat, "/addriego L4 10/02/2024 goteo nocturno"))
	if !strings.Contains(bot.last(), "#1 · 2024-02-10 · L4 · goteo nocturno") {
		t.Fatalf("unexpected reply %q", bot.last())
	}

	h.handleMessage(command(adminChat, "/riegos"))
	if !strings.Contains(bot.last(), "L4") {
		t.Fatalf("unexpected list %q", bot.last())
	}

	h.handleMessage(command(adminChat, "/delriego 1"))
	if bot.last() != "✅ Riego #1 eliminado." {
		t.Fatalf("unexpected reply %q", bot.last())
	}
	h.handleMessage(command(adminChat, "/delriego 1"))
	if !strings.Contains(bot.last(), "No existe") {
		t.Fatalf("unexpected reply %q", bot.last())
	}
}

func TestPromote(t *testing.T) {
	h, bot := newTestHandler(t, &memoryStore{})

	h.handleMessage(command(7, "/start"))
	h.handleMessage(command(7, "/promover 100"))
	if !strings.Contains(bot.last(), "Acceso denegado") {
		t.Fatalf("expected a client to be refused, got %q", bot.last())
	}

	h.handleMessage(command(adminChat, "/promover 7"))
	if !strings.Contains(bot.texts[len(bot.texts)-2], "ahora es administrador") {
		t.Fatalf("unexpected reply %v", bot.texts)
	}
	user, err := h.userService.GetUser(7)
	if err != nil || !user.IsAdmin() {
		t.Fatalf("expected chat 7 to be admin, got %+v %v", user, err)
	}
}

func TestOnCallOptionsFromCatalog(t *testing.T) {
	store := &memoryStore{}
	h, bot := newTestHandler(t, store)
	h.catalog.OnCallOptions = []string{"Sí", "No"}

	h.handleMessage(command(adminChat, "/celda Ana 10/02/2024"))
	press(h, adminChat, "form:ceco:0")
	h.handleMessage(text(adminChat, "Poda"))
	h.handleMessage(text(adminChat, "8"))
	h.handleMessage(text(adminChat, "0"))
	if h.userStates[adminChat] != stateOnCall {
		t.Fatalf("expected the on-call step, got %q", h.userStates[adminChat])
	}

	press(h, adminChat, "form:guardia:7")
	if h.userStates[adminChat] != stateOnCall {
		t.Fatal("expected an unknown option to keep the step")
	}
	press(h, adminChat, "form:guardia:0")
	if h.userStates[adminChat] != stateConfirm || !strings.Contains(bot.last(), "Guardia: Sí") {
		t.Fatalf("expected the first option to mean on call, got %q", bot.last())
	}
	press(h, adminChat, "form:send")

	if len(store.submitted) != 1 || !store.submitted[0].Values.OnCall {
		t.Fatalf("unexpected submissions %+v", store.submitted)
	}
}

func TestOtherChatsAnswerWhileFetching(t *testing.T) {
	store := &memoryStore{}
	h, bot := newTestHandler(t, store)
	if _, err := h.workflow.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}
	store.hold(2)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan tgbotapi.Update)
	done := make(chan struct{})
	go func() {
		h.HandleUpdates(ctx, updates)
		close(done)
	}()

	updates <- tgbotapi.Update{Message: command(adminChat, "/refrescar")}
	<-store.started

	updates <- tgbotapi.Update{Message: command(555, "/help")}
	deadline := time.After(2 * time.Second)
	for !bot.sent(helpText) {
		select {
		case <-deadline:
			t.Fatal("expected another chat to be answered while a fetch is in flight")
		case <-time.After(5 * time.Millisecond):
		}
	}

	close(store.release)
	deadline = time.After(2 * time.Second)
	for !strings.Contains(bot.last(), "Datos actualizados") {
		select {
		case <-deadline:
			t.Fatalf("expected the refresh to finish, got %q", bot.last())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestEnsureLoadedAcceptsNewerRefresh(t *testing.T) {
	store := &memoryStore{rows: []models.SubmissionRow{
		{ID: "1", Employee: "Ana", Date: day("2024-02-10"), Task: "Riego", Hours: decimal.NewFromInt(8)},
	}}
	h, bot := newTestHandler(t, store)
	store.hold(1)

	loaded := make(chan bool)
	go func() { loaded <- h.ensureLoaded(adminChat) }()

	<-store.started
	if _, err := h.workflow.Refresh(context.Background()); err != nil {
		t.Fatalf("newer refresh: %v", err)
	}
	close(store.release)

	if !<-loaded {
		t.Fatalf("expected the data to count as loaded, got %q", bot.last())
	}
	if bot.last() != "" {
		t.Fatalf("expected no error reply, got %q", bot.last())
	}
}
