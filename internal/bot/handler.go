package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Carelightt/pdftelegram/internal/delivery"
	"github.com/Carelightt/pdftelegram/internal/dialog"
	"github.com/Carelightt/pdftelegram/internal/domain"
	"github.com/Carelightt/pdftelegram/internal/metrics"
	"github.com/Carelightt/pdftelegram/internal/services"
	"github.com/Carelightt/pdftelegram/internal/telegram"
	"github.com/Carelightt/pdftelegram/internal/textutil"
)

// User-facing texts. The audience is Turkish; operator command feedback stays
// Turkish too.
const (
	msgPreparing     = "⏳ PDF hazırlanıyor, lütfen bekleyin..."
	msgRenderFailed  = "❌ PDF oluşturulamadı. Lütfen daha sonra tekrar deneyin."
	msgSendFailed    = "❌ Dosya gönderilemedi. Lütfen daha sonra tekrar deneyin."
	msgSendTimeout   = "⌛ Gönderim zaman aşımına uğradı. Lütfen daha sonra tekrar deneyin."
	msgCancelled     = "İşlem iptal edildi."
	msgNothingActive = "İptal edilecek bir işlem yok."
	msgNotOperator   = "Bu komutu kullanma yetkin yok."
)

// Renderer produces document bytes for a completed field set.
// *render.Client implements it.
type Renderer interface {
	Render(ctx context.Context, dt domain.DocumentType, fields map[string]string) ([]byte, error)
}

// Deliverer pushes rendered bytes to a chat. *delivery.Pipeline implements it.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, filename string, data []byte, caption string) error
}

// Handler routes one message at a time per chat. All sends go through the
// rate-limited transport it was constructed with.
type Handler struct {
	Catalog   []domain.DocumentType
	Dialogs   *dialog.Manager
	Access    *services.AccessService
	Usage     *services.UsageService
	Renderer  Renderer
	Deliverer Deliverer
	Transport Transport
	Operators map[int64]struct{}
	Logger    zerolog.Logger
}

// Handle processes one incoming message: commands first, then routing of
// plain text into whichever dialog is waiting for it.
func (h *Handler) Handle(ctx context.Context, msg telegram.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if cmd := dialog.CommandToken(text); cmd != "" {
		h.handleCommand(ctx, msg, cmd, text)
		return
	}
	h.handleDialogInput(ctx, msg, text)
}

func (h *Handler) handleCommand(ctx context.Context, msg telegram.Message, cmd, text string) {
	for _, dt := range h.Catalog {
		if cmd == "/"+dt.Command {
			h.handleDocCommand(ctx, msg, dt, text)
			return
		}
	}

	switch cmd {
	case "/start":
		h.send(ctx, msg.Chat.ID, h.helpText())
	case "/whereami":
		reply := fmt.Sprintf("Chat ID: %d", msg.Chat.ID)
		if msg.From != nil {
			reply += fmt.Sprintf("\nUser ID: %d", msg.From.ID)
		}
		h.send(ctx, msg.Chat.ID, reply)
	case "/cancel":
		h.handleCancel(ctx, msg)
	case "/grant", "/setquota", "/revoke", "/quota", "/stats", "/summary":
		h.handleOperatorCommand(ctx, msg, cmd, text)
	default:
		// Unknown commands are ignored; the bot shares group chats with
		// humans and other bots.
	}
}

func (h *Handler) helpText() string {
	var b strings.Builder
	b.WriteString("Belge komutları:\n")
	for _, dt := range h.Catalog {
		b.WriteString("/" + dt.Command + "\n")
	}
	b.WriteString("/cancel — açık işlemi iptal eder\n/whereami — chat ID gösterir")
	return b.String()
}

// handleDocCommand is the entry point for a document request: access is
// checked first, then either the inline fast path or the step-by-step dialog.
func (h *Handler) handleDocCommand(ctx context.Context, msg telegram.Message, dt domain.DocumentType, text string) {
	dec, err := h.Access.CheckAccess(ctx, msg.Chat.ID)
	if err != nil {
		h.Logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("access check failed")
		return
	}
	metrics.AccessChecks.WithLabelValues(outcomeLabel(dec.Outcome)).Inc()
	if !dec.Allowed() {
		h.send(ctx, msg.Chat.ID, dec.Notice)
		return
	}

	if fields, ok := dialog.ParseInline(text, dt); ok {
		h.generate(ctx, msg, dt, fields, dec)
		return
	}

	prompt, err := h.Dialogs.Begin(ctx, msg.Chat.ID, dt)
	if err != nil {
		h.Logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("dialog begin failed")
		return
	}
	h.send(ctx, msg.Chat.ID, prompt)
}

// handleDialogInput offers plain text to each document type's dialog; at most
// one has a live session, and only that one consumes the message.
func (h *Handler) handleDialogInput(ctx context.Context, msg telegram.Message, text string) {
	for _, dt := range h.Catalog {
		res, err := h.Dialogs.Advance(ctx, msg.Chat.ID, dt, text)
		if err != nil {
			h.Logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("dialog advance failed")
			return
		}
		switch res.Status {
		case dialog.StatusNone, dialog.StatusIgnored:
			continue
		case dialog.StatusExpired:
			// Abandonment is silent, and the stale session was already
			// discarded; the message may belong to another type's live
			// dialog, so keep offering it.
			continue
		case dialog.StatusPrompt:
			dec, err := h.Access.CheckAccess(ctx, msg.Chat.ID)
			if err != nil {
				h.Logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("access check failed")
				return
			}
			if !dec.Allowed() {
				// Access was pulled mid-dialog; the instance dies with it.
				if _, err := h.Dialogs.Cancel(ctx, msg.Chat.ID, dt.Code); err != nil {
					h.Logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("dialog cancel failed")
				}
				h.send(ctx, msg.Chat.ID, dec.Notice)
				return
			}
			h.send(ctx, msg.Chat.ID, res.Prompt)
			return
		case dialog.StatusComplete:
			dec, err := h.Access.CheckAccess(ctx, msg.Chat.ID)
			if err != nil {
				h.Logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("access check failed")
				return
			}
			if !dec.Allowed() {
				// Access was pulled mid-dialog.
				h.send(ctx, msg.Chat.ID, dec.Notice)
				return
			}
			h.generate(ctx, msg, dt, res.Fields, dec)
			return
		}
	}
}

func (h *Handler) handleCancel(ctx context.Context, msg telegram.Message) {
	any := false
	for _, dt := range h.Catalog {
		had, err := h.Dialogs.Cancel(ctx, msg.Chat.ID, dt.Code)
		if err != nil {
			h.Logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("dialog cancel failed")
			return
		}
		any = any || had
	}
	if any {
		h.send(ctx, msg.Chat.ID, msgCancelled)
	} else {
		h.send(ctx, msg.Chat.ID, msgNothingActive)
	}
}

// generate runs the full tail of a document request: normalize fields,
// render, deliver, and only then consume quota and record usage.
func (h *Handler) generate(ctx context.Context, msg telegram.Message, dt domain.DocumentType, fields map[string]string, dec services.Decision) {
	for _, f := range dt.Fields {
		v := strings.TrimSpace(fields[f.Name])
		if f.Uppercase {
			v = textutil.UpperTR(v)
		}
		fields[f.Name] = v
	}

	h.send(ctx, msg.Chat.ID, msgPreparing)

	start := time.Now()
	data, err := h.Renderer.Render(ctx, dt, fields)
	metrics.RenderDuration.WithLabelValues(dt.Code).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RenderFailures.WithLabelValues(dt.Code).Inc()
		h.Logger.Error().Err(err).
			Int64("chat_id", msg.Chat.ID).
			Str("doc_type", dt.Code).
			Msg("render failed")
		h.send(ctx, msg.Chat.ID, msgRenderFailed)
		return
	}

	h.Logger.Info().
		Int64("chat_id", msg.Chat.ID).
		Str("doc_type", dt.Code).
		Int("bytes", len(data)).
		Msg("document rendered")

	filename := dt.Filename(fields["ad"], fields["soyad"])
	if err := h.Deliverer.Deliver(ctx, msg.Chat.ID, filename, data, ""); err != nil {
		outcome, notice := "aborted", msgSendFailed
		if delivery.IsTransient(err) {
			outcome, notice = "exhausted", msgSendTimeout
		}
		metrics.Deliveries.WithLabelValues(outcome).Inc()
		h.Logger.Error().Err(err).
			Int64("chat_id", msg.Chat.ID).
			Str("doc_type", dt.Code).
			Msg("delivery failed")
		h.send(ctx, msg.Chat.ID, notice)
		return
	}
	metrics.Deliveries.WithLabelValues("ok").Inc()
	metrics.DocumentsGenerated.WithLabelValues(dt.Code).Inc()

	// Quota is consumed only after the document actually reached the chat.
	if err := h.Access.ConfirmUse(ctx, msg.Chat.ID); err != nil {
		h.Logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("quota confirm failed")
	}
	if err := h.Usage.Record(ctx, msg.Chat.ID, dt.Code, msg.Chat.DisplayName()); err != nil {
		h.Logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("usage record failed")
	}

	if dec.Metered() {
		if left, err := h.Access.RemainingQuota(ctx, msg.Chat.ID); err == nil {
			h.send(ctx, msg.Chat.ID, fmt.Sprintf("Kalan hak: %d", left))
		}
	}
}

// handleOperatorCommand executes the access-management commands. They operate
// on the chat they are issued in and are restricted to configured operators.
func (h *Handler) handleOperatorCommand(ctx context.Context, msg telegram.Message, cmd, text string) {
	if msg.From == nil || !h.isOperator(msg.From.ID) {
		h.send(ctx, msg.Chat.ID, msgNotOperator)
		return
	}
	chatID := msg.Chat.ID
	arg := commandArg(text)

	switch cmd {
	case "/grant":
		days, err := strconv.Atoi(arg)
		if err != nil {
			h.send(ctx, chatID, "Kullanım: /grant <gün>")
			return
		}
		until, err := h.Access.GrantTemporary(ctx, chatID, days)
		if err != nil {
			h.operatorError(ctx, chatID, err)
			return
		}
		h.send(ctx, chatID, fmt.Sprintf("✅ Süreli hak verildi. Bitiş: %s", until.Format("2006-01-02 15:04 MST")))
	case "/setquota":
		n, err := strconv.Atoi(arg)
		if err != nil {
			h.send(ctx, chatID, "Kullanım: /setquota <adet>")
			return
		}
		if err := h.Access.GrantQuota(ctx, chatID, n); err != nil {
			h.operatorError(ctx, chatID, err)
			return
		}
		h.send(ctx, chatID, fmt.Sprintf("✅ Kota ayarlandı: %d", n))
	case "/revoke":
		if err := h.Access.Revoke(ctx, chatID); err != nil {
			h.operatorError(ctx, chatID, err)
			return
		}
		// A revoked chat must not keep a half-finished request alive.
		for _, dt := range h.Catalog {
			if _, err := h.Dialogs.Cancel(ctx, chatID, dt.Code); err != nil {
				h.Logger.Error().Err(err).Int64("chat_id", chatID).Msg("dialog cancel failed")
			}
		}
		h.send(ctx, chatID, "⛔ Bu chatin hakkı kapatıldı.")
	case "/quota":
		left, err := h.Access.RemainingQuota(ctx, chatID)
		if err != nil {
			h.operatorError(ctx, chatID, err)
			return
		}
		h.send(ctx, chatID, fmt.Sprintf("Kalan hak: %d", left))
	case "/stats":
		counts, err := h.Usage.TodayForChat(ctx, chatID)
		if err != nil {
			h.operatorError(ctx, chatID, err)
			return
		}
		h.send(ctx, chatID, formatChatStats(counts))
	case "/summary":
		lines, err := h.Usage.TodaySummary(ctx)
		if err != nil {
			h.operatorError(ctx, chatID, err)
			return
		}
		h.send(ctx, chatID, h.Usage.FormatSummary(lines))
	}
}

func (h *Handler) isOperator(userID int64) bool {
	_, ok := h.Operators[userID]
	return ok
}

func (h *Handler) operatorError(ctx context.Context, chatID int64, err error) {
	switch err {
	case services.ErrInvalidDuration:
		h.send(ctx, chatID, "Gün sayısı geçersiz.")
	case services.ErrInvalidQuota:
		h.send(ctx, chatID, "Kota değeri geçersiz.")
	default:
		h.Logger.Error().Err(err).Int64("chat_id", chatID).Msg("operator command failed")
		h.send(ctx, chatID, "İşlem başarısız oldu.")
	}
}

func (h *Handler) send(ctx context.Context, chatID int64, text string) {
	if err := h.Transport.SendMessage(ctx, chatID, text); err != nil {
		h.Logger.Warn().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

// commandArg returns everything after the command token, trimmed.
func commandArg(text string) string {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[1:], " ")
}

func formatChatStats(counts map[string]int) string {
	if len(counts) == 0 {
		return "Bugün bu chatte üretim yok."
	}
	var b strings.Builder
	b.WriteString("Bugünkü üretim:\n")
	total := 0
	for _, code := range sortedKeys(counts) {
		fmt.Fprintf(&b, "%s: %d\n", code, counts[code])
		total += counts[code]
	}
	fmt.Fprintf(&b, "Toplam: %d", total)
	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func outcomeLabel(o services.Outcome) string {
	switch o {
	case services.OutcomeDenied:
		return "denied"
	case services.OutcomeAllowListed:
		return "allowlisted"
	case services.OutcomeGranted:
		return "granted"
	case services.OutcomeMetered:
		return "metered"
	default:
		return "no_access"
	}
}
