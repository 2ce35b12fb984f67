package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/krailo/streamwatch/app/database"
	"github.com/krailo/streamwatch/app/lifecycle"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram pushes broadcast events to a chat. Sends run on their own
// goroutines so a slow Telegram API never stalls monitoring; a failed
// notification is logged and dropped.
type Telegram struct {
	httpClient *http.Client
	baseURL    string
	botToken   string
	chatID     string
	broadcasts database.BroadcastRepository
}

func NewTelegram(httpClient *http.Client, botToken, chatID string, broadcasts database.BroadcastRepository) *Telegram {
	return &Telegram{
		httpClient: httpClient,
		baseURL:    telegramAPIBase,
		botToken:   botToken,
		chatID:     chatID,
		broadcasts: broadcasts,
	}
}

// Enabled reports whether credentials are configured.
func (t *Telegram) Enabled() bool {
	return t.botToken != "" && t.chatID != ""
}

// OnBroadcastEvent implements the lifecycle subscriber contract.
func (t *Telegram) OnBroadcastEvent(event lifecycle.Event) {
	if !t.Enabled() {
		return
	}

	switch {
	case event.From == "" && event.To == database.BroadcastLive:
		t.notifyStarted(event.Broadcast)
	case event.To == database.BroadcastEnded && event.From == database.BroadcastLive:
		t.notifyEnded(event.Broadcast)
	}
}

func (t *Telegram) notifyStarted(b *database.Broadcast) {
	if b.NotificationSent {
		return
	}

	text := fmt.Sprintf("🔴 Live now: %s\n%s", b.Title, b.URL)
	go t.send(text)

	if err := t.broadcasts.SetNotificationSent(b.ID); err != nil {
		slog.Warn("Failed to latch notification flag", "broadcast_id", b.ID, "error", err)
	}
	b.NotificationSent = true
}

func (t *Telegram) notifyEnded(b *database.Broadcast) {
	duration := ""
	if b.EndedAt != nil {
		duration = fmt.Sprintf(" (%s)", b.EndedAt.Sub(b.StartedAt).Round(time.Minute))
	}
	text := fmt.Sprintf("⏹ Broadcast ended: %s%s", b.Title, duration)
	go t.send(text)
}

// NotifyDownloadCompleted announces a finished download.
func (t *Telegram) NotifyDownloadCompleted(broadcastTitle, quality, filePath string, fileSize int64) {
	if !t.Enabled() {
		return
	}
	text := fmt.Sprintf("💾 Download finished: %s [%s]\n%s (%.1f MB)",
		broadcastTitle, quality, filePath, float64(fileSize)/(1024*1024))
	go t.send(text)
}

func (t *Telegram) send(text string) {
	payload, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	})
	if err != nil {
		slog.Warn("Failed to encode notification", "error", err)
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	resp, err := t.httpClient.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		slog.Warn("Failed to send notification", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("Notification rejected", "status", resp.StatusCode)
	}
}
