// Package notify holds alert sinks the calling layer wires behind the
// engine. The engine itself only reports which records turned overdue; the
// channel choice stays out here.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"crm-engine/internal/model"
)

// TelegramNotifier delivers overdue digests to a single chat.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	return &TelegramNotifier{api: api, chatID: chatID}, nil
}

// OverdueDigest sends one message summarizing the records a scan just
// flagged. Nothing is sent for an empty scan.
func (n *TelegramNotifier) OverdueDigest(ctx context.Context, flagged []model.Task) error {
	if len(flagged) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, buildDigest(flagged, time.Now()))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}
	return nil
}

func buildDigest(flagged []model.Task, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⚠️ <b>%d task(s) became overdue</b>\n", len(flagged)))

	byTenant := make(map[string][]model.Task)
	var tenants []string
	for _, task := range flagged {
		if _, ok := byTenant[task.TenantID]; !ok {
			tenants = append(tenants, task.TenantID)
		}
		byTenant[task.TenantID] = append(byTenant[task.TenantID], task)
	}

	for _, tenant := range tenants {
		sb.WriteString(fmt.Sprintf("\n<b>%s</b>\n", html.EscapeString(tenant)))
		for _, task := range byTenant[tenant] {
			title := html.EscapeString(strings.TrimSpace(task.Title))
			age := now.Sub(task.DueDate).Round(time.Minute)
			sb.WriteString(fmt.Sprintf("• %s — due %s (%s late)\n",
				title, task.DueDate.Format("2006-01-02 15:04"), age))
		}
	}
	return strings.TrimSpace(sb.String())
}
