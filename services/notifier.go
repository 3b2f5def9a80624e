package services

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"

	"casino-wager-system/utils"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Notifier delivers prompts and results to whatever chat surface the
// ChatContext routes to. Fire-and-forget: the challenge core never blocks
// on delivery and never fails a settlement over it.
type Notifier interface {
	// Prompt presents a message with actionable options (accept/decline,
	// roll) and returns an opaque delivery handle.
	Prompt(chatContext, msg string, options []string) (string, error)
	// Report delivers a plain result message.
	Report(chatContext, msg string)
}

// moneyPrinter formats currency amounts in notification text.
var moneyPrinter = message.NewPrinter(language.English)

// FormatMoney renders an amount the way user-facing messages expect.
func FormatMoney(amount decimal.Decimal) string {
	f, _ := amount.Float64()
	return moneyPrinter.Sprintf("$%.2f", f)
}

// LogNotifier writes notifications to the process log. Used as the
// default sink when no webhook is configured, and in tests.
type LogNotifier struct{}

func (LogNotifier) Prompt(chatContext, msg string, options []string) (string, error) {
	log.Printf("💬 [Notify] prompt chat=%s options=%v: %s", chatContext, options, msg)
	return "", nil
}

func (LogNotifier) Report(chatContext, msg string) {
	log.Printf("💬 [Notify] report chat=%s: %s", chatContext, msg)
}

// WebhookNotifier posts notifications to an external messaging relay.
type WebhookNotifier struct {
	URL        string
	Token      string
	HTTPClient *http.Client
}

func NewWebhookNotifier(url, token string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:        url,
		Token:      token,
		HTTPClient: utils.HTTPClient,
	}
}

type webhookPayload struct {
	ChatContext string   `json:"chat_context"`
	Message     string   `json:"message"`
	Options     []string `json:"options,omitempty"`
}

func (n *WebhookNotifier) deliver(payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest("POST", n.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", n.Token)

	resp, err := n.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func (n *WebhookNotifier) Prompt(chatContext, msg string, options []string) (string, error) {
	if err := n.deliver(webhookPayload{ChatContext: chatContext, Message: msg, Options: options}); err != nil {
		log.Printf("❌ [Notify] prompt delivery failed for chat %s: %v", chatContext, err)
		return "", err
	}
	return chatContext, nil
}

func (n *WebhookNotifier) Report(chatContext, msg string) {
	if err := n.deliver(webhookPayload{ChatContext: chatContext, Message: msg}); err != nil {
		log.Printf("❌ [Notify] report delivery failed for chat %s: %v", chatContext, err)
	}
}
