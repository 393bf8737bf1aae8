package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// Embed is a Discord rich embed.
type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

// EmbedFooter is the small text under an embed.
type EmbedFooter struct {
	Text string `json:"text"`
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Notifier delivers alerts to the chat webhook.
type Notifier interface {
	Send(ctx context.Context, embed Embed) error
	SendFile(ctx context.Context, filename string, content []byte, message string) error
}

// DiscordNotifier posts messages to a Discord webhook. Deliveries are attempted once.
type DiscordNotifier struct {
	WebhookURL string
	Footer     string
	Client     *http.Client
	Now        func() time.Time
}

// NewDiscordNotifier creates a notifier with optional proxy support.
func NewDiscordNotifier(webhookURL, footer, proxyURL string) *DiscordNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &DiscordNotifier{
		WebhookURL: webhookURL,
		Footer:     footer,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		Now: time.Now,
	}
}

// Send posts a single embed, stamping it with the current time and the footer.
func (d *DiscordNotifier) Send(ctx context.Context, embed Embed) error {
	if embed.Timestamp == "" {
		embed.Timestamp = d.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}
	if embed.Footer == nil && d.Footer != "" {
		embed.Footer = &EmbedFooter{Text: d.Footer}
	}
	body, err := json.Marshal(webhookPayload{Embeds: []Embed{embed}})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return d.post(ctx, "application/json", body)
}

// SendFile posts content as a file attachment with an optional message.
func (d *DiscordNotifier) SendFile(ctx context.Context, filename string, content []byte, message string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	payload, err := json.Marshal(webhookPayload{Content: message})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := mw.WriteField("payload_json", string(payload)); err != nil {
		return fmt.Errorf("write payload field: %w", err)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := fw.Write(content); err != nil {
		return fmt.Errorf("write file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}
	return d.post(ctx, mw.FormDataContentType(), buf.Bytes())
}

func (d *DiscordNotifier) post(ctx context.Context, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("discord webhook error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
