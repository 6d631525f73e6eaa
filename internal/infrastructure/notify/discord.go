package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"kstrade/internal/application/port"
	"kstrade/internal/domain/model"
)

const (
	colorGreen  = 0x2ecc71
	colorRed    = 0xe74c3c
	colorOrange = 0xe67e22
	colorGray   = 0x95a5a6
)

// Discord posts events to a webhook as embeds. An empty URL disables it.
type Discord struct {
	webhookURL string
	client     *http.Client
}

func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *Discord) Notify(e model.Event) {
	if d.webhookURL == "" {
		return
	}
	title, color := embedStyle(e)

	payload := map[string]any{
		"embeds": []map[string]any{
			{
				"title":       title,
				"description": renderLine(e),
				"color":       color,
				"timestamp":   time.Now().Format(time.RFC3339),
			},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewReader(data))
	if err != nil {
		log.Warn().Err(err).Msg("discord webhook failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		log.Warn().Int("status", resp.StatusCode).Msg("discord webhook rejected")
	}
}

func embedStyle(e model.Event) (string, int) {
	switch e.Kind {
	case model.EventOrderFilled, model.EventOrderPartial:
		if e.Side == model.SideBuy {
			return fmt.Sprintf("Buy fill %s", e.Symbol), colorGreen
		}
		return fmt.Sprintf("Sell fill %s", e.Symbol), colorRed
	case model.EventOrderFailed, model.EventOrderDropped:
		return fmt.Sprintf("Order problem %s", e.Symbol), colorOrange
	case model.EventExitTriggered:
		return fmt.Sprintf("Exit %s", e.Symbol), colorOrange
	default:
		return string(e.Kind), colorGray
	}
}

var _ port.Notifier = (*Discord)(nil)
