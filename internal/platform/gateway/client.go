package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/clubgate/clubgate/pkg/config"
)

const httpTimeout = 15 * time.Second

// LinkParams describes one payment link request. The notes ride through the
// gateway unchanged and come back in the capture webhook, which is how a
// captured payment finds its user and plan again.
type LinkParams struct {
	AmountMinor int64
	Description string
	TelegramID  int64
	PlanID      string
	Username    string
	FirstName   string
}

// PaymentLink is the gateway's created link.
type PaymentLink struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	Status   string `json:"status"`
}

// LinkCreator is what the bot layer needs from the gateway.
type LinkCreator interface {
	CreatePaymentLink(ctx context.Context, p LinkParams) (*PaymentLink, error)
}

// Client talks to the payment gateway's REST API with basic-auth key pairs.
type Client struct {
	cfg  *config.Config
	http *http.Client
	log  *zap.SugaredLogger
}

func NewClient(cfg *config.Config, log *zap.SugaredLogger) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: httpTimeout},
		log:  log,
	}
}

var Module = fx.Options(
	fx.Provide(NewClient),
	fx.Provide(func(c *Client) LinkCreator { return c }),
)

type createLinkRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	Notes       map[string]string `json:"notes"`
}

// CreatePaymentLink asks the gateway for a hosted checkout link.
func (c *Client) CreatePaymentLink(ctx context.Context, p LinkParams) (*PaymentLink, error) {
	body, err := json.Marshal(createLinkRequest{
		Amount:      p.AmountMinor,
		Currency:    c.cfg.Gateway.Currency,
		Description: p.Description,
		Notes: map[string]string{
			"user_id":    fmt.Sprintf("%d", p.TelegramID),
			"plan_id":    p.PlanID,
			"username":   p.Username,
			"first_name": p.FirstName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment link request: %w", err)
	}

	url := c.cfg.Gateway.BaseURL + "/payment_links"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build payment link request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.Gateway.KeyID, c.cfg.Gateway.KeySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment link request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Errorw("payment_link_rejected", "status", resp.StatusCode, "body", string(respBody))
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var link PaymentLink
	if err := json.Unmarshal(respBody, &link); err != nil {
		return nil, fmt.Errorf("failed to decode payment link response: %w", err)
	}
	if link.ShortURL == "" {
		return nil, fmt.Errorf("gateway response missing short_url")
	}
	return &link, nil
}
