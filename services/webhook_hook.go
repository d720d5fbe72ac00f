package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WebhookHook forwards integration events to the achievements service.
type WebhookHook struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewWebhookHook(baseURL, token string, client *http.Client) *WebhookHook {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookHook{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  client,
	}
}

type webhookEvent struct {
	Event  string         `json:"event"`
	UserID string         `json:"user_id"`
	Data   map[string]any `json:"data"`
	SentAt time.Time      `json:"sent_at"`
}

func (h *WebhookHook) post(ctx context.Context, event, userID string, data map[string]any) error {
	body, err := json.Marshal(webhookEvent{Event: event, UserID: userID, Data: data, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/hooks/progression", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.Token)

	resp, err := h.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook %s returned %d: %s", event, resp.StatusCode, string(msg))
	}
	return nil
}

func (h *WebhookHook) OnXPGained(ctx context.Context, userID string, amount, totalXP int64) error {
	return h.post(ctx, "xp_gained", userID, map[string]any{"amount": amount, "total_xp": totalXP})
}

func (h *WebhookHook) OnLevelUp(ctx context.Context, userID string, from, to int) error {
	return h.post(ctx, "level_up", userID, map[string]any{"from": from, "to": to})
}

func (h *WebhookHook) OnQuestCompleted(ctx context.Context, userID, questID string) error {
	return h.post(ctx, "quest_completed", userID, map[string]any{"quest_id": questID})
}

func (h *WebhookHook) OnJobCompleted(ctx context.Context, userID, jobID string) error {
	return h.post(ctx, "job_completed", userID, map[string]any{"job_id": jobID})
}

func (h *WebhookHook) OnStreakMilestone(ctx context.Context, userID string, days int) error {
	return h.post(ctx, "streak_milestone", userID, map[string]any{"days": days})
}
