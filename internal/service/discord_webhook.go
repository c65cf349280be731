package service

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"cargodesk-backend/internal/model"

	"github.com/bwmarrin/discordgo"
)

// StaffAlertService posts a Discord embed when a staff member is notified
// about a customer message while offline. A nil *StaffAlertService is a
// valid no-op alerter.
type StaffAlertService struct {
	session   *discordgo.Session
	webhookID string
	token     string
}

// NewStaffAlertService parses a webhook URL of the form
// https://discord.com/api/webhooks/{id}/{token}. An empty URL disables alerts.
func NewStaffAlertService(webhookURL string) (*StaffAlertService, error) {
	if webhookURL == "" {
		return nil, nil
	}
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, err
	}
	session.Client.Timeout = 10 * time.Second
	return &StaffAlertService{session: session, webhookID: id, token: token}, nil
}

func parseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("discord webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("discord webhook url: missing /webhooks/{id}/{token} in %q", u.Path)
}

func (s *StaffAlertService) AlertOffline(chat *model.Chat, recipientID string, msg *model.Message) {
	if s == nil {
		return
	}
	s.send(staffAlertParams(chat, recipientID, msg))
}

func staffAlertParams(chat *model.Chat, recipientID string, msg *model.Message) *discordgo.WebhookParams {
	color := 0x3498DB // Blue
	if chat.Priority == "high" || chat.Priority == "urgent" {
		color = 0xE74C3C // Red
	}
	return &discordgo.WebhookParams{
		Username: "Support Desk",
		Embeds: []*discordgo.MessageEmbed{{
			Title:       fmt.Sprintf("New message in %s", chat.Title),
			Description: msg.Summary(),
			Color:       color,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "From", Value: msg.SenderName, Inline: true},
				{Name: "Staff", Value: recipientID, Inline: true},
				{Name: "Status", Value: string(chat.Status), Inline: true},
				{Name: "Chat", Value: chat.ID},
			},
			Footer:    &discordgo.MessageEmbedFooter{Text: "Support Desk"},
			Timestamp: msg.CreatedAt.UTC().Format(time.RFC3339),
		}},
	}
}

func (s *StaffAlertService) send(params *discordgo.WebhookParams) {
	go func() {
		if _, err := s.session.WebhookExecute(s.webhookID, s.token, false, params); err != nil {
			log.Printf("[discord-webhook] send error: %v", err)
		}
	}()
}
