package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cargodesk-backend/internal/model"
	"cargodesk-backend/internal/service"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
)

const (
	colorInfo  = 0x3498DB
	colorOK    = 0x2ECC71
	colorError = 0xE74C3C
)

// OnlineCounter reports live realtime connections on this instance.
type OnlineCounter interface {
	OnlineCount() int
}

// CommandHandler turns prefix commands into reply embeds. It only reads
// support state.
type CommandHandler struct {
	support *service.Support
	online  OnlineCounter
	now     func() time.Time
}

func NewCommandHandler(support *service.Support, online OnlineCounter) *CommandHandler {
	return &CommandHandler{support: support, online: online, now: time.Now}
}

// Handle returns the reply for content, or nil if it is not a known command.
func (h *CommandHandler) Handle(content string) *discordgo.MessageEmbed {
	parts := strings.Fields(content)
	if len(parts) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch strings.ToLower(parts[0]) {
	case "!queue":
		return h.cmdQueue(ctx)
	case "!chat":
		if len(parts) < 2 {
			return errorEmbed("Usage: `!chat <chat id>`")
		}
		return h.cmdChat(ctx, parts[1])
	case "!help":
		return helpEmbed()
	}
	return nil
}

func (h *CommandHandler) cmdQueue(ctx context.Context) *discordgo.MessageEmbed {
	counts, err := h.support.Directory.Counts(ctx)
	if err != nil {
		return errorEmbed("Could not load the support queue.")
	}
	online := 0
	if h.online != nil {
		online = h.online.OnlineCount()
	}

	return &discordgo.MessageEmbed{
		Title: "Support queue",
		Color: colorOK,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Open", Value: humanize.Comma(int64(counts.Open)), Inline: true},
			{Name: "Pending", Value: humanize.Comma(int64(counts.Pending)), Inline: true},
			{Name: "Closed", Value: humanize.Comma(int64(counts.Closed)), Inline: true},
			{Name: "Connected", Value: humanize.Comma(int64(online)), Inline: true},
		},
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: "Support Desk"},
	}
}

func (h *CommandHandler) cmdChat(ctx context.Context, chatID string) *discordgo.MessageEmbed {
	exp, err := h.support.Lifecycle.ExportByID(ctx, chatID)
	if errors.Is(err, service.ErrNotFound) {
		return errorEmbed(fmt.Sprintf("Chat `%s` not found.", chatID))
	}
	if err != nil {
		return errorEmbed("Could not load the chat.")
	}
	return chatEmbed(exp, h.now())
}

func chatEmbed(exp *model.ChatExport, now time.Time) *discordgo.MessageEmbed {
	chat := exp.Chat
	assignee := "Unassigned"
	if chat.AssignedStaffID != nil {
		assignee = *chat.AssignedStaffID
	}
	last := "No messages yet"
	if chat.LastMessageAt != nil {
		last = fmt.Sprintf("%s (%s)", chat.LastMessage, humanize.RelTime(*chat.LastMessageAt, now, "ago", "from now"))
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Status", Value: string(chat.Status), Inline: true},
		{Name: "Priority", Value: chat.Priority, Inline: true},
		{Name: "Staff", Value: assignee, Inline: true},
		{Name: "Messages", Value: humanize.Comma(int64(len(exp.Messages))), Inline: true},
		{Name: "Participants", Value: strings.Join(exp.Participants, ", "), Inline: true},
	}
	if exp.OrderRef != nil {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Order", Value: *exp.OrderRef, Inline: true})
	}
	fields = append(fields, &discordgo.MessageEmbedField{Name: "Last message", Value: last})

	return &discordgo.MessageEmbed{
		Title:     chat.Title,
		Color:     colorInfo,
		Fields:    fields,
		Timestamp: now.UTC().Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: chat.ID},
	}
}

func helpEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Support Desk bot",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "`!queue`", Value: "Chat counts by status"},
			{Name: "`!chat <id>`", Value: "Summary of one chat"},
			{Name: "`!help`", Value: "This help"},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Support Desk"},
	}
}

func errorEmbed(text string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: text, Color: colorError}
}
