package discord

import (
	"log"

	"cargodesk-backend/internal/service"

	"github.com/bwmarrin/discordgo"
)

// Bot answers staff prefix commands in the support Discord server.
type Bot struct {
	session  *discordgo.Session
	commands *CommandHandler
}

// NewBot creates the bot. An empty token disables it and returns nil.
func NewBot(token string, support *service.Support, online OnlineCounter) (*Bot, error) {
	if token == "" {
		log.Println("[discord-bot] No bot token configured, bot disabled")
		return nil, nil
	}

	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	s.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	bot := &Bot{
		session:  s,
		commands: NewCommandHandler(support, online),
	}

	// Register message handler for prefix commands
	s.AddHandler(bot.onMessageCreate)

	return bot, nil
}

// Start opens the Discord gateway connection.
func (b *Bot) Start() error {
	if b == nil || b.session == nil {
		return nil
	}
	if err := b.session.Open(); err != nil {
		return err
	}
	log.Println("[discord-bot] Bot connected to Discord")
	return nil
}

// Stop closes the Discord gateway connection.
func (b *Bot) Stop() {
	if b == nil || b.session == nil {
		return
	}
	_ = b.session.Close()
	log.Println("[discord-bot] Bot disconnected")
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore own messages
	if m.Author == nil || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}
	if len(m.Content) == 0 || m.Content[0] != '!' {
		return
	}
	embed := b.commands.Handle(m.Content)
	if embed == nil {
		return
	}
	if _, err := s.ChannelMessageSendEmbed(m.ChannelID, embed); err != nil {
		log.Printf("[discord-bot] reply in %s: %v", m.ChannelID, err)
	}
}
