package connector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Discord posts to a configured channel through a bot session. Unlike the
// REST connectors it rides on discordgo, which manages rate limiting
// internally.
type Discord struct {
	channelID string

	mu      sync.Mutex
	session *discordgo.Session
}

func NewDiscord(channelID string) *Discord {
	return &Discord{channelID: channelID}
}

func (d *Discord) Platform() string    { return "discord" }
func (d *Discord) DisplayName() string { return "Discord" }
func (d *Discord) Category() Category  { return CategoryCommunity }

func (d *Discord) Capabilities() Capabilities {
	return Capabilities{
		MaxContentLength: 2000,
		SupportsImages:   true,
		SupportsMentions: true,
		SupportsMarkdown: true,
		SupportsDelete:   true,
		ImageFormats:     []string{"jpg", "jpeg", "png", "gif", "webp"},
		MaxImagesPerPost: 1,
	}
}

func (d *Discord) Authenticate(ctx context.Context, creds Credentials) error {
	token := creds.Extra["bot_token"]
	if token == "" {
		return NewError(KindAuth, "discord", "bot token is required")
	}
	if d.channelID == "" {
		return NewError(KindValidation, "discord", "channel_id is required in platform configuration")
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return WrapError(KindAuth, "discord", "failed to create session", err)
	}

	user, err := session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return WrapError(KindAuth, "discord", "token validation failed", err)
	}

	d.mu.Lock()
	d.session = session
	d.mu.Unlock()

	slog.Debug("Discord authenticated", "bot", user.Username, "channel_id", d.channelID)
	return nil
}

func (d *Discord) Publish(ctx context.Context, content AdaptedContent) (PublishResult, error) {
	session, err := d.activeSession()
	if err != nil {
		return PublishResult{}, err
	}

	send := &discordgo.MessageSend{Content: content.Body}
	if len(content.Images) > 0 {
		send.Embed = &discordgo.MessageEmbed{
			Title: content.Title,
			Image: &discordgo.MessageEmbedImage{URL: content.Images[0]},
		}
	}

	message, err := session.ChannelMessageSendComplex(d.channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return PublishResult{}, classifyDiscordError(err)
	}

	return PublishResult{
		Success:        true,
		PlatformPostID: message.ID,
		PlatformURL:    fmt.Sprintf("https://discord.com/channels/%s/%s/%s", message.GuildID, message.ChannelID, message.ID),
	}, nil
}

func (d *Discord) Delete(ctx context.Context, externalID string) error {
	session, err := d.activeSession()
	if err != nil {
		return err
	}
	if err := session.ChannelMessageDelete(d.channelID, externalID, discordgo.WithContext(ctx)); err != nil {
		return classifyDiscordError(err)
	}
	return nil
}

func (d *Discord) Health(ctx context.Context) Status {
	started := time.Now()
	status := Status{CheckedAt: started.UTC()}

	session, err := d.activeSession()
	if err != nil {
		status.Error = err.Error()
		return status
	}

	if _, err := session.GatewayBot(discordgo.WithContext(ctx)); err != nil {
		status.Error = err.Error()
		return status
	}

	status.Online = true
	status.Latency = time.Since(started)
	return status
}

func (d *Discord) RateLimit() RateLimitState {
	// discordgo throttles requests itself; there is no advisory state to
	// surface to the queue.
	return RateLimitState{}
}

func (d *Discord) activeSession() (*discordgo.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil, NewError(KindAuth, "discord", "not authenticated")
	}
	return d.session, nil
}

func classifyDiscordError(err error) *Error {
	if restErr, ok := err.(*discordgo.RESTError); ok && restErr.Response != nil {
		return classifyStatus("discord", restErr.Response.StatusCode, restErr.Error(), time.Time{})
	}
	return WrapError(KindTransient, "discord", "request failed", err)
}
