// Package gateway connects the Discord session to the dispatcher. It
// translates interaction events into the platform-neutral types,
// renders the returned instructions onto messages, and pushes
// timer-driven session updates back into channels.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"facility-bot/internal/config"
	"facility-bot/internal/interaction"
)

// Gateway owns the Discord session and the event translation in both
// directions. It also satisfies the notifier interfaces of the
// session-based games, which need to update their hosting messages
// outside of any interaction exchange.
type Gateway struct {
	session    *discordgo.Session
	dispatcher *interaction.Dispatcher
	cfg        *config.Config
	log        zerolog.Logger
}

// New creates a Gateway over a fresh Discord session. The session is
// not opened yet; call Start once the dispatcher is fully wired.
func New(cfg *config.Config, dispatcher *interaction.Dispatcher, log zerolog.Logger) (*Gateway, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	session, err := discordgo.New("Bot " + cfg.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	g := &Gateway{
		session:    session,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log.With().Str("component", "gateway").Logger(),
	}
	session.AddHandler(g.onInteraction)
	return g, nil
}

// Start opens the websocket connection.
func (g *Gateway) Start() error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	g.log.Info().Msg("Gateway connected")
	return nil
}

// Stop closes the websocket connection.
func (g *Gateway) Stop() {
	if err := g.session.Close(); err != nil {
		g.log.Error().Err(err).Msg("Failed to close discord session")
	}
}

// onInteraction is the single entry point for all interaction events.
func (g *Gateway) onInteraction(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	if !g.guildAllowed(ic) {
		g.log.Warn().
			Str("guild_id", ic.GuildID).
			Str("user_id", senderID(ic)).
			Msg("Interaction from non-whitelisted guild")
		g.respondEphemeral(ic, "This bot is not available here.")
		return
	}

	ctx := context.Background()
	switch ic.Type {
	case discordgo.InteractionApplicationCommand:
		g.handleCommand(ctx, ic)
	case discordgo.InteractionMessageComponent:
		g.handleComponent(ctx, ic)
	}
}

// guildAllowed checks the guild whitelist. Direct messages pass; the
// commands themselves are only installed in guilds.
func (g *Gateway) guildAllowed(ic *discordgo.InteractionCreate) bool {
	if ic.GuildID == "" {
		return true
	}
	return g.cfg.IsGuildAllowed(snowflake(ic.GuildID))
}

func (g *Gateway) handleCommand(ctx context.Context, ic *discordgo.InteractionCreate) {
	data := ic.ApplicationCommandData()
	ev := interaction.CommandInvoked{
		ChannelID: snowflake(ic.ChannelID),
		UserID:    snowflake(senderID(ic)),
		Name:      data.Name,
		Options:   flattenOptions(data.Options),
	}

	g.log.Debug().
		Str("command", ev.Name).
		Int64("user_id", ev.UserID).
		Int64("channel_id", ev.ChannelID).
		Msg("Command received")

	render, err := g.dispatcher.DispatchCommand(ctx, ev)
	if err != nil {
		g.log.Warn().Err(err).Str("command", ev.Name).Msg("Command dispatch failed")
		g.respondEphemeral(ic, dispatchErrorText(err))
		return
	}
	g.respondCommand(ic, render)
}

func (g *Gateway) handleComponent(ctx context.Context, ic *discordgo.InteractionCreate) {
	ev := interaction.ComponentActivated{
		ChannelID: snowflake(ic.ChannelID),
		MessageID: snowflake(ic.Message.ID),
		UserID:    snowflake(senderID(ic)),
		CustomID:  ic.MessageComponentData().CustomID,
	}

	g.log.Debug().
		Str("custom_id", ev.CustomID).
		Int64("user_id", ev.UserID).
		Int64("message_id", ev.MessageID).
		Msg("Component press received")

	render, err := g.dispatcher.DispatchComponent(ctx, ev)
	if err != nil {
		g.log.Warn().Err(err).Str("custom_id", ev.CustomID).Msg("Component dispatch failed")
		g.respondEphemeral(ic, dispatchErrorText(err))
		return
	}

	if render.Ephemeral {
		// Whispered reply; the hosting message stays as it is.
		g.respondEphemeral(ic, render.Text)
		return
	}

	// Non-ephemeral component renders rewrite the hosting message in
	// place. An empty control set strips the buttons, closing the
	// session visually.
	controls := render.Controls
	if render.DeferredControls != nil {
		controls = render.DeferredControls(ev.MessageID)
	}
	components := buttonRows(controls)
	err = g.session.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    render.Text,
			Components: components,
		},
	})
	if err != nil {
		g.log.Error().Err(err).Str("custom_id", ev.CustomID).Msg("Failed to update message")
	}
}

// respondCommand sends the initial response for a command. When the
// render defers its controls on the hosting message id, the message
// is created bare first, then edited once its id is known.
func (g *Gateway) respondCommand(ic *discordgo.InteractionCreate, render interaction.Render) {
	data := &discordgo.InteractionResponseData{
		Content:    render.Text,
		Components: buttonRows(render.Controls),
	}
	if render.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}

	err := g.session.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		g.log.Error().Err(err).Msg("Failed to respond to command")
		g.discard(render)
		return
	}

	if render.DeferredControls == nil || render.Ephemeral {
		return
	}

	msg, err := g.session.InteractionResponse(ic.Interaction)
	if err != nil {
		g.log.Error().Err(err).Msg("Failed to fetch interaction response message")
		g.discard(render)
		return
	}
	components := buttonRows(render.DeferredControls(snowflake(msg.ID)))
	_, err = g.session.InteractionResponseEdit(ic.Interaction, &discordgo.WebhookEdit{
		Components: &components,
	})
	if err != nil {
		g.log.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to attach controls")
	}
}

// discard unwinds a render whose message never made it out. Sessions
// that debited a stake at open use this to hand it back.
func (g *Gateway) discard(render interaction.Render) {
	if render.Discard != nil {
		render.Discard()
	}
}

// respondEphemeral sends a whispered plain-text reply.
func (g *Gateway) respondEphemeral(ic *discordgo.InteractionCreate, text string) {
	err := g.session.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		g.log.Error().Err(err).Msg("Failed to send ephemeral response")
	}
}

// Publish edits a session's hosting message outside of an interaction
// exchange. A final update also strips the controls. Implements the
// lobby notifier.
func (g *Gateway) Publish(channelID, messageID int64, text string, final bool) {
	edit := &discordgo.MessageEdit{
		Channel: strconv.FormatInt(channelID, 10),
		ID:      strconv.FormatInt(messageID, 10),
		Content: &text,
	}
	if final {
		empty := []discordgo.MessageComponent{}
		edit.Components = &empty
	}
	if _, err := g.session.ChannelMessageEditComplex(edit); err != nil {
		g.log.Error().Err(err).
			Int64("channel_id", channelID).
			Int64("message_id", messageID).
			Msg("Failed to publish session update")
	}
}

// RoundClosed posts a round result to the channel. Implements the
// pari-mutuel notifier.
func (g *Gateway) RoundClosed(channelID int64, text string) {
	if _, err := g.session.ChannelMessageSend(strconv.FormatInt(channelID, 10), text); err != nil {
		g.log.Error().Err(err).
			Int64("channel_id", channelID).
			Msg("Failed to post round result")
	}
}

// dispatchErrorText maps dispatcher-level errors to user text. Handler
// errors are rendered inside the handlers; only routing and decode
// failures surface here.
func dispatchErrorText(err error) string {
	if errors.Is(err, interaction.ErrInvalidSession) {
		return "This session has expired. Start a new one."
	}
	return "Something went wrong. Try again in a moment."
}

// senderID returns the acting user's snowflake, which lives in
// different fields for guild and direct-message interactions.
func senderID(ic *discordgo.InteractionCreate) string {
	if ic.Member != nil && ic.Member.User != nil {
		return ic.Member.User.ID
	}
	if ic.User != nil {
		return ic.User.ID
	}
	return ""
}

// snowflake parses a Discord id string. Malformed ids become zero
// and fail downstream lookups rather than crashing the event loop.
func snowflake(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// flattenOptions stringifies command options; handlers parse what
// they need and the codec keeps everything else out of this layer.
func flattenOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]string {
	out := make(map[string]string, len(opts))
	for _, opt := range opts {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString:
			out[opt.Name] = opt.StringValue()
		case discordgo.ApplicationCommandOptionInteger:
			out[opt.Name] = strconv.FormatInt(opt.IntValue(), 10)
		case discordgo.ApplicationCommandOptionBoolean:
			out[opt.Name] = strconv.FormatBool(opt.BoolValue())
		case discordgo.ApplicationCommandOptionUser:
			if id, ok := opt.Value.(string); ok {
				out[opt.Name] = id
			}
		default:
			out[opt.Name] = fmt.Sprint(opt.Value)
		}
	}
	return out
}

// buttonRows lays controls out in action rows of at most five.
func buttonRows(controls []interaction.Control) []discordgo.MessageComponent {
	if len(controls) == 0 {
		return []discordgo.MessageComponent{}
	}
	var rows []discordgo.MessageComponent
	for len(controls) > 0 {
		n := len(controls)
		if n > 5 {
			n = 5
		}
		row := discordgo.ActionsRow{}
		for _, c := range controls[:n] {
			row.Components = append(row.Components, discordgo.Button{
				Label:    c.Label,
				Style:    buttonStyle(c.Style),
				CustomID: c.ID,
			})
		}
		rows = append(rows, row)
		controls = controls[n:]
	}
	return rows
}

func buttonStyle(s interaction.ControlStyle) discordgo.ButtonStyle {
	switch s {
	case interaction.StylePositive:
		return discordgo.SuccessButton
	case interaction.StyleDanger:
		return discordgo.DangerButton
	default:
		return discordgo.SecondaryButton
	}
}
