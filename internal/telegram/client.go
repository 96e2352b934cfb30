// Package telegram wraps the MTProto client with the operations the
// pipeline needs: channel resolution, bounded history fetches, live update
// subscription, and sends to the forward recipient.
package telegram

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/celestix/gotgproto/dispatcher/handlers"
	"github.com/celestix/gotgproto/dispatcher/handlers/filters"
	"github.com/celestix/gotgproto/ext"
	"github.com/gotd/td/tg"

	"github.com/telescout/telescout/internal/logger"
)

// historyBatch is the page size for history fetches; 100 is the API maximum.
const historyBatch = 100

// Client provides high-level Telegram operations over a Manager.
type Client struct {
	manager *Manager
	limiter *APILimiter
	log     *logger.Logger

	recipient     tg.InputPeerClass
	recipientName string
}

// NewClient creates a client wrapper. The recipient must be resolved with
// ResolveRecipient before Forward is used.
func NewClient(manager *Manager) *Client {
	return &Client{
		manager: manager,
		limiter: DefaultAPILimiter(),
		log:     logger.Get(),
	}
}

// Close stops the underlying client.
func (c *Client) Close() {
	if c.manager != nil {
		c.manager.Stop()
	}
}

// Status returns the connection status.
func (c *Client) Status() Status {
	return c.manager.Status()
}

// api returns the raw MTProto API surface.
func (c *Client) api() (*tg.Client, error) {
	proto := c.manager.Client()
	if proto == nil {
		return nil, ErrUnauthorized
	}
	return proto.API(), nil
}

// ResolveChannel resolves a channel identifier to a Channel. The identifier
// may be a username (with or without @) or a numeric id, including the
// negative -100... supergroup form.
func (c *Client) ResolveChannel(ctx context.Context, ident string) (*Channel, error) {
	ident = strings.TrimSpace(ident)

	if id, err := strconv.ParseInt(ident, 10, 64); err == nil {
		return c.resolveChannelID(ctx, normalizeChannelID(id))
	}

	return c.resolveChannelUsername(ctx, strings.TrimPrefix(ident, "@"))
}

// normalizeChannelID converts bot-API style negative ids to the positive
// MTProto channel id.
func normalizeChannelID(id int64) int64 {
	if id <= -1_000_000_000_000 {
		return -id - 1_000_000_000_000
	}
	if id < 0 {
		return -id
	}
	return id
}

func (c *Client) resolveChannelUsername(ctx context.Context, username string) (*Channel, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	api, err := c.api()
	if err != nil {
		return nil, err
	}

	resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: username,
	})
	if err != nil {
		if wait := floodWaitSeconds(err); wait > 0 {
			c.limiter.SetFloodWait(wait)
		}
		return nil, fmt.Errorf("resolve channel @%s: %w", username, err)
	}
	if len(resolved.Chats) == 0 {
		return nil, fmt.Errorf("channel not found: @%s", username)
	}

	ch, ok := resolved.Chats[0].(*tg.Channel)
	if !ok {
		return nil, fmt.Errorf("not a channel: @%s", username)
	}

	return &Channel{
		ID:         ch.ID,
		AccessHash: ch.AccessHash,
		Username:   username,
		Title:      ch.Title,
	}, nil
}

func (c *Client) resolveChannelID(ctx context.Context, id int64) (*Channel, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	api, err := c.api()
	if err != nil {
		return nil, err
	}

	// access hash 0 works when the session has the channel in a dialog,
	// which is the case for channels the account already follows
	chats, err := api.ChannelsGetChannels(ctx, []tg.InputChannelClass{
		&tg.InputChannel{ChannelID: id},
	})
	if err != nil {
		if wait := floodWaitSeconds(err); wait > 0 {
			c.limiter.SetFloodWait(wait)
		}
		return nil, fmt.Errorf("resolve channel %d: %w", id, err)
	}

	for _, chat := range chats.GetChats() {
		if ch, ok := chat.(*tg.Channel); ok && ch.ID == id {
			return &Channel{
				ID:         ch.ID,
				AccessHash: ch.AccessHash,
				Username:   ch.Username,
				Title:      ch.Title,
			}, nil
		}
	}
	return nil, fmt.Errorf("channel not found: %d", id)
}

// ResolveRecipient resolves the forward target and binds it to this client.
// Sending to oneself lands in Saved Messages, matching the common setup.
func (c *Client) ResolveRecipient(ctx context.Context, id int64) error {
	proto := c.manager.Client()
	if proto == nil {
		return ErrUnauthorized
	}

	if proto.Self != nil && proto.Self.ID == id {
		c.recipient = &tg.InputPeerSelf{}
		c.recipientName = "Saved Messages"
		c.log.Info().Int64("user_id", id).Msg("telegram: forward target is self")
		return nil
	}

	api := proto.API()
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	users, err := api.UsersGetUsers(ctx, []tg.InputUserClass{
		&tg.InputUser{UserID: id},
	})
	if err == nil && len(users) > 0 {
		if u, ok := users[0].(*tg.User); ok {
			c.recipient = &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}
			c.recipientName = u.FirstName
			c.log.Info().Int64("user_id", id).Str("name", u.FirstName).Msg("telegram: forward target resolved")
			return nil
		}
	}

	// fall back to a group/channel target
	ch, chErr := c.resolveChannelID(ctx, normalizeChannelID(id))
	if chErr == nil {
		c.recipient = &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
		c.recipientName = ch.Title
		c.log.Info().Int64("peer_id", id).Str("title", ch.Title).Msg("telegram: forward target is a group/channel")
		return nil
	}

	return fmt.Errorf("resolve recipient %d: %w", id, chErr)
}

// RecipientName returns the display name of the bound forward target.
func (c *Client) RecipientName() string {
	return c.recipientName
}

// HistorySince fetches the channel's messages on or after since, ascending
// by timestamp. Pages are walked newest-first and cut at the window edge.
func (c *Client) HistorySince(ctx context.Context, ch Channel, since time.Time) ([]Message, error) {
	api, err := c.api()
	if err != nil {
		return nil, err
	}

	peer := &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
	var collected []Message
	offsetID := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		history, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offsetID,
			Limit:    historyBatch,
		})
		if err != nil {
			if wait := floodWaitSeconds(err); wait > 0 {
				c.limiter.SetFloodWait(wait)
			}
			return nil, fmt.Errorf("get history for channel %d: %w", ch.ID, err)
		}

		page := extractMessages(history, ch.ID)
		if len(page) == 0 {
			break
		}

		done := false
		for _, msg := range page {
			if msg.Date.Before(since) {
				done = true
				continue
			}
			collected = append(collected, msg)
		}

		offsetID = page[len(page)-1].ID
		if done {
			break
		}
	}

	// pages arrive newest-first; the pipeline wants ascending time
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected, nil
}

// Subscribe registers a live update handler for the watched channels and
// returns the delivery channel. Messages arriving after ctx is done are
// discarded; slow consumers drop messages rather than block the update loop.
func (c *Client) Subscribe(ctx context.Context, channels []Channel) (<-chan Message, error) {
	proto := c.manager.Client()
	if proto == nil {
		return nil, ErrUnauthorized
	}

	watched := make(map[int64]bool, len(channels))
	for _, ch := range channels {
		watched[ch.ID] = true
	}

	out := make(chan Message, 256)

	proto.Dispatcher.AddHandler(handlers.NewMessage(filters.Message.All, func(_ *ext.Context, u *ext.Update) error {
		if ctx.Err() != nil {
			return nil
		}
		m := u.EffectiveMessage
		if m == nil {
			return nil
		}
		chat := u.EffectiveChat()
		if chat == nil || !watched[chat.GetID()] {
			return nil
		}

		msg := Message{
			ID:        m.ID,
			ChannelID: chat.GetID(),
			Text:      m.Text,
			Date:      time.Unix(int64(m.Date), 0).UTC(),
			HasMedia:  m.Media != nil,
		}

		select {
		case out <- msg:
		default:
			c.log.Warn().Int64("channel_id", msg.ChannelID).Int("message_id", msg.ID).
				Msg("telegram: update buffer full, dropping message")
		}
		return nil
	}))

	return out, nil
}

// Forward sends text to the bound recipient. FLOOD_WAIT responses update
// the API limiter and surface as a retryable FloodWaitError.
func (c *Client) Forward(ctx context.Context, text string) error {
	if c.recipient == nil {
		return fmt.Errorf("forward: recipient not resolved")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	api, err := c.api()
	if err != nil {
		return err
	}

	_, err = api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:      c.recipient,
		Message:   text,
		RandomID:  rand.Int63(),
		NoWebpage: true,
	})
	if err != nil {
		if wait := floodWaitSeconds(err); wait > 0 {
			c.limiter.SetFloodWait(wait)
			return &FloodWaitError{Seconds: wait}
		}
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// extractMessages converts an API history response to Message values,
// keeping the response's newest-first order.
func extractMessages(resp tg.MessagesMessagesClass, channelID int64) []Message {
	var raw []tg.MessageClass
	switch h := resp.(type) {
	case *tg.MessagesChannelMessages:
		raw = h.Messages
	case *tg.MessagesMessages:
		raw = h.Messages
	case *tg.MessagesMessagesSlice:
		raw = h.Messages
	}

	var out []Message
	for _, mc := range raw {
		m, ok := mc.(*tg.Message)
		if !ok {
			continue
		}
		out = append(out, Message{
			ID:        m.ID,
			ChannelID: channelID,
			Text:      m.Message,
			Date:      time.Unix(int64(m.Date), 0).UTC(),
			HasMedia:  m.Media != nil,
		})
	}
	return out
}
