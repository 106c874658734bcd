package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jkeevk/VKinder/internal/logger"
)

const longPollWait = 25

// chat peer ids start at 2_000_000_000; everything below is a
// private conversation addressed directly to the bot
const chatPeerBase = 2_000_000_000

// LongPoller consumes the Bots Long Poll API and turns raw updates
// into Events.
type LongPoller struct {
	client  *Client
	groupID int64

	server string
	key    string
	ts     string
}

func NewLongPoller(client *Client, groupID int64) *LongPoller {
	return &LongPoller{client: client, groupID: groupID}
}

// connect fetches a fresh long poll server, key and cursor.
func (lp *LongPoller) connect(ctx context.Context) error {
	params := url.Values{}
	params.Set("group_id", strconv.FormatInt(lp.groupID, 10))

	var result struct {
		Server string `json:"server"`
		Key    string `json:"key"`
		TS     string `json:"ts"`
	}
	if err := lp.client.call(ctx, lp.client.groupToken, "groups.getLongPollServer", params, &result); err != nil {
		return fmt.Errorf("get long poll server: %w", err)
	}
	lp.server = result.Server
	lp.key = result.Key
	lp.ts = result.TS
	return nil
}

// Poll blocks on one long poll cycle and returns the events it
// produced. A failed cursor is handled by reconnecting, never by
// returning an error to the caller loop.
func (lp *LongPoller) Poll(ctx context.Context) ([]Event, error) {
	if lp.server == "" {
		if err := lp.connect(ctx); err != nil {
			return nil, err
		}
	}

	pollURL := fmt.Sprintf("%s?act=a_check&key=%s&ts=%s&wait=%d", lp.server, url.QueryEscape(lp.key), url.QueryEscape(lp.ts), longPollWait)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := lp.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("long poll: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("long poll read: %w", err)
	}

	var payload struct {
		Failed  int             `json:"failed"`
		TS      string          `json:"ts"`
		Updates []longPollUpdate `json:"updates"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("long poll decode: %w", err)
	}

	switch payload.Failed {
	case 0:
	case 1:
		lp.ts = payload.TS
		return nil, nil
	default:
		// key expired or data lost, reconnect with a fresh cursor
		lp.server = ""
		return nil, nil
	}

	lp.ts = payload.TS

	events := make([]Event, 0, len(payload.Updates))
	for _, upd := range payload.Updates {
		if ev, ok := upd.toEvent(); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

// Run polls until the context is canceled, sending events to ch.
func (lp *LongPoller) Run(ctx context.Context, ch chan<- Event) {
	for {
		events, err := lp.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("long poll cycle failed", "err", err)
			continue
		}
		for _, ev := range events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

type longPollUpdate struct {
	Type   string `json:"type"`
	Object struct {
		Message struct {
			FromID int64  `json:"from_id"`
			PeerID int64  `json:"peer_id"`
			Text   string `json:"text"`
		} `json:"message"`
	} `json:"object"`
}

func (u longPollUpdate) toEvent() (Event, bool) {
	if u.Type != "message_new" {
		return Event{}, false
	}
	msg := u.Object.Message
	return Event{
		IsNewMessage: true,
		ToMe:         msg.PeerID == msg.FromID && msg.PeerID < chatPeerBase,
		UserID:       msg.FromID,
		Text:         msg.Text,
	}, true
}
