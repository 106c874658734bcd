package bot

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jkeevk/VKinder/internal/matchmaker"
	"github.com/jkeevk/VKinder/internal/vk"
)

// perUserQueue is the backlog allowed per requester before the main
// loop blocks on them.
const perUserQueue = 16

// Transport delivers outbound messages. *vk.Client satisfies it;
// tests plug in a recorder.
type Transport interface {
	SendMessage(ctx context.Context, userID int64, text, keyboard, attachment string) error
}

// Bot fans inbound events out to one worker per requester, so events
// for the same user are processed strictly one at a time while
// distinct users run concurrently. Sends are fire-and-forget:
// delivery failures are logged and never fed back into session state.
type Bot struct {
	dispatcher *matchmaker.Dispatcher
	transport  Transport
	log        *slog.Logger

	mu     sync.Mutex
	queues map[int64]chan vk.Event
	wg     sync.WaitGroup
}

func New(dispatcher *matchmaker.Dispatcher, transport Transport, log *slog.Logger) *Bot {
	return &Bot{
		dispatcher: dispatcher,
		transport:  transport,
		log:        log,
		queues:     make(map[int64]chan vk.Event),
	}
}

// Run consumes events until the channel closes or the context is
// canceled, then drains the per-user workers.
func (b *Bot) Run(ctx context.Context, events <-chan vk.Event) {
	defer b.drain()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if !ev.IsNewMessage || !ev.ToMe {
				continue
			}
			b.route(ctx, ev)
		}
	}
}

// route hands the event to the requester's worker, starting one on
// first contact.
func (b *Bot) route(ctx context.Context, ev vk.Event) {
	b.mu.Lock()
	queue, ok := b.queues[ev.UserID]
	if !ok {
		queue = make(chan vk.Event, perUserQueue)
		b.queues[ev.UserID] = queue
		b.wg.Add(1)
		go b.worker(ctx, queue)
	}
	b.mu.Unlock()

	select {
	case queue <- ev:
	case <-ctx.Done():
	}
}

// worker serializes all events of one requester.
func (b *Bot) worker(ctx context.Context, queue <-chan vk.Event) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-queue:
			if !open {
				return
			}
			b.handle(ctx, ev)
		}
	}
}

func (b *Bot) handle(ctx context.Context, ev vk.Event) {
	for _, out := range b.dispatcher.HandleEvent(ctx, ev) {
		if err := b.transport.SendMessage(ctx, out.UserID, out.Text, out.Keyboard, out.Attachment); err != nil {
			b.log.Warn("send failed", "user_id", out.UserID, "err", err)
		}
	}
}

func (b *Bot) drain() {
	b.mu.Lock()
	for _, queue := range b.queues {
		close(queue)
	}
	b.queues = make(map[int64]chan vk.Event)
	b.mu.Unlock()
	b.wg.Wait()
}
