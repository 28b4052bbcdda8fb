package useragent

import (
	"context"
	"sync"
)

// PopupRequest asks the user agent to visit URL.
type PopupRequest struct {
	URL    string
	Nonce  string
	Action string
}

// Opener presents a URL to the user, usually by publishing it to the page.
type Opener interface {
	Open(ctx context.Context, req PopupRequest)
}

type OpenerFunc func(ctx context.Context, req PopupRequest)

func (f OpenerFunc) Open(ctx context.Context, req PopupRequest) {
	f(ctx, req)
}

type noopOpener struct{}

func (noopOpener) Open(context.Context, PopupRequest) {}

type completion struct {
	code string
	err  error
}

// broker pairs blocked logins with their redirect callbacks by nonce.
type broker struct {
	mu      sync.Mutex
	pending map[string]chan completion
}

func newBroker() *broker {
	return &broker{pending: map[string]chan completion{}}
}

func (b *broker) register(nonce string) <-chan completion {
	ch := make(chan completion, 1)
	b.mu.Lock()
	b.pending[nonce] = ch
	b.mu.Unlock()
	return ch
}

func (b *broker) release(nonce string) {
	b.mu.Lock()
	delete(b.pending, nonce)
	b.mu.Unlock()
}

// resolve hands c to the waiting login; false when nobody waits for nonce.
func (b *broker) resolve(nonce string, c completion) bool {
	b.mu.Lock()
	ch, ok := b.pending[nonce]
	delete(b.pending, nonce)
	b.mu.Unlock()

	if !ok {
		return false
	}
	ch <- c
	return true
}

func (b *broker) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// cancelAll fails every waiting login with err.
func (b *broker) cancelAll(err error) int {
	b.mu.Lock()
	pending := b.pending
	b.pending = map[string]chan completion{}
	b.mu.Unlock()

	for _, ch := range pending {
		ch <- completion{err: err}
	}
	return len(pending)
}
