package jackson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
)

const eventKeepAlive = 20 * time.Second

// StreamEvents serves the store as server-sent events: one `auth` event with
// the current snapshot, then one per change. Slow readers only see the
// latest snapshot.
func StreamEvents(store *Store, logger Logger) fiber.Handler {
	logger = normalizeLogger(logger)

	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		updates := make(chan AuthState, 1)
		unsubscribe := store.Subscribe(func(s AuthState) {
			offerLatest(updates, s)
		})

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer unsubscribe()

			if err := writeAuthEvent(w, store.Snapshot()); err != nil {
				return
			}

			ticker := time.NewTicker(eventKeepAlive)
			defer ticker.Stop()

			for {
				select {
				case state := <-updates:
					if err := writeAuthEvent(w, state); err != nil {
						logger.Debug("Event stream closed", "error", err)
						return
					}
				case <-ticker.C:
					if _, err := w.WriteString(": ping\n\n"); err != nil {
						return
					}
					if err := w.Flush(); err != nil {
						return
					}
				}
			}
		})

		return nil
	}
}

func offerLatest(ch chan AuthState, s AuthState) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

type flusher interface {
	io.Writer
	Flush() error
}

func writeAuthEvent(w flusher, state AuthState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "id: %d\nevent: auth\ndata: %s\n\n", state.Version, payload); err != nil {
		return err
	}
	return w.Flush()
}
