package relay

import (
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// wsSession wraps a server-side websocket connection as an EventWriter.
// Broadcast fan-out and the bootstrap write can race, so writes are
// serialized here.
type wsSession struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSession) WriteEvent(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

// NewApp builds the relay server's fiber application: a websocket endpoint
// at /ws feeding the hub, and a health probe at /healthz.
func NewApp(hub *Hub, logger *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "sessions": hub.SessionCount()})
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		id := uuid.NewString()
		sess := &wsSession{conn: conn}

		hub.Register(id, sess)
		defer func() {
			hub.Unregister(id)
			conn.Close()
		}()

		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("session closed", slog.String("session_id", id))
				} else {
					logger.Warn("session read error",
						slog.String("session_id", id),
						slog.String("error", err.Error()),
					)
				}
				return
			}
			hub.HandleEvent(ev)
		}
	}))

	return app
}
