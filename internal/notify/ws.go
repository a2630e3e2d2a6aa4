package notify

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // OK for demo; restrict in production
	},
}

// welcomeFrame tells a fresh client which chapter events it will receive.
type welcomeFrame struct {
	Type   string   `json:"type"`
	Events []string `json:"events"`
}

// WSHandler upgrades the connection, announces the event vocabulary, and
// keeps the client registered until it goes away. Incoming messages are
// ignored; the stream is one-way.
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		hub.Add(ws)
		log.Println("[notify] reader connected")

		_ = ws.WriteJSON(welcomeFrame{
			Type: "welcome",
			Events: []string{
				EventChapterPublished,
				EventChapterUpdated,
				EventChapterDeleted,
			},
		})

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.Remove(ws)
		log.Println("[notify] reader disconnected")
	}
}
