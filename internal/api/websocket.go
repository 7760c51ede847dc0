package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"quantcore/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsTopics lists the bus topics a websocket client may follow.
var wsTopics = map[string]events.Event{
	"bars":       events.EventBarClosed,
	"fills":      events.EventOrderFilled,
	"rejections": events.EventRiskRejected,
	"exposure":   events.EventExposureChanged,
}

func (s *Server) websocket(c *gin.Context) {
	topic, ok := wsTopics[c.DefaultQuery("topic", "bars")]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown topic"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	stream, unsub := s.Bus.Subscribe(topic, 100)
	defer unsub()

	for msg := range stream {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}
