package main

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"
)

// Message is the envelope exchanged with websocket subscribers.
type Message struct {
	Type    string          `json:"type"`
	SheetID string          `json:"sheet_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func msgToBytes(msg *Message) []byte {
	return mustJSON(msg)
}

// Hub maintains the set of subscribed clients per sheet and fans applied
// changes out to them. Inbound SNAPSHOT messages flow the other way: the
// document owner pushing a full workbook copy into the snapshot store.
type Hub struct {
	// Registered clients per sheet. The empty sheet id is the firehose room.
	rooms map[string]map[*WSClient]bool

	broadcast  chan *Message
	register   chan *WSClient
	unregister chan *WSClient

	snapshots *SnapshotStore
	doc       *Workbook
}

func newHub(snapshots *SnapshotStore) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*WSClient]bool),
		broadcast:  make(chan *Message, 64),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		snapshots:  snapshots,
	}
}

// AttachDocument wires the live workbook in so new subscribers get an INIT
// copy of their sheet. Called once at startup, before run.
func (h *Hub) AttachDocument(doc *Workbook) {
	h.doc = doc
}

// Broadcast queues a message for fan-out. Never blocks the caller: if the
// hub is saturated the message is dropped, since every subscriber also
// receives full snapshots and will catch up.
func (h *Hub) Broadcast(msg *Message) {
	select {
	case h.broadcast <- msg:
	default:
		log.WithField("type", msg.Type).Warn("hub saturated, dropping broadcast")
	}
}

// HandleInbound processes a message received from a client. Only SNAPSHOT
// is meaningful inbound; everything else is ignored.
func (h *Hub) HandleInbound(msg *Message) {
	if msg.Type != "SNAPSHOT" {
		return
	}
	var body struct {
		Sheets []SheetSnapshot `json:"sheets"`
	}
	if err := json.Unmarshal(msg.Payload, &body); err != nil {
		log.WithError(err).Warn("bad SNAPSHOT payload")
		return
	}
	h.snapshots.ReplaceSnapshot(body.Sheets)
	log.WithField("sheets", len(body.Sheets)).Debug("snapshot replaced via websocket")
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			if h.rooms[client.sheetID] == nil {
				h.rooms[client.sheetID] = make(map[*WSClient]bool)
			}
			h.rooms[client.sheetID][client] = true
			log.WithField("sheet", client.sheetID).Debug("client subscribed")

			if h.doc != nil && client.sheetID != "" {
				if payload, ok := h.doc.SheetPayload(client.sheetID); ok {
					client.send <- msgToBytes(&Message{Type: "INIT", SheetID: client.sheetID, Payload: payload})
				}
			}

		case client := <-h.unregister:
			if clients, ok := h.rooms[client.sheetID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.sheetID)
					}
					log.WithField("sheet", client.sheetID).Debug("client unsubscribed")
				}
			}

		case message := <-h.broadcast:
			raw := msgToBytes(message)
			h.deliver(message.SheetID, raw)
			if message.SheetID != "" {
				h.deliver("", raw) // firehose subscribers see every sheet
			}
		}
	}
}

func (h *Hub) deliver(room string, raw []byte) {
	clients, ok := h.rooms[room]
	if !ok {
		return
	}
	for client := range clients {
		select {
		case client.send <- raw:
		default:
			close(client.send)
			delete(clients, client)
		}
	}
}
