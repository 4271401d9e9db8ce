// Package ws is the realtime gateway. A connection is admitted once with a
// valid access token; its room memberships are fixed at connect time except
// for ad hoc task room joins used by typing indicators.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/trackline/backend/internal/token"
	"github.com/trackline/backend/notify"
	"github.com/trackline/backend/repository"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

// clientMessage is a frame received from the browser.
type clientMessage struct {
	Event  string `json:"event"`
	TaskID string `json:"task_id"`
}

// serverMessage is a frame pushed to the browser.
type serverMessage struct {
	Event   string          `json:"event"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Gateway struct {
	tokens   *token.Manager
	users    repository.UserRepository
	teams    repository.TeamRepository
	broker   notify.Broker
	upgrader websocket.FastHTTPUpgrader
	logger   *zap.Logger
}

func NewGateway(tokens *token.Manager, users repository.UserRepository, teams repository.TeamRepository, broker notify.Broker, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		tokens: tokens,
		users:  users,
		teams:  teams,
		broker: broker,
		upgrader: websocket.FastHTTPUpgrader{
			CheckOrigin: func(_ *fasthttp.RequestCtx) bool { return true },
		},
		logger: logger,
	}
}

// Handle upgrades the request after verifying the caller. The identity is
// resolved exactly once here; nothing re-checks it for the connection's
// lifetime.
func (g *Gateway) Handle(ctx *fasthttp.RequestCtx) {
	tokenString := string(ctx.QueryArgs().Peek("token"))
	identity, err := g.tokens.VerifyAccess(tokenString)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		return
	}

	stdCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	user, userErr := g.users.GetByID(stdCtx, identity.UserID)
	var teamIDs []string
	if userErr == nil {
		teamIDs, userErr = g.teams.IDsForUser(stdCtx, identity.OrganizationID, identity.UserID)
	}
	cancel()
	if userErr != nil || !user.IsActive {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		return
	}

	err = g.upgrader.Upgrade(ctx, func(ws *websocket.Conn) {
		g.serve(ws, identity.UserID, identity.OrganizationID, teamIDs)
	})
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
	}
}

type connection struct {
	id     string
	ws     *websocket.Conn
	send   chan serverMessage
	rooms  map[string]struct{}
	mu     sync.Mutex
	closed bool
}

func (g *Gateway) serve(ws *websocket.Conn, userID, orgID string, teamIDs []string) {
	conn := &connection{
		id:    uuid.NewString(),
		ws:    ws,
		send:  make(chan serverMessage, sendBufferSize),
		rooms: make(map[string]struct{}),
	}

	g.join(conn, notify.UserRoom(userID))
	g.join(conn, notify.OrgRoom(orgID))
	for _, teamID := range teamIDs {
		g.join(conn, notify.TeamRoom(teamID))
	}

	g.logger.Info("socket connected", zap.String("user_id", userID), zap.Int("teams", len(teamIDs)))

	done := make(chan struct{})
	go g.writeLoop(conn, done)
	g.readLoop(conn, userID)

	close(done)
	for room := range conn.rooms {
		g.broker.Unsubscribe(room, conn.id)
	}
	conn.mu.Lock()
	conn.closed = true
	conn.mu.Unlock()

	g.logger.Info("socket disconnected", zap.String("user_id", userID))
}

// join subscribes the connection to a room. The handler drops events the
// connection itself originated and drops frames for slow consumers instead
// of blocking the dispatcher.
func (g *Gateway) join(conn *connection, room string) {
	if _, ok := conn.rooms[room]; ok {
		return
	}
	conn.rooms[room] = struct{}{}
	g.broker.Subscribe(room, conn.id, func(room string, event notify.Event) {
		if event.Origin == conn.id {
			return
		}
		conn.mu.Lock()
		closed := conn.closed
		conn.mu.Unlock()
		if closed {
			return
		}
		select {
		case conn.send <- serverMessage{Event: event.Name, Room: room, Payload: event.Payload}:
		default:
			g.logger.Warn("slow socket, frame dropped", zap.String("room", room))
		}
	})
}

func (g *Gateway) readLoop(conn *connection, userID string) {
	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.TaskID == "" {
			continue
		}

		switch msg.Event {
		case "join_task":
			g.join(conn, notify.TaskRoom(msg.TaskID))
		case "leave_task":
			room := notify.TaskRoom(msg.TaskID)
			delete(conn.rooms, room)
			g.broker.Unsubscribe(room, conn.id)
		case "typing_start", "typing_stop":
			g.publishTyping(conn, userID, msg.TaskID, msg.Event == "typing_start")
		}
	}
}

func (g *Gateway) publishTyping(conn *connection, userID, taskID string, typing bool) {
	event := notify.NewEvent(notify.EventUserTyping, map[string]interface{}{
		"user_id": userID,
		"task_id": taskID,
		"typing":  typing,
	})
	event.Origin = conn.id

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := g.broker.Publish(ctx, notify.TaskRoom(taskID), event); err != nil {
		g.logger.Warn("typing broadcast failed", zap.String("task_id", taskID), zap.Error(err))
	}
}

func (g *Gateway) writeLoop(conn *connection, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg := <-conn.send:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
