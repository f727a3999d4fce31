package websocket

import (
	"canvas-editor/collab"
	"canvas-editor/core"
	"canvas-editor/editor"
	"canvas-editor/identity"
	"canvas-editor/middleware"
	"canvas-editor/weather"
	"canvas-editor/workspace"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// Events pushed to a joined socket.
const (
	EventState   = "state"
	EventChat    = "chat"
	EventWeather = "weather"
	// EventSignedOut tells a socket its workspace is gone. It must join again
	// with a new token.
	EventSignedOut = "signed-out"
)

var ErrNotJoined = errors.New("socket has not joined")

type ackInvoker func(err error, payload map[string]any)

type TokenParser interface {
	Parse(token string) (*identity.Claims, error)
}

type emitter interface {
	Emit(ev string, args ...any) error
}

// SetupSocketIO serves the live editor channel. A client emits "join" with
// its session token and then receives state, chat and weather updates for
// its workspace until it disconnects.
func SetupSocketIO(tokens TokenParser, workspaces middleware.WorkspaceOpener) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	localhostOrigin := regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)
	opts.SetCors(&types.Cors{
		Origin:      []any{localhostOrigin},
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		c := newConn(socket, tokens, workspaces)
		log := logrus.WithField("socket_id", socket.Id())
		log.Debug("Socket connected")

		socket.On("join", func(datas ...any) {
			ack, args := extractAck(datas)
			token := firstString(args)
			userID, err := c.join(token)
			if err != nil {
				log.WithError(err).Warn("Join rejected")
				respondWithAck(socket, ack, "join-ack", map[string]any{"status": "error", "error": err.Error()}, err)
				return
			}
			socket.Join(socketio.Room("user:" + userID))
			respondWithAck(socket, ack, "join-ack", map[string]any{"status": "ok", "userId": userID}, nil)
		})

		socket.On("cursor-move", func(datas ...any) {
			_, args := extractAck(datas)
			if len(args) == 0 {
				return
			}
			if err := c.moveCursor(args[0]); err != nil {
				log.WithError(err).Debug("Ignored cursor move")
			}
		})

		socket.On("disconnect", func(datas ...any) {
			c.close()
			log.Debug("Socket disconnected")
			socket.RemoveAllListeners("")
		})
	})

	return srv
}

// conn is the server side of one socket.
type conn struct {
	out        emitter
	tokens     TokenParser
	workspaces middleware.WorkspaceOpener

	mu      sync.Mutex
	ws      *workspace.Workspace
	cleanup []func()
}

func newConn(out emitter, tokens TokenParser, workspaces middleware.WorkspaceOpener) *conn {
	return &conn{out: out, tokens: tokens, workspaces: workspaces}
}

// join binds the socket to the token's workspace and pushes the current
// state. Joining again switches to the new token's workspace.
func (c *conn) join(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token is required")
	}
	claims, err := c.tokens.Parse(token)
	if err != nil {
		return "", err
	}
	ws, err := c.workspaces.Open(context.Background(), claims.Profile())
	if err != nil {
		return "", err
	}

	c.close()

	stop := make(chan struct{})
	c.mu.Lock()
	c.ws = ws
	c.cleanup = append(c.cleanup,
		ws.Editor.Subscribe(func(st editor.State) { c.emit(EventState, st) }),
		ws.Collab.Subscribe(func(v collab.View) { c.emit(EventChat, v) }),
		ws.Weather.Subscribe(func(s weather.Snapshot) { c.emit(EventWeather, s) }),
		ws.Attach(),
		func() { close(stop) },
	)
	c.mu.Unlock()
	go c.watch(ws, stop)

	c.emit(EventState, ws.Editor.State())
	c.emit(EventChat, ws.Collab.View())
	c.emit(EventWeather, ws.Weather.Snapshot())

	logrus.WithFields(logrus.Fields{"user_id": ws.User.ID, "viewers": ws.Viewers()}).Info("Socket joined workspace")
	return ws.User.ID, nil
}

// watch signs the socket out when ws is dropped while it is still joined.
func (c *conn) watch(ws *workspace.Workspace, stop <-chan struct{}) {
	select {
	case <-stop:
		return
	case <-ws.Done():
	}

	c.mu.Lock()
	current := c.ws == ws
	c.mu.Unlock()
	if !current {
		return
	}
	c.close()
	c.emit(EventSignedOut, map[string]any{"userId": ws.User.ID})
	logrus.WithField("user_id", ws.User.ID).Info("Socket signed out with its workspace")
}

// moveCursor records the pointer of the joined user. arg is the decoded
// {x, y} payload.
func (c *conn) moveCursor(arg any) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotJoined
	}

	var pos core.CursorPosition
	if err := decodeArg(arg, &pos); err != nil {
		return err
	}
	pos.UserID, pos.UserName = ws.User.ID, ws.User.Name
	ws.Collab.UpdateCursor(pos)
	return nil
}

// close unsubscribes and detaches from the workspace. The user's cursor is
// removed with the socket.
func (c *conn) close() {
	c.mu.Lock()
	ws, fns := c.ws, c.cleanup
	c.ws, c.cleanup = nil, nil
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	if ws != nil {
		ws.Collab.RemoveCursor(ws.User.ID)
	}
}

func (c *conn) emit(event string, payload any) {
	if err := c.out.Emit(event, payload); err != nil {
		logrus.WithError(err).WithField("event", event).Debug("Emit failed")
	}
}

// decodeArg converts a decoded socket payload into v.
func decodeArg(arg any, v any) error {
	raw, err := json.Marshal(arg)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func firstString(args []any) string {
	if len(args) == 0 {
		return ""
	}
	s, _ := args[0].(string)
	return s
}

func extractAck(datas []any) (ack ackInvoker, args []any) {
	if len(datas) == 0 {
		return nil, datas
	}
	ack = wrapAck(datas[len(datas)-1])
	if ack == nil {
		return nil, datas
	}
	return ack, datas[:len(datas)-1]
}

// wrapAck adapts whatever callback type the transport hands over. Callbacks
// of the form func([]any, error) get the payload as their only argument.
func wrapAck(candidate any) ackInvoker {
	if candidate == nil {
		return nil
	}
	value := reflect.ValueOf(candidate)
	if value.Kind() != reflect.Func {
		return nil
	}

	typ := value.Type()
	return func(err error, payload map[string]any) {
		args := make([]reflect.Value, typ.NumIn())
		for i := range args {
			var arg any
			switch {
			case i == 0 && typ.In(0).Kind() == reflect.Slice:
				arg = []any{payload}
			case i == 1 && typ.In(0).Kind() == reflect.Slice:
				arg = err
			case typ.NumIn() == 1 && err != nil:
				arg = err
			case typ.NumIn() == 1:
				arg = payload
			case i == 0:
				arg = err
			case i == 1:
				arg = payload
			}
			args[i] = coerceValue(arg, typ.In(i))
		}
		value.Call(args)
	}
}

func coerceValue(value any, targetType reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(targetType)
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(targetType):
		return rv
	case rv.Type().ConvertibleTo(targetType):
		return rv.Convert(targetType)
	case targetType.Kind() == reflect.String:
		return reflect.ValueOf(fmt.Sprint(value)).Convert(targetType)
	}
	return reflect.Zero(targetType)
}

func respondWithAck(socket emitter, ack ackInvoker, event string, payload map[string]any, ackErr error) {
	if ack != nil {
		ack(ackErr, payload)
		return
	}
	if event != "" && payload != nil {
		_ = socket.Emit(event, payload)
	}
}
