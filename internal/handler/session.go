package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/smartgistics/fleetmate-sub000/internal/backend"
	"github.com/smartgistics/fleetmate-sub000/internal/listview"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 16
)

// SessionOptions tunes live list sessions.
type SessionOptions struct {
	// AllowedOrigins lists the browser origins that may open a session.
	// "*" allows any origin.
	AllowedOrigins []string
	// SearchDelay debounces search messages. Zero applies every message.
	SearchDelay time.Duration
}

// SessionHandler serves live list sessions: one list controller per
// websocket connection, driven by client gestures and pushing every state
// change back to the client.
type SessionHandler struct {
	backend     backend.Backend
	upgrader    websocket.Upgrader
	searchDelay time.Duration
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(b backend.Backend, opts SessionOptions) *SessionHandler {
	return &SessionHandler{
		backend:     b,
		searchDelay: opts.SearchDelay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		return slices.ContainsFunc(allowed, func(a string) bool {
			return strings.EqualFold(a, origin)
		})
	}
}

// clientMessage is a gesture sent by the dashboard.
type clientMessage struct {
	Type    string          `json:"type"`
	Patch   *listview.Patch `json:"patch,omitempty"`
	Field   string          `json:"field,omitempty"`
	Page    int             `json:"page,omitempty"`
	Text    string          `json:"text,omitempty"`
	Index   *int            `json:"index,omitempty"`
	Payload model.Record    `json:"payload,omitempty"`
}

type stateMessage struct {
	Type    string                       `json:"type"`
	Session string                       `json:"session"`
	Version uint64                       `json:"version"`
	Phase   listview.Phase               `json:"phase"`
	Mode    listview.Mode                `json:"mode"`
	Params  listview.Params              `json:"params"`
	State   listview.State[model.Record] `json:"state"`
	Page    int                          `json:"page"`
	Pages   int                          `json:"pages"`
}

type recordMessage struct {
	Type   string       `json:"type"`
	Index  *int         `json:"index,omitempty"`
	Record model.Record `json:"record"`
}

type errorMessage struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Live handles GET /api/v1/{entity}/_live. The query string seeds the
// initial params exactly like the list endpoint.
func (h *SessionHandler) Live(w http.ResponseWriter, r *http.Request) {
	e, ok := entityFromRequest(w, r)
	if !ok {
		return
	}
	params, err := listQuery(r).Params(e)
	if err != nil {
		writeBackendError(w, err, "Invalid query")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the error response.
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	id := uuid.NewString()
	log := zerolog.Ctx(r.Context()).With().Str("entity", e.Name).Str("session", id).Logger()
	s := newSession(id, conn, h.backend, e, params, h.searchDelay, log)
	s.log.Info().Msg("live session opened")
	s.run()
	s.log.Info().Msg("live session closed")
}

type session struct {
	id     string
	conn   *websocket.Conn
	entity model.Entity
	ctl    *listview.Controller[model.Record]
	view   *listview.View[model.Record]
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	send   chan any
	done   chan struct{}
	wg     sync.WaitGroup
}

func newSession(id string, conn *websocket.Conn, b backend.Backend, e model.Entity, params listview.Params, searchDelay time.Duration, log zerolog.Logger) *session {
	opts := []listview.Option{listview.WithLogger(log)}
	if e.Creatable {
		opts = append(opts, listview.WithCreate(backend.Creator[model.Record](b, e)))
	}
	ctl := listview.New(backend.Fetcher[model.Record](b, e), params.Patch(), opts...)

	view := listview.NewView(ctl, listview.ViewConfig{
		SearchFilter: backend.SearchFilter(e, params.Filter),
		SearchDelay:  searchDelay,
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		id:     id,
		conn:   conn,
		entity: e,
		ctl:    ctl,
		view:   view,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan any, sendBuffer),
		done:   make(chan struct{}),
	}
}

// run blocks until the client goes away, then tears the list down.
func (s *session) run() {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump()
	}()

	unsubscribe := s.ctl.Subscribe(s.pushState)
	s.ctl.Start()

	s.readPump()

	unsubscribe()
	s.view.Close()
	s.ctl.Close()
	s.cancel()
	s.wg.Wait()
	close(s.done)
	<-writerDone
	s.conn.Close()
}

func (s *session) pushState(snap listview.Snapshot[model.Record]) {
	s.enqueue(stateMessage{
		Type:    "state",
		Session: s.id,
		Version: snap.Version,
		Phase:   snap.Phase,
		Mode:    listview.ModeOf(snap.State),
		Params:  snap.Params,
		State:   snap.State,
		Page:    snap.Params.Page(),
		Pages:   listview.PageCount(snap.State.Total, snap.Params.Limit),
	})
}

func (s *session) enqueue(msg any) {
	select {
	case s.send <- msg:
	case <-s.ctx.Done():
	}
}

func (s *session) readPump() {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("live session read failed")
			}
			return
		}
		var msg clientMessage
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&msg); err != nil {
			s.sendError("malformed message: " + err.Error())
			continue
		}
		s.handle(msg)
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.log.Debug().Err(err).Msg("live session write failed")
				s.conn.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.conn.Close()
				return
			}
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (s *session) handle(msg clientMessage) {
	switch msg.Type {
	case "update":
		if msg.Patch == nil {
			s.sendError("update requires a patch")
			return
		}
		next := listview.Merge(s.ctl.Params(), *msg.Patch)
		if err := backend.CheckParams(s.entity, next); err != nil {
			s.sendError(err.Error())
			return
		}
		s.ctl.UpdateParams(*msg.Patch)
	case "sort":
		if !s.entity.HasField(msg.Field) {
			s.sendError("cannot sort by " + msg.Field + ": not a field of " + s.entity.Name)
			return
		}
		s.view.ClickSort(msg.Field)
	case "page":
		if msg.Page < 1 {
			s.sendError("page must be >= 1")
			return
		}
		s.view.ClickPage(msg.Page)
	case "next":
		s.view.NextPage()
	case "prev":
		s.view.PrevPage()
	case "search":
		s.view.Search(msg.Text)
	case "refresh":
		s.ctl.Refresh()
	case "select":
		if msg.Index == nil {
			s.sendError("select requires an index")
			return
		}
		rec, ok := s.view.SelectRow(*msg.Index)
		if !ok {
			s.sendError("no row at that index on the current page")
			return
		}
		s.enqueue(recordMessage{Type: "detail", Index: msg.Index, Record: rec})
	case "create":
		s.create(msg.Payload)
	default:
		s.sendError("unknown message type " + msg.Type)
	}
}

// create runs off the read loop so the client can keep sending gestures
// while the record is created and the page re-fetched.
func (s *session) create(payload model.Record) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		created, err := s.ctl.Create(s.ctx, payload)
		if err != nil {
			msg := errorMessage{Type: "create_error", Message: err.Error()}
			var verr *backend.ValidationError
			if errors.As(err, &verr) {
				msg.Fields = verr.Fields
			}
			s.enqueue(msg)
			return
		}
		s.enqueue(recordMessage{Type: "created", Record: created})
	}()
}

func (s *session) sendError(message string) {
	s.enqueue(errorMessage{Type: "error", Message: message})
}
