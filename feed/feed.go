// Package feed implements the chartsync collaborator contracts over a JSON
// websocket protocol: one connection per client carrying the figure
// document, per-table subscription requests, and incremental update
// messages.
//
// Client to service: `auth`, `fetch`, `subscribe`, `unsubscribe`, each with
// a `request_id`. Service to client: `ok` / `error` request responses,
// `figure` fetch responses, and unsolicited `update` messages carrying
// `{table, offset, columns: {name: [cells...]}}` deltas.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"golang.org/x/exp/maps"

	"github.com/chartfeed/chartsync"
)

var ErrNotConnected = errors.New("feed not connected")
var ErrConnectionLost = errors.New("feed connection lost")

type authFrame struct {
	Type       string       `json:"type"`
	RequestId  chartsync.Id `json:"request_id"`
	Jwt        string       `json:"jwt"`
	InstanceId chartsync.Id `json:"instance_id"`
	AppVersion string       `json:"app_version"`
}

type FeedClientSettings struct {
	WsHandshakeTimeout time.Duration
	AuthTimeout        time.Duration
	RequestTimeout     time.Duration
	WriteTimeout       time.Duration
	PingTimeout        time.Duration
	ReconnectTimeout   time.Duration
}

func DefaultFeedClientSettings() *FeedClientSettings {
	return &FeedClientSettings{
		WsHandshakeTimeout: 2 * time.Second,
		AuthTimeout:        2 * time.Second,
		RequestTimeout:     5 * time.Second,
		WriteTimeout:       5 * time.Second,
		PingTimeout:        15 * time.Second,
		ReconnectTimeout:   5 * time.Second,
	}
}

// FeedClient is a chartsync.FigureProvider backed by one websocket feed.
// The constructor dials and authenticates synchronously; afterwards a run
// loop reads messages and re-establishes the connection (including active
// subscriptions) when it drops.
type FeedClient struct {
	ctx    context.Context
	cancel context.CancelFunc

	url      string
	auth     *ClientAuth
	settings *FeedClientSettings

	writeLock sync.Mutex

	stateLock       sync.Mutex
	conn            *websocket.Conn
	pendingRequests map[string]chan gjson.Result
	subscriptions   map[string]*feedSubscription
	tables          map[string]*FeedTable
}

func NewFeedClientWithDefaults(ctx context.Context, url string, auth *ClientAuth) (*FeedClient, error) {
	return NewFeedClient(ctx, url, auth, DefaultFeedClientSettings())
}

func NewFeedClient(ctx context.Context, url string, auth *ClientAuth, settings *FeedClientSettings) (*FeedClient, error) {
	cancelCtx, cancel := context.WithCancel(ctx)
	client := &FeedClient{
		ctx:             cancelCtx,
		cancel:          cancel,
		url:             url,
		auth:            auth,
		settings:        settings,
		pendingRequests: map[string]chan gjson.Result{},
		subscriptions:   map[string]*feedSubscription{},
		tables:          map[string]*FeedTable{},
	}
	if err := client.connect(); err != nil {
		cancel()
		return nil, err
	}
	go client.run()
	return client, nil
}

// Fetch implements chartsync.FigureProvider.
func (self *FeedClient) Fetch(ctx context.Context) (*chartsync.FigureDescriptor, error) {
	response, err := self.request(ctx, map[string]any{
		"type": "fetch",
	})
	if err != nil {
		return nil, err
	}
	return self.parseFigure(response)
}

func (self *FeedClient) Cancel() {
	self.cancel()
	self.stateLock.Lock()
	conn := self.conn
	self.conn = nil
	self.stateLock.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (self *FeedClient) connect() error {
	dialer := &websocket.Dialer{
		HandshakeTimeout: self.settings.WsHandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(self.ctx, self.url, nil)
	if err != nil {
		return err
	}

	success := false
	defer func() {
		if !success {
			conn.Close()
		}
	}()

	// auth handshake before any other traffic
	requestId := chartsync.NewId()
	authJson, err := json.Marshal(&authFrame{
		Type:       "auth",
		RequestId:  requestId,
		Jwt:        self.auth.ByJwt,
		InstanceId: self.auth.InstanceId,
		AppVersion: self.auth.AppVersion,
	})
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(self.settings.AuthTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, authJson); err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Time{})

	conn.SetReadDeadline(time.Now().Add(self.settings.AuthTimeout))
	_, responseJson, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	conn.SetReadDeadline(time.Time{})

	response := gjson.ParseBytes(responseJson)
	if response.Get("type").Str != "ok" || response.Get("request_id").Str != requestId.String() {
		return fmt.Errorf("feed auth rejected: %s", response.Get("message").Str)
	}

	self.stateLock.Lock()
	self.conn = conn
	self.stateLock.Unlock()

	go self.pingLoop(conn)

	success = true
	return nil
}

func (self *FeedClient) run() {
	for {
		if self.ctx.Err() != nil {
			return
		}

		conn := self.currentConn()
		if conn == nil {
			select {
			case <-self.ctx.Done():
				return
			case <-time.After(self.settings.ReconnectTimeout):
			}
			if err := self.connect(); err != nil {
				glog.Infof("[feed]reconnect failed: %v\n", err)
				continue
			}
			// replay on a separate goroutine. the requests need this loop
			// to read their responses.
			go self.resubscribe()
			continue
		}

		_, messageJson, err := conn.ReadMessage()
		if err != nil {
			if self.ctx.Err() != nil {
				return
			}
			glog.Infof("[feed]read error: %v\n", err)
			self.dropConn(conn)
			continue
		}
		self.handleMessage(messageJson)
	}
}

func (self *FeedClient) pingLoop(conn *websocket.Conn) {
	for {
		select {
		case <-self.ctx.Done():
			return
		case <-time.After(self.settings.PingTimeout):
		}
		if self.currentConn() != conn {
			return
		}
		deadline := time.Now().Add(self.settings.WriteTimeout)
		if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			return
		}
	}
}

func (self *FeedClient) currentConn() *websocket.Conn {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.conn
}

// dropConn clears the failed connection and fails the requests that were
// pending on it. Subscriptions stay registered and are replayed on the next
// successful connect.
func (self *FeedClient) dropConn(conn *websocket.Conn) {
	self.stateLock.Lock()
	if self.conn != conn {
		self.stateLock.Unlock()
		return
	}
	self.conn = nil
	pendingRequests := self.pendingRequests
	self.pendingRequests = map[string]chan gjson.Result{}
	self.stateLock.Unlock()

	conn.Close()
	for _, pendingRequest := range pendingRequests {
		close(pendingRequest)
	}
}

func (self *FeedClient) resubscribe() {
	self.stateLock.Lock()
	subscriptions := maps.Values(self.subscriptions)
	self.stateLock.Unlock()

	for _, subscription := range subscriptions {
		requestCtx, requestCancel := context.WithTimeout(self.ctx, self.settings.RequestTimeout)
		_, err := self.request(requestCtx, map[string]any{
			"type":            "subscribe",
			"subscription_id": subscription.subscriptionId.String(),
			"table":           subscription.tableName,
			"columns":         subscription.columns,
		})
		requestCancel()
		if err != nil {
			glog.Infof("[feed]resubscribe %s failed: %v\n", subscription.tableName, err)
		}
	}
}

// request sends one message with a request id and awaits the response with
// the same id.
func (self *FeedClient) request(ctx context.Context, message map[string]any) (gjson.Result, error) {
	requestId := chartsync.NewId()
	message["request_id"] = requestId.String()

	responses := make(chan gjson.Result, 1)
	self.stateLock.Lock()
	self.pendingRequests[requestId.String()] = responses
	self.stateLock.Unlock()
	defer func() {
		self.stateLock.Lock()
		delete(self.pendingRequests, requestId.String())
		self.stateLock.Unlock()
	}()

	if err := self.writeMessage(message); err != nil {
		return gjson.Result{}, err
	}

	select {
	case response, ok := <-responses:
		if !ok {
			return gjson.Result{}, ErrConnectionLost
		}
		if response.Get("type").Str == "error" {
			return gjson.Result{}, fmt.Errorf("feed error: %s", response.Get("message").Str)
		}
		return response, nil
	case <-ctx.Done():
		return gjson.Result{}, ctx.Err()
	case <-self.ctx.Done():
		return gjson.Result{}, self.ctx.Err()
	case <-time.After(self.settings.RequestTimeout):
		return gjson.Result{}, fmt.Errorf("feed request timeout: %s", message["type"])
	}
}

func (self *FeedClient) writeMessage(message map[string]any) error {
	messageJson, err := json.Marshal(message)
	if err != nil {
		return err
	}

	conn := self.currentConn()
	if conn == nil {
		return ErrNotConnected
	}

	self.writeLock.Lock()
	defer self.writeLock.Unlock()
	conn.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
	defer conn.SetWriteDeadline(time.Time{})
	return conn.WriteMessage(websocket.TextMessage, messageJson)
}

func (self *FeedClient) handleMessage(messageJson []byte) {
	message := gjson.ParseBytes(messageJson)
	switch message.Get("type").Str {
	case "update":
		self.handleUpdate(message)
	default:
		requestId := message.Get("request_id").Str
		self.stateLock.Lock()
		pendingRequest, ok := self.pendingRequests[requestId]
		if ok {
			delete(self.pendingRequests, requestId)
		}
		self.stateLock.Unlock()
		if !ok {
			glog.V(2).Infof("[feed]drop message with no pending request: %s\n", message.Get("type").Str)
			return
		}
		pendingRequest <- message
	}
}

func (self *FeedClient) handleUpdate(message gjson.Result) {
	tableName := message.Get("table").Str
	update := &chartsync.TableUpdate{
		Offset:  int(message.Get("offset").Int()),
		Columns: map[string][]any{},
	}
	message.Get("columns").ForEach(func(column gjson.Result, cells gjson.Result) bool {
		values := []any{}
		for _, cell := range cells.Array() {
			values = append(values, cell.Value())
		}
		update.Columns[column.Str] = values
		return true
	})

	self.stateLock.Lock()
	subscriptions := []*feedSubscription{}
	for _, subscription := range self.subscriptions {
		if subscription.tableName == tableName {
			subscriptions = append(subscriptions, subscription)
		}
	}
	self.stateLock.Unlock()

	if len(subscriptions) == 0 {
		glog.V(2).Infof("[feed]drop update for %s: no subscription\n", tableName)
		return
	}
	for _, subscription := range subscriptions {
		for _, updateCallback := range subscription.updateCallbacks.Get() {
			updateCallback(update)
		}
	}
}

func (self *FeedClient) parseFigure(response gjson.Result) (*chartsync.FigureDescriptor, error) {
	figure := response.Get("figure")
	if !figure.Exists() {
		return nil, errors.New("feed figure response missing figure")
	}

	data := []*chartsync.Node{}
	for _, traceJson := range figure.Get("plotly.data").Array() {
		trace, err := chartsync.ParseNode([]byte(traceJson.Raw))
		if err != nil {
			return nil, fmt.Errorf("parse trace: %w", err)
		}
		data = append(data, trace)
	}

	layout := chartsync.NewObject()
	if layoutJson := figure.Get("plotly.layout"); layoutJson.Exists() {
		var err error
		layout, err = chartsync.ParseNode([]byte(layoutJson.Raw))
		if err != nil {
			return nil, fmt.Errorf("parse layout: %w", err)
		}
	}

	// table declarations. table identity is stable across fetches so that
	// binding maps built from different fetches reference the same tables.
	self.stateLock.Lock()
	for _, tableJson := range response.Get("tables").Array() {
		name := tableJson.Get("name").Str
		columns := []string{}
		for _, column := range tableJson.Get("columns").Array() {
			columns = append(columns, column.Str)
		}
		if table, ok := self.tables[name]; ok {
			table.setColumns(columns)
		} else {
			self.tables[name] = newFeedTable(self, name, columns)
		}
	}
	tables := maps.Clone(self.tables)
	self.stateLock.Unlock()

	tableRefs := []*chartsync.TableRef{}
	for _, mappingJson := range figure.Get("mappings").Array() {
		tableName := mappingJson.Get("table").Str
		table, ok := tables[tableName]
		if !ok {
			return nil, fmt.Errorf("figure mapping references undeclared table %s", tableName)
		}
		columnPaths := map[string][]string{}
		mappingJson.Get("columns").ForEach(func(column gjson.Result, pathsJson gjson.Result) bool {
			paths := []string{}
			for _, path := range pathsJson.Array() {
				paths = append(paths, path.Str)
			}
			columnPaths[column.Str] = paths
			return true
		})
		tableRefs = append(tableRefs, &chartsync.TableRef{
			Table:       table,
			ColumnPaths: columnPaths,
		})
	}

	return &chartsync.FigureDescriptor{
		Data:              data,
		Layout:            layout,
		IsUserSetTemplate: figure.Get("deephaven.is_user_set_template").Bool(),
		TableRefs:         tableRefs,
	}, nil
}

// UnwrapCell converts wire cells to plain values. Timestamp cells arrive as
// single-field `{"t": epochMillis}` envelopes and unwrap to the millisecond
// value; everything else is already plain.
func UnwrapCell(cell any) any {
	if envelope, ok := cell.(map[string]any); ok && len(envelope) == 1 {
		if t, ok := envelope["t"]; ok {
			return t
		}
	}
	return cell
}
