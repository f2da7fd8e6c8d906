// Package rpc implements method dispatch, request/response correlation, and
// the typed pub/sub subscription layer on top of the newline-delimited JSON
// transport.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opslane/agentd/internal/bus"
	"github.com/opslane/agentd/internal/rpcerr"
	"github.com/opslane/agentd/internal/transport"
	"github.com/opslane/agentd/pkg/protocol"
)

// HandlerFunc handles one request's params and returns a JSON-marshalable
// result, or an error (converted to the logical taxonomy by rpcerr.Classify).
type HandlerFunc func(ctx context.Context, client *Client, params json.RawMessage) (interface{}, error)

// SubscribeFunc produces the bus.Bus that backs one "type" of subscription
// for one client, given an optional filter. The router owns draining it to
// the socket; the producer (e.g. the log sink, the channel registry, an
// agent session) is responsible for calling Emit on the returned bus.
type SubscribeFunc func(ctx context.Context, client *Client, filter map[string]interface{}) (*bus.Bus[*protocol.Notification], string, error)

// Router dispatches request frames to registered methods and manages the
// subscribe/unsubscribe pair generically across every stream type.
type Router struct {
	mu       sync.RWMutex
	methods  map[string]HandlerFunc
	streams  map[string]SubscribeFunc

	requestTimeout time.Duration
}

// NewRouter constructs an empty Router. Register methods with Handle and
// stream types with Stream before handing connections to HandleConnection.
func NewRouter(requestTimeout time.Duration) *Router {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	r := &Router{
		methods:        make(map[string]HandlerFunc),
		streams:        make(map[string]SubscribeFunc),
		requestTimeout: requestTimeout,
	}
	r.Handle(protocol.MethodSubscribe, r.handleSubscribe)
	r.Handle(protocol.MethodUnsubscribe, r.handleUnsubscribe)
	return r
}

// Handle registers a method handler. Re-registering a name replaces it.
func (r *Router) Handle(method string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[method] = h
}

// Stream registers a subscription stream type (e.g. "logs", "agent.output").
func (r *Router) Stream(typ string, fn SubscribeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[typ] = fn
}

// HandleConnection owns one accepted connection for its lifetime: it reads
// frames, dispatches requests concurrently, and tears down the client's
// state on exit.
func (r *Router) HandleConnection(ctx context.Context, conn *transport.Conn) {
	client := newClient(conn)
	defer client.cancelAll()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		raw, err := conn.ReadFrame()
		if err != nil {
			return
		}

		switch protocol.Sniff(raw) {
		case protocol.KindRequest:
			var req protocol.Request
			if err := json.Unmarshal(raw, &req); err != nil {
				continue // malformed line: discard without closing the connection
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.dispatch(ctx, client, req)
			}()
		case protocol.KindNotification:
			// The daemon never expects client-originated notifications in
			// this control surface; silently drop.
		case protocol.KindResponse:
			// This daemon never issues client-directed requests, so every
			// inbound "response" frame is unexpected; ignore it.
		default:
			continue
		}
	}
}

func (r *Router) dispatch(parent context.Context, client *Client, req protocol.Request) {
	ctx, cancel := context.WithTimeout(parent, r.requestTimeout)
	defer cancel()
	client.trackRequest(req.Id, cancel)
	defer client.untrackRequest(req.Id)

	r.mu.RLock()
	h, ok := r.methods[req.Method]
	r.mu.RUnlock()

	if !ok {
		r.reply(client, protocol.NewError(req.Id, string(rpcerr.MethodUnknown), fmt.Sprintf("unknown method %q", req.Method), nil))
		return
	}

	result, err := r.safeInvoke(ctx, client, h, req.Params)
	if err != nil {
		classified := rpcerr.Classify(err)
		r.reply(client, protocol.NewError(req.Id, string(classified.Code), classified.Message, classified.Data))
		return
	}

	resp, err := protocol.NewResult(req.Id, result)
	if err != nil {
		r.reply(client, protocol.NewError(req.Id, string(rpcerr.Internal), err.Error(), nil))
		return
	}
	r.reply(client, resp)
}

// safeInvoke recovers a handler panic and converts it to an internal error
// so a misbehaving handler never crashes the daemon.
func (r *Router) safeInvoke(ctx context.Context, client *Client, h HandlerFunc, params json.RawMessage) (result interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("rpc: handler panic", "panic", rec)
			err = rpcerr.New(rpcerr.Internal, "handler panic: %v", rec)
		}
	}()
	return h(ctx, client, params)
}

func (r *Router) reply(client *Client, resp *protocol.Response) {
	if err := client.conn.WriteFrame(resp); err != nil {
		slog.Debug("rpc: write response failed", "client", client.Id, "error", err)
	}
}

// --- subscribe / unsubscribe ---

type subscribeParams struct {
	Type   string                 `json:"type"`
	Filter map[string]interface{} `json:"filter,omitempty"`
}

type subscribeResult struct {
	Id string `json:"id"`
}

func (r *Router) handleSubscribe(ctx context.Context, client *Client, raw json.RawMessage) (interface{}, error) {
	var p subscribeParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.New(rpcerr.InvalidParams, "bad subscribe params: %v", err)
	}

	r.mu.RLock()
	fn, ok := r.streams[p.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, rpcerr.New(rpcerr.InvalidParams, "unknown subscription type %q", p.Type)
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	box, id, err := fn(subCtx, client, p.Filter)
	if err != nil {
		cancel()
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}

	sub := &subscription{id: id, typ: p.Type, filter: p.Filter, box: box, cancel: cancel}
	client.addSubscription(sub)
	go client.writeLoop(subCtx, sub)

	return subscribeResult{Id: id}, nil
}

type unsubscribeParams struct {
	Id string `json:"id"`
}

func (r *Router) handleUnsubscribe(ctx context.Context, client *Client, raw json.RawMessage) (interface{}, error) {
	var p unsubscribeParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.New(rpcerr.InvalidParams, "bad unsubscribe params: %v", err)
	}
	// Idempotent; unknown/foreign ids succeed silently.
	client.removeSubscription(p.Id)
	return map[string]bool{"ok": true}, nil
}
