package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/opslane/agentd/internal/agent"
	"github.com/opslane/agentd/internal/agent/echo"
	"github.com/opslane/agentd/internal/bus"
	"github.com/opslane/agentd/internal/channels"
	"github.com/opslane/agentd/internal/channels/mock"
	"github.com/opslane/agentd/internal/channels/telegram"
	"github.com/opslane/agentd/internal/config"
	"github.com/opslane/agentd/internal/inject"
	"github.com/opslane/agentd/internal/rpc"
	"github.com/opslane/agentd/internal/rpcerr"
	"github.com/opslane/agentd/internal/scheduler"
	sqlitestore "github.com/opslane/agentd/internal/store/sqlite"
	"github.com/opslane/agentd/internal/transport"
	"github.com/opslane/agentd/pkg/protocol"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the agentd daemon in the foreground",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

// runServe boots every component, serves the control socket until a
// shutdown is requested or the process receives a termination signal, and
// exits the process directly on start-up or fatal runtime failure — it
// never returns to cobra's Run on those paths.
func runServe() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelFor(verbose),
	})))

	cfgPath := resolveConfigPath()
	cfgMgr, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("daemon: load config", "error", err)
		os.Exit(1)
	}
	cfg := cfgMgr.Get()

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		slog.Error("daemon: create data dir", "error", err)
		os.Exit(1)
	}

	store, err := sqlitestore.Open(dataDir + "/checkpoints.db")
	if err != nil {
		slog.Error("daemon: open checkpoint store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	d, err := newDaemon(cfgMgr, store)
	if err != nil {
		slog.Error("daemon: wire components", "error", err)
		os.Exit(1)
	}

	socketPath := transport.SocketPath(firstNonEmpty(socket, cfg.Daemon.SocketPath))
	server, err := transport.NewServer(socketPath, d.router.HandleConnection)
	if err != nil {
		slog.Error("daemon: bind socket", "error", err)
		os.Exit(1)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopReload, err := cfgMgr.Watch(func() { d.handleConfigFileChanged() })
	if err != nil {
		slog.Warn("daemon: config hot-reload disabled", "error", err)
	} else {
		defer stopReload()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Serve(gctx) })
	g.Go(func() error { d.scheduler.Run(gctx); return nil })
	g.Go(func() error { return d.watchShutdown(gctx, stop) })

	slog.Info("daemon: listening", "socket", socketPath, "version", Version)
	if err := g.Wait(); err != nil {
		slog.Error("daemon: fatal runtime error", "error", err)
		os.Exit(2)
	}
	slog.Info("daemon: shut down gracefully")
}

func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// shutdownRequest is enqueued by the daemon.shutdown handler and consumed
// by watchShutdown.
type shutdownRequest struct {
	hard     bool
	deadline time.Duration
}

// daemon wires every component named in SPEC_FULL.md §4 together and hosts
// the RPC method table. It is constructed once per process.
type daemon struct {
	startedAt time.Time
	cfgMgr    *config.Manager
	store     *sqlitestore.Store

	router    *rpc.Router
	hub       *rpc.Hub
	manager   *agent.Manager
	registry  *channels.Registry
	scheduler *scheduler.Scheduler
	injectors *inject.Pipeline

	shutdownCh chan shutdownRequest

	agentOutputSubs atomic.Int64
}

func newDaemon(cfgMgr *config.Manager, store *sqlitestore.Store) (*daemon, error) {
	cfg := cfgMgr.Get()

	d := &daemon{
		startedAt:  time.Now(),
		cfgMgr:     cfgMgr,
		store:      store,
		hub:        rpc.NewHub(200),
		registry:   channels.NewRegistry(),
		scheduler:  scheduler.New(0),
		shutdownCh: make(chan shutdownRequest, 1),
	}

	requestTimeout := time.Duration(cfg.Daemon.RequestTimeoutMs) * time.Millisecond
	d.router = rpc.NewRouter(requestTimeout)
	d.hub.RegisterStreams(d.router)
	d.router.Stream(protocol.StreamAgentOutput, d.subscribeAgentOutput)

	d.injectors = buildInjectors(cfg)

	d.manager = agent.NewManager(store, func(name, modelOverride string) (agent.Adapter, error) {
		return echo.New(name, modelOverride), nil
	})

	if cfg.Telegram.Token != "" {
		ch, err := telegram.New("telegram", cfg.Telegram)
		if err != nil {
			return nil, fmt.Errorf("daemon: construct telegram channel: %w", err)
		}
		if err := d.registry.Register(ch); err != nil {
			return nil, err
		}
	}
	mockCh := mock.New("mock")
	if err := d.registry.Register(mockCh); err != nil {
		return nil, err
	}

	d.registry.Subscribe(func(ev channels.AggregateEvent) error {
		d.hub.PublishChannelEvent(ev.ChannelId, ev.Event)
		return nil
	})

	for _, jobCfg := range cfg.Scheduler {
		jobCfg := jobCfg
		if err := d.scheduler.Add(jobCfg.Name, jobCfg.Schedule, func(ctx context.Context) error {
			d.hub.PublishLog(rpc.LogEntry{
				TimestampMs: time.Now().UnixMilli(),
				Level:       "info",
				Component:   "scheduler",
				Message:     fmt.Sprintf("job %q fired", jobCfg.Name),
			})
			return d.store.RecordSchedulerRun(ctx, jobCfg.Name, time.Now(), "ok")
		}); err != nil {
			return nil, err
		}
		if !jobCfg.Enabled {
			d.scheduler.Disable(jobCfg.Name)
		}
	}
	if runs, err := store.LoadSchedulerRuns(context.Background()); err == nil {
		for _, run := range runs {
			d.scheduler.SetLastRun(run.JobName, run.LastRunAt, run.LastResult)
		}
	}

	d.registerMethods()
	return d, nil
}

func buildInjectors(cfg config.Config) *inject.Pipeline {
	injectors := []inject.Injector{inject.DatetimeInjector{}}
	if cfg.PulseFile != "" {
		injectors = append(injectors, inject.PulseInjector{FilePath: cfg.PulseFile})
	}
	if cfg.SkillsDir != "" {
		injectors = append(injectors, inject.SkillsInjector{ManifestDir: cfg.SkillsDir})
	}
	return inject.NewPipeline(injectors...)
}

// handleConfigFileChanged backs daemon.reload and the fsnotify watch: it
// re-reads the config file and reports which components picked up new
// values. Channel adapters and in-flight sessions are not torn down by a
// reload; only the fields a running component reads live (scheduler job
// enablement) are reconciled.
func (d *daemon) handleConfigFileChanged() {
	names, err := d.reload()
	if err != nil {
		slog.Error("daemon: config reload failed", "error", err)
		return
	}
	slog.Info("daemon: config reloaded", "components", names)
}

func (d *daemon) reload() ([]string, error) {
	if err := d.cfgMgr.Reload(); err != nil {
		return nil, err
	}
	cfg := d.cfgMgr.Get()
	refreshed := []string{"config"}

	seen := map[string]bool{}
	for _, jobCfg := range cfg.Scheduler {
		seen[jobCfg.Name] = true
		if jobCfg.Enabled {
			d.scheduler.Enable(jobCfg.Name)
		} else {
			d.scheduler.Disable(jobCfg.Name)
		}
	}
	refreshed = append(refreshed, "scheduler")
	return refreshed, nil
}

// watchShutdown blocks until a daemon.shutdown request arrives or ctx is
// cancelled by an OS signal, then drives the §5 shutdown sequence: refuse
// new RPCs (by cancelling the socket's accept loop via stop), in graceful
// mode sleep for the whole deadline, abort remaining sessions, disconnect
// channels. In-flight requests are not tracked, so the graceful wait does
// not end early when they finish.
func (d *daemon) watchShutdown(ctx context.Context, stop context.CancelFunc) error {
	select {
	case <-ctx.Done():
		d.drainForShutdown(context.Background(), 0)
		return nil
	case req := <-d.shutdownCh:
		stop() // stop accepting new connections / signal the server to close
		deadline := req.deadline
		if req.hard {
			deadline = 0
		}
		d.drainForShutdown(context.Background(), deadline)
		return nil
	}
}

func (d *daemon) drainForShutdown(ctx context.Context, deadline time.Duration) {
	if deadline > 0 {
		time.Sleep(deadline)
	}
	for _, s := range d.manager.List() {
		s.Abort()
		_ = d.manager.Terminate(s.Id())
	}
	for _, ch := range d.registry.List() {
		_ = ch.Disconnect(ctx)
	}
}

func (d *daemon) subscribeAgentOutput(ctx context.Context, client *rpc.Client, filter map[string]interface{}) (*bus.Bus[*protocol.Notification], string, error) {
	agentId, _ := filter["agentId"].(string)
	if agentId == "" {
		return nil, "", rpcerr.New(rpcerr.InvalidParams, "agent.output subscription requires a non-empty agentId filter")
	}
	sess, ok := d.manager.Get(agentId)
	if !ok {
		return nil, "", rpcerr.New(rpcerr.AgentNotFound, "session %q not found", agentId)
	}

	box := bus.New[*protocol.Notification](256, bus.Block)
	d.agentOutputSubs.Add(1)
	go func() {
		defer d.agentOutputSubs.Add(-1)
		defer box.Complete()
		for {
			ev, ok := sess.Events().Next(ctx)
			if !ok {
				return
			}
			n, err := protocol.NewNotification(protocol.NotifyAgentOutput, map[string]interface{}{
				"agentId": agentId,
				"kind":    ev.Kind(),
				"event":   ev,
			})
			if err != nil {
				continue
			}
			box.Emit(n)
		}
	}()
	return box, "", nil
}

// --- RPC method registration ---

func (d *daemon) registerMethods() {
	r := d.router

	r.Handle(protocol.MethodDaemonPing, d.handleDaemonPing)
	r.Handle(protocol.MethodDaemonStatus, d.handleDaemonStatus)
	r.Handle(protocol.MethodDaemonShutdown, d.handleDaemonShutdown)
	r.Handle(protocol.MethodDaemonReload, d.handleDaemonReload)

	r.Handle(protocol.MethodAgentList, d.handleAgentList)
	r.Handle(protocol.MethodAgentGet, d.handleAgentGet)
	r.Handle(protocol.MethodAgentSpawn, d.handleAgentSpawn)
	r.Handle(protocol.MethodAgentContinue, d.handleAgentContinue)
	r.Handle(protocol.MethodAgentListCheckpoints, d.handleAgentListCheckpoints)
	r.Handle(protocol.MethodAgentTerminate, d.handleAgentTerminate)
	r.Handle(protocol.MethodAgentPause, d.handleAgentPause)
	r.Handle(protocol.MethodAgentResume, d.handleAgentResume)
	r.Handle(protocol.MethodAgentSend, d.handleAgentSend)
	r.Handle(protocol.MethodAgentSnapshot, d.handleAgentSnapshot)

	r.Handle(protocol.MethodChannelList, d.handleChannelList)
	r.Handle(protocol.MethodChannelGet, d.handleChannelGet)
	r.Handle(protocol.MethodChannelConnect, d.handleChannelConnect)
	r.Handle(protocol.MethodChannelDisconnect, d.handleChannelDisconnect)
	r.Handle(protocol.MethodChannelReconnect, d.handleChannelReconnect)

	r.Handle(protocol.MethodConversationList, d.handleConversationList)
	r.Handle(protocol.MethodConversationGet, d.handleConversationGet)
	r.Handle(protocol.MethodConversationUnbind, d.handleConversationUnbind)

	r.Handle(protocol.MethodConfigGet, d.handleConfigGet)
	r.Handle(protocol.MethodConfigValidate, d.handleConfigValidate)

	r.Handle(protocol.MethodOnboardStatus, d.handleOnboardStatus)
	r.Handle(protocol.MethodOnboardExecute, d.handleOnboardExecute)

	r.Handle(protocol.MethodSchedulerList, d.handleSchedulerList)
	r.Handle(protocol.MethodSchedulerTrigger, d.handleSchedulerTrigger)
}

func (d *daemon) handleDaemonPing(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	return map[string]bool{"pong": true}, nil
}

type daemonStatusResult struct {
	Version          string `json:"version"`
	ProtocolVersion  int    `json:"protocolVersion"`
	UptimeMs         int64  `json:"uptimeMs"`
	SocketPath       string `json:"socketPath"`
	ChannelCount     int    `json:"channelCount"`
	SessionCount     int    `json:"sessionCount"`
	SubscriptionCount int   `json:"subscriptionCount"`
}

func (d *daemon) handleDaemonStatus(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	cfg := d.cfgMgr.Get()
	return daemonStatusResult{
		Version:         Version,
		ProtocolVersion: protocol.ProtocolVersion,
		UptimeMs:        time.Since(d.startedAt).Milliseconds(),
		SocketPath:      transport.SocketPath(firstNonEmpty(socket, cfg.Daemon.SocketPath)),
		ChannelCount:    len(d.registry.List()),
		SessionCount:    len(d.manager.List()),
		SubscriptionCount: d.hub.SubscriptionCount() + int(d.agentOutputSubs.Load()),
	}, nil
}

type shutdownParams struct {
	Mode       string `json:"mode"`
	DeadlineMs int64  `json:"deadlineMs,omitempty"`
}

func (d *daemon) handleDaemonShutdown(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	var p shutdownParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, rpcerr.New(rpcerr.InvalidParams, "bad shutdown params: %v", err)
		}
	}
	req := shutdownRequest{hard: p.Mode == "hard", deadline: time.Duration(p.DeadlineMs) * time.Millisecond}
	select {
	case d.shutdownCh <- req:
	default:
		return nil, rpcerr.New(rpcerr.ShutdownInProgress, "shutdown already in progress")
	}
	return map[string]bool{"ok": true}, nil
}

func (d *daemon) handleDaemonReload(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	names, err := d.reload()
	if err != nil {
		return nil, err
	}
	return map[string][]string{"reloaded": names}, nil
}

// --- agent.* ---

type agentSummary struct {
	Id      string           `json:"id"`
	Adapter string           `json:"adapter"`
	State   agent.State      `json:"state"`
	Task    string           `json:"task,omitempty"`
	Tags    []string         `json:"tags,omitempty"`
	Metrics agent.Metrics    `json:"metrics"`
}

func summarize(s *agent.Session) agentSummary {
	cp := s.Checkpoint()
	return agentSummary{Id: s.Id(), Adapter: cp.AdapterName, State: s.State(), Task: cp.Task, Tags: cp.Tags, Metrics: cp.Metrics}
}

func (d *daemon) handleAgentList(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	sessions := d.manager.List()
	out := make([]agentSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, summarize(s))
	}
	return out, nil
}

type idParams struct {
	Id string `json:"id"`
}

func (d *daemon) handleAgentGet(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.New(rpcerr.InvalidParams, "bad params: %v", err)
	}
	s, ok := d.manager.Get(p.Id)
	if !ok {
		return nil, rpcerr.New(rpcerr.AgentNotFound, "session %q not found", p.Id)
	}
	return summarize(s), nil
}

type spawnParams struct {
	Adapter      string                 `json:"adapter"`
	Model        string                 `json:"model,omitempty"`
	Task         string                 `json:"task,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	InitialInput string                 `json:"initialInput,omitempty"`
}

func (d *daemon) handleAgentSpawn(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	var p spawnParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.New(rpcerr.InvalidParams, "bad params: %v", err)
	}
	if p.Adapter == "" {
		return nil, rpcerr.New(rpcerr.InvalidParams, "adapter is required")
	}

	ictx := inject.Context{Timezone: time.Local, Now: time.Now(), Metadata: p.Metadata}
	systemPrompt := d.injectors.RunSystemContext(ctx, ictx)

	s, err := d.manager.Spawn(context.Background(), p.Adapter, p.Model, agent.Config{
		Task:         p.Task,
		Tags:         p.Tags,
		Metadata:     p.Metadata,
		SystemPrompt: systemPrompt,
		InitialInput: p.InitialInput,
	})
	if err != nil {
		return nil, err
	}
	return map[string]string{"id": s.Id()}, nil
}

type continueParams struct {
	SessionId string `json:"sessionId"`
	Input     string `json:"input"`
	Model     string `json:"model,omitempty"`
}

func (d *daemon) handleAgentContinue(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	var p continueParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.New(rpcerr.InvalidParams, "bad params: %v", err)
	}
	s, err := d.manager.Continue(context.Background(), p.SessionId, p.Input, p.Model)
	if err != nil {
		return nil, err
	}
	return map[string]string{"id": s.Id()}, nil
}

func (d *daemon) handleAgentListCheckpoints(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.New(rpcerr.InvalidParams, "bad params: %v", err)
	}
	cps, err := d.manager.ListCheckpoints(ctx, p.Id)
	if err != nil {
		return nil, err
	}
	return cps, nil
}

func (d *daemon) handleAgentTerminate(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.New(rpcerr.InvalidParams, "bad params: %v", err)
	}
	if err := d.manager.Terminate(p.Id); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (d *daemon) handleAgentPause(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.New(rpcerr.InvalidParams, "bad params: %v", err)
	}
	s, ok := d.manager.Get(p.Id)
	if !ok {
		return nil, rpcerr.New(rpcerr.AgentNotFound, "session %q not found", p.Id)
	}
	s.Pause()
	return map[string]bool{"ok": true}, nil
}

func (d *daemon) handleAgentResume(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.New(rpcerr.InvalidParams, "bad params: %v", err)
	}
	s, ok := d.manager.Get(p.Id)
	if !ok {
		return nil, rpcerr.New(rpcerr.AgentNotFound, "session %q not found", p.Id)
	}
	s.Resume()
	return map[string]bool{"ok": true}, nil
}

type sendParams struct {
	Id      string `json:"id"`
	Message string `json:"message"`
}

func (d *daemon) handleAgentSend(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	var p sendParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.New(rpcerr.InvalidParams, "bad params: %v", err)
	}
	s, ok := d.manager.Get(p.Id)
	if !ok {
		return nil, rpcerr.New(rpcerr.AgentNotFound, "session %q not found", p.Id)
	}
	s.Send(p.Message)
	return map[string]bool{"ok": true}, nil
}

func (d *daemon) handleAgentSnapshot(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.New(rpcerr.InvalidParams, "bad params: %v", err)
	}
	s, ok := d.manager.Get(p.Id)
	if !ok {
		return nil, rpcerr.New(rpcerr.AgentNotFound, "session %q not found", p.Id)
	}
	// Read-only: captures state without persisting it. Durable checkpoints are
	// written automatically on pause and on every terminal transition (see
	// Session.persistCheckpoint), which is what agent.continue restores from.
	return s.Checkpoint(), nil
}

// --- channel.* ---

type channelSummary struct {
	Id      string            `json:"id"`
	Adapter string            `json:"adapter"`
	Status  channels.Status   `json:"status"`
}

func (d *daemon) handleChannelList(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	chs := d.registry.List()
	out := make([]channelSummary, 0, len(chs))
	for _, ch := range chs {
		out = append(out, channelSummary{Id: ch.Id(), Adapter: ch.Adapter(), Status: ch.Status()})
	}
	return out, nil
}

func (d *daemon) handleChannelGet(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.New(rpcerr.InvalidParams, "bad params: %v", err)
	}
	ch, ok := d.registry.Get(p.Id)
	if !ok {
		return nil, rpcerr.New(rpcerr.ChannelNotFound, "channel %q not found", p.Id)
	}
	return channelSummary{Id: ch.Id(), Adapter: ch.Adapter(), Status: ch.Status()}, nil
}

func (d *daemon) handleChannelConnect(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.New(rpcerr.InvalidParams, "bad params: %v", err)
	}
	if err := d.registry.Connect(ctx, p.Id); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (d *daemon) handleChannelDisconnect(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.New(rpcerr.InvalidParams, "bad params: %v", err)
	}
	if err := d.registry.Disconnect(ctx, p.Id); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (d *daemon) handleChannelReconnect(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.New(rpcerr.InvalidParams, "bad params: %v", err)
	}
	if err := d.registry.Reconnect(ctx, p.Id); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

// --- conversation.* ---

type conversationParams struct {
	ChannelId string `json:"channelId"`
	Ref       string `json:"ref"`
}

func (d *daemon) handleConversationList(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	return d.registry.Conversations(), nil
}

func (d *daemon) handleConversationGet(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	var p conversationParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.New(rpcerr.InvalidParams, "bad params: %v", err)
	}
	info, ok := d.registry.ConversationGet(p.ChannelId, p.Ref)
	if !ok {
		return nil, rpcerr.New(rpcerr.InvalidParams, "no known conversation for channel %q ref %q", p.ChannelId, p.Ref)
	}
	return info, nil
}

func (d *daemon) handleConversationUnbind(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	var p conversationParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.New(rpcerr.InvalidParams, "bad params: %v", err)
	}
	ok := d.registry.UnbindConversation(p.ChannelId, p.Ref)
	return map[string]bool{"ok": ok}, nil
}

// --- config.* ---

type configView struct {
	Daemon    config.DaemonConfig         `json:"daemon"`
	Telegram  telegramConfigView          `json:"telegram"`
	Scheduler []config.SchedulerJobConfig `json:"scheduler,omitempty"`
	DataDir   string                      `json:"dataDir,omitempty"`
}

type telegramConfigView struct {
	Configured     bool     `json:"configured"`
	BaseUrl        string   `json:"baseUrl,omitempty"`
	PollingTimeout int      `json:"pollingTimeout,omitempty"`
	AllowedUpdates []string `json:"allowedUpdates,omitempty"`
}

func viewOf(cfg config.Config) configView {
	return configView{
		Daemon: cfg.Daemon,
		Telegram: telegramConfigView{
			Configured:     cfg.Telegram.Token != "",
			BaseUrl:        cfg.Telegram.BaseUrl,
			PollingTimeout: cfg.Telegram.PollingTimeout,
			AllowedUpdates: cfg.Telegram.AllowedUpdates,
		},
		Scheduler: cfg.Scheduler,
		DataDir:   cfg.DataDir,
	}
}

func (d *daemon) handleConfigGet(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	return viewOf(d.cfgMgr.Get()), nil
}

type configValidateParams struct {
	Config json.RawMessage `json:"config,omitempty"`
}

type configValidateResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func (d *daemon) handleConfigValidate(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	var p configValidateParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, rpcerr.New(rpcerr.InvalidParams, "bad params: %v", err)
		}
	}

	candidate := d.cfgMgr.Get()
	if len(p.Config) > 0 {
		candidate = config.Config{}
		if err := json.Unmarshal(p.Config, &candidate); err != nil {
			return configValidateResult{Valid: false, Error: err.Error()}, nil
		}
	}
	if err := candidate.Validate(); err != nil {
		return configValidateResult{Valid: false, Error: err.Error()}, nil
	}
	return configValidateResult{Valid: true}, nil
}

// --- onboard.* ---
//
// The onboarding wizard's UI, prompts, and TOML editing live in the CLI
// front-end (out of scope per §1). The daemon's half of the contract is
// just enough state for that front-end to decide whether to run: whether
// a channel adapter is configured yet.

type onboardStatusResult struct {
	Configured bool `json:"configured"`
}

func (d *daemon) handleOnboardStatus(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	cfg := d.cfgMgr.Get()
	return onboardStatusResult{Configured: cfg.Telegram.Token != ""}, nil
}

func (d *daemon) handleOnboardExecute(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	// Actual onboarding steps (token capture, secret storage) are owned by
	// the external front-end; the daemon has nothing further to execute.
	return map[string]bool{"ok": true}, nil
}

// --- scheduler.* ---

func (d *daemon) handleSchedulerList(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	return d.scheduler.List(), nil
}

type schedulerTriggerParams struct {
	Name string `json:"name"`
}

func (d *daemon) handleSchedulerTrigger(ctx context.Context, client *rpc.Client, raw json.RawMessage) (interface{}, error) {
	var p schedulerTriggerParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcerr.New(rpcerr.InvalidParams, "bad params: %v", err)
	}
	if err := d.scheduler.Trigger(context.Background(), p.Name); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}
