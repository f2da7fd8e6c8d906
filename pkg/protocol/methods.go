package protocol

// RPC method name constants, grouped by the domain they act on.
const (
	MethodDaemonPing     = "daemon.ping"
	MethodDaemonStatus   = "daemon.status"
	MethodDaemonShutdown = "daemon.shutdown"
	MethodDaemonReload   = "daemon.reload"

	MethodAgentList            = "agent.list"
	MethodAgentGet             = "agent.get"
	MethodAgentSpawn           = "agent.spawn"
	MethodAgentContinue        = "agent.continue"
	MethodAgentListCheckpoints = "agent.listCheckpoints"
	MethodAgentTerminate       = "agent.terminate"
	MethodAgentPause           = "agent.pause"
	MethodAgentResume          = "agent.resume"
	MethodAgentSend            = "agent.send"
	MethodAgentSnapshot        = "agent.snapshot"

	MethodChannelList       = "channel.list"
	MethodChannelGet        = "channel.get"
	MethodChannelConnect    = "channel.connect"
	MethodChannelDisconnect = "channel.disconnect"
	MethodChannelReconnect  = "channel.reconnect"

	MethodConversationList   = "conversation.list"
	MethodConversationGet    = "conversation.get"
	MethodConversationUnbind = "conversation.unbind"

	MethodConfigGet      = "config.get"
	MethodConfigValidate = "config.validate"

	MethodOnboardStatus  = "onboard.status"
	MethodOnboardExecute = "onboard.execute"

	MethodSchedulerList    = "scheduler.list"
	MethodSchedulerTrigger = "scheduler.trigger"

	MethodSubscribe   = "subscribe"
	MethodUnsubscribe = "unsubscribe"
)

// Subscription stream type names, passed as the first argument to
// "subscribe".
const (
	StreamLogs             = "logs"
	StreamAgentOutput       = "agent.output"
	StreamEventsChannel     = "events.channel"
	StreamEventsLifecycle   = "events.lifecycle"
)

// Notification method names pushed to subscribers.
const (
	NotifyLog            = "log"
	NotifyAgentOutput    = "agent.output"
	NotifyEventChannel   = "event.channel"
	NotifyEventLifecycle = "event.lifecycle"
)
