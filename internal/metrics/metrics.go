package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	MessagesAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_messages_appended_total",
			Help: "Messages persisted, by ingress channel and message kind.",
		},
		[]string{"channel", "kind"},
	)

	ChatsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_chats_created_total",
			Help: "Chats created by the session directory, by kind.",
		},
		[]string{"kind"},
	)

	SessionConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_session_conflicts_total",
			Help: "Chat creations that lost a uniqueness race and re-read the winner.",
		},
	)

	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_status_transitions_total",
			Help: "Chat lifecycle transitions.",
		},
		[]string{"from", "to"},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_notifications_total",
			Help: "Fan-out outcomes per recipient: ephemeral, persisted, duplicate or failed.",
		},
		[]string{"outcome"},
	)

	RealtimeDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_realtime_dropped_total",
			Help: "Realtime events dropped because a client send buffer was full.",
		},
	)

	RealtimeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_realtime_connections",
			Help: "Currently registered realtime connections on this instance.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		MessagesAppended,
		ChatsCreated,
		SessionConflicts,
		StatusTransitions,
		Notifications,
		RealtimeDropped,
		RealtimeConnections,
	)
}
