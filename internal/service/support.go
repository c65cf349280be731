package service

// Stores bundles the persistence ports. Both the Postgres repositories and
// the in-memory store satisfy them.
type Stores struct {
	Chats         ChatStore
	Messages      MessageLog
	Notifications NotificationStore
	Staff         StaffRoster
}

// Support is the wired conversation engine.
type Support struct {
	Directory *SessionDirectory
	Messages  *MessageStore
	Lifecycle *ChatLifecycle
	Fanout    *NotificationFanout
	Router    *DeliveryRouter
}

// NewSupport wires the engine. dispatch and alerts may be nil.
func NewSupport(st Stores, dispatch Dispatcher, alerts OfflineAlerter, clock Clock) *Support {
	directory := NewSessionDirectory(st.Chats, st.Staff, clock)
	store := NewMessageStore(st.Messages, clock)
	lifecycle := NewChatLifecycle(st.Chats, store, dispatch, clock)
	fanout := NewNotificationFanout(st.Notifications, dispatch, alerts)
	return &Support{
		Directory: directory,
		Messages:  store,
		Lifecycle: lifecycle,
		Fanout:    fanout,
		Router:    NewDeliveryRouter(directory, store, lifecycle, fanout, dispatch),
	}
}
