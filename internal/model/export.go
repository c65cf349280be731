package model

import "time"

// ChatExport is a read-only snapshot of a chat.
type ChatExport struct {
	ExportedAt   time.Time     `json:"exportedAt"`
	Chat         Chat          `json:"chat"`
	OrderRef     *string       `json:"orderRef,omitempty"`
	Participants []string      `json:"participants"`
	Messages     []MessageView `json:"messages"`
}
