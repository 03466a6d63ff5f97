package models

import (
	"time"

	id "collabhub/pkg/domain"
)

// Payload is the JSON body clients receive with an event.
type Payload struct {
	Kind       Kind           `json:"kind"`
	Message    string         `json:"message"`
	Scope      string         `json:"scope"`
	DomainID   string         `json:"domainId,omitempty"`
	PanelID    string         `json:"panelId,omitempty"`
	DomainName string         `json:"domainName,omitempty"`
	PanelName  string         `json:"panelName,omitempty"`
	AuthorID   string         `json:"authorId,omitempty"`
	AuthorName string         `json:"authorName,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	SentAt     time.Time      `json:"sentAt"`
}

// Frame is the envelope written to a client socket.
type Frame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Delivery is the resolved outcome of targeting one event.
type Delivery struct {
	EventName   string
	Payload     Payload
	Connections []id.ConnectionID
}

// PublishResult summarizes one fan-out.
type PublishResult struct {
	Event      string `json:"event"`
	Recipients int    `json:"recipients"`
	Attempted  int    `json:"attempted"`
}
