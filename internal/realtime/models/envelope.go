package models

import (
	"encoding/json"
	"fmt"

	id "collabhub/pkg/domain"
	dErrors "collabhub/pkg/domain-errors"
	strutil "collabhub/pkg/platform/strings"
)

// Envelope is the wire form of an event descriptor, shared by the HTTP
// trigger endpoint and the Kafka trigger topic.
type Envelope struct {
	Kind           Kind           `json:"kind"`
	Scope          *id.Scope      `json:"scope,omitempty"`
	DomainID       string         `json:"domainId,omitempty"`
	PanelID        string         `json:"panelId,omitempty"`
	UserIDs        []id.UserID    `json:"userIds,omitempty"`
	AuthorID       id.UserID      `json:"authorId,omitempty"`
	StakeholderIDs []id.UserID    `json:"stakeholderIds,omitempty"`
	Event          string         `json:"event,omitempty"`
	Message        string         `json:"message"`
	Data           map[string]any `json:"data,omitempty"`
}

// DecodeEvent parses and validates an envelope. Every failure carries
// CodeInvalidInput: a bad envelope is a producer bug.
func DecodeEvent(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed event envelope")
	}
	return env.ToEvent()
}

// ToEvent converts the envelope into a validated descriptor.
func (env Envelope) ToEvent() (Event, error) {
	content := Content{Message: env.Message, Data: env.Data}

	var ev Event
	switch env.Kind {
	case KindGeneralAnnouncement:
		ev = GeneralAnnouncement{Scope: env.scope(), Content: content}
	case KindPanelAnnouncement:
		ev = PanelAnnouncement{
			DomainScope: id.DomainScope(env.DomainID),
			PanelScope:  id.PanelScope(env.PanelID),
			Content:     content,
		}
	case KindTargetedUsers:
		ev = TargetedUsers{Scope: env.scope(), UserIDs: strutil.Dedupe(env.UserIDs), Name: env.Event, Content: content}
	case KindPanelMembershipChange:
		ev = PanelMembershipChange{
			DomainScope: id.DomainScope(env.DomainID),
			PanelScope:  id.PanelScope(env.PanelID),
			UserIDs:     strutil.Dedupe(env.UserIDs),
			Content:     content,
		}
	case KindPanelCreated:
		pc := PanelCreated{
			DomainScope:    id.DomainScope(env.DomainID),
			AuthorID:       env.AuthorID,
			StakeholderIDs: strutil.Dedupe(env.StakeholderIDs),
			Content:        content,
		}
		if env.PanelID != "" {
			pc.PanelScope = id.PanelScope(env.PanelID)
		}
		ev = pc
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown event kind %q", env.Kind))
	}

	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// scope falls back to the domain id for producers that only send domainId.
func (env Envelope) scope() id.Scope {
	if env.Scope != nil {
		return *env.Scope
	}
	if env.DomainID != "" {
		return id.DomainScope(env.DomainID)
	}
	return id.Scope{}
}

// EncodeEvent renders a descriptor as an envelope.
func EncodeEvent(ev Event) ([]byte, error) {
	if err := ValidateEvent(ev); err != nil {
		return nil, err
	}
	c := ContentOf(ev)
	env := Envelope{Kind: ev.Kind(), Message: c.Message, Data: c.Data}
	switch e := ev.(type) {
	case GeneralAnnouncement:
		env.Scope = &e.Scope
	case PanelAnnouncement:
		env.DomainID, env.PanelID = e.DomainScope.ID, e.PanelScope.ID
	case TargetedUsers:
		env.Scope, env.UserIDs, env.Event = &e.Scope, e.UserIDs, e.Name
	case PanelMembershipChange:
		env.DomainID, env.PanelID, env.UserIDs = e.DomainScope.ID, e.PanelScope.ID, e.UserIDs
	case PanelCreated:
		env.DomainID, env.PanelID = e.DomainScope.ID, e.PanelScope.ID
		env.AuthorID, env.StakeholderIDs = e.AuthorID, e.StakeholderIDs
	}
	return json.Marshal(env)
}
