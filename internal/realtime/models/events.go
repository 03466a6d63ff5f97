package models

import (
	"fmt"
	"slices"
	"strings"

	id "collabhub/pkg/domain"
	dErrors "collabhub/pkg/domain-errors"
)

// Kind tags an event descriptor with its targeting rule.
type Kind string

const (
	KindGeneralAnnouncement   Kind = "general_announcement"
	KindPanelAnnouncement     Kind = "panel_announcement"
	KindTargetedUsers         Kind = "targeted_users"
	KindPanelMembershipChange Kind = "panel_membership_change"
	KindPanelCreated          Kind = "panel_created"
)

// Outbound event names delivered to clients.
const (
	EventAnnouncement      = "announcement"
	EventPanelAnnouncement = "panel-announcement"
	EventTaskAssigned      = "task-assigned"
	EventTaskMentioned     = "task-mentioned"
	EventPanelCreated      = "panel-created"
	EventMembershipChanged = "membership-changed"
)

// targetedEventNames are the names a TargetedUsers producer may choose.
var targetedEventNames = []string{EventTaskAssigned, EventTaskMentioned}

// Content is the rendering payload every descriptor carries.
type Content struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Event is a tagged description of a notification to fan out.
type Event interface {
	Kind() Kind
	// EventName is the outbound event name clients receive.
	EventName() string
	Validate() error
	content() Content
}

// GeneralAnnouncement reaches everyone online in Scope.
type GeneralAnnouncement struct {
	Scope id.Scope
	Content
}

func (GeneralAnnouncement) Kind() Kind          { return KindGeneralAnnouncement }
func (GeneralAnnouncement) EventName() string   { return EventAnnouncement }
func (e GeneralAnnouncement) content() Content { return e.Content }

func (e GeneralAnnouncement) Validate() error {
	return validateScope("scope", e.Scope, "")
}

// PanelAnnouncement reaches panel members online in the parent domain.
type PanelAnnouncement struct {
	DomainScope id.Scope
	PanelScope  id.Scope
	Content
}

func (PanelAnnouncement) Kind() Kind          { return KindPanelAnnouncement }
func (PanelAnnouncement) EventName() string   { return EventPanelAnnouncement }
func (e PanelAnnouncement) content() Content { return e.Content }

func (e PanelAnnouncement) Validate() error {
	if err := validateScope("domainScope", e.DomainScope, id.ScopeDomain); err != nil {
		return err
	}
	return validateScope("panelScope", e.PanelScope, id.ScopePanel)
}

// TargetedUsers reaches the listed users that are online in Scope. Producers
// compute the list (assignees, mentions); Name picks the outbound event and
// defaults to task-assigned.
type TargetedUsers struct {
	Scope   id.Scope
	UserIDs []id.UserID
	Name    string
	Content
}

func (TargetedUsers) Kind() Kind          { return KindTargetedUsers }
func (e TargetedUsers) content() Content { return e.Content }

func (e TargetedUsers) EventName() string {
	if e.Name == "" {
		return EventTaskAssigned
	}
	return e.Name
}

func (e TargetedUsers) Validate() error {
	if err := validateScope("scope", e.Scope, ""); err != nil {
		return err
	}
	if e.Name != "" && !slices.Contains(targetedEventNames, e.Name) {
		return dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("event %q is not one of %s", e.Name, strings.Join(targetedEventNames, ", ")))
	}
	return nil
}

// PanelMembershipChange reaches the affected members online in the domain.
type PanelMembershipChange struct {
	DomainScope id.Scope
	PanelScope  id.Scope
	UserIDs     []id.UserID
	Content
}

func (PanelMembershipChange) Kind() Kind          { return KindPanelMembershipChange }
func (PanelMembershipChange) EventName() string   { return EventMembershipChanged }
func (e PanelMembershipChange) content() Content { return e.Content }

func (e PanelMembershipChange) Validate() error {
	if err := validateScope("domainScope", e.DomainScope, id.ScopeDomain); err != nil {
		return err
	}
	return validateScope("panelScope", e.PanelScope, id.ScopePanel)
}

// PanelCreated reaches the domain owner and any extra stakeholders online in
// the domain. PanelScope is optional and only used for rendering.
type PanelCreated struct {
	DomainScope    id.Scope
	PanelScope     id.Scope
	AuthorID       id.UserID
	StakeholderIDs []id.UserID
	Content
}

func (PanelCreated) Kind() Kind          { return KindPanelCreated }
func (PanelCreated) EventName() string   { return EventPanelCreated }
func (e PanelCreated) content() Content { return e.Content }

func (e PanelCreated) Validate() error {
	if err := validateScope("domainScope", e.DomainScope, id.ScopeDomain); err != nil {
		return err
	}
	if !e.PanelScope.IsZero() {
		if err := validateScope("panelScope", e.PanelScope, id.ScopePanel); err != nil {
			return err
		}
	}
	if strings.TrimSpace(e.AuthorID.String()) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "authorId is required")
	}
	return nil
}

// ContentOf returns the rendering payload of e.
func ContentOf(e Event) Content {
	return e.content()
}

// ValidateEvent rejects nil descriptors as well as invalid shapes.
func ValidateEvent(e Event) error {
	if e == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "event descriptor is required")
	}
	return e.Validate()
}

func validateScope(field string, s id.Scope, want id.ScopeKind) error {
	if err := s.Validate(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, field+" is invalid")
	}
	if want != "" && s.Kind != want {
		return dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("%s must be a %s scope, got %s", field, want, s.Kind))
	}
	return nil
}
