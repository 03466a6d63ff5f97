// Package targeting decides who receives each event descriptor.
//
// Recipients are always a subset of the connections online in the
// descriptor's scope at resolution time. Presence and membership failures
// degrade to delivering to nobody; rendering lookups degrade to plainer text.
// Only malformed descriptors are reported as errors.
package targeting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"collabhub/internal/realtime/metrics"
	"collabhub/internal/realtime/models"
	"collabhub/internal/realtime/ports"
	id "collabhub/pkg/domain"
	"collabhub/pkg/platform/sentinel"
)

// Dispatcher hands a rendered event to its recipients.
type Dispatcher interface {
	Dispatch(ctx context.Context, conns []id.ConnectionID, event string, payload any) int
}

type Engine struct {
	presence   ports.PresenceStore
	members    ports.MembershipResolver
	directory  ports.Directory
	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	now        func() time.Time
}

type Option func(*Engine)

// WithDirectory enables name and owner lookups. Without it PanelCreated
// reaches stakeholders only and messages render with raw ids.
func WithDirectory(directory ports.Directory) Option {
	return func(e *Engine) {
		e.directory = directory
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(presence ports.PresenceStore, members ports.MembershipResolver, dispatcher Dispatcher, opts ...Option) (*Engine, error) {
	if presence == nil {
		return nil, errors.New("presence store is required")
	}
	if members == nil {
		return nil, errors.New("membership resolver is required")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	e := &Engine{
		presence:   presence,
		members:    members,
		dispatcher: dispatcher,
		logger:     slog.New(slog.DiscardHandler),
		tracer:     otel.Tracer("collabhub/realtime/targeting"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Publish resolves ev and dispatches it.
func (e *Engine) Publish(ctx context.Context, ev models.Event) (*models.PublishResult, error) {
	ctx, span := e.tracer.Start(ctx, "targeting.publish")
	defer span.End()

	delivery, err := e.Resolve(ctx, ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid event descriptor")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("realtime.kind", string(ev.Kind())),
		attribute.Int("realtime.recipients", len(delivery.Connections)),
	)

	attempted := e.dispatcher.Dispatch(ctx, delivery.Connections, delivery.EventName, delivery.Payload)
	if e.metrics != nil {
		e.metrics.ObserveEvent(string(ev.Kind()), len(delivery.Connections))
	}
	e.logger.InfoContext(ctx, "event published",
		"kind", ev.Kind(),
		"event", delivery.EventName,
		"recipients", len(delivery.Connections),
		"attempted", attempted,
	)
	return &models.PublishResult{
		Event:      delivery.EventName,
		Recipients: len(delivery.Connections),
		Attempted:  attempted,
	}, nil
}

// Resolve computes the recipients and rendered payload of ev without
// delivering anything.
func (e *Engine) Resolve(ctx context.Context, ev models.Event) (*models.Delivery, error) {
	if err := models.ValidateEvent(ev); err != nil {
		return nil, err
	}

	content := models.ContentOf(ev)
	payload := models.Payload{
		Kind:    ev.Kind(),
		Message: content.Message,
		Data:    content.Data,
		SentAt:  e.now().UTC(),
	}

	var conns []id.ConnectionID
	switch ev := ev.(type) {
	case models.GeneralAnnouncement:
		conns = e.resolveGeneral(ctx, ev, &payload)
	case models.PanelAnnouncement:
		conns = e.resolvePanelAnnouncement(ctx, ev, &payload)
	case models.TargetedUsers:
		conns = e.resolveTargeted(ctx, ev, &payload)
	case models.PanelMembershipChange:
		conns = e.resolveMembershipChange(ctx, ev, &payload)
	case models.PanelCreated:
		conns = e.resolvePanelCreated(ctx, ev, &payload)
	default:
		return nil, fmt.Errorf("unsupported event kind %q", ev.Kind())
	}

	slices.Sort(conns)
	return &models.Delivery{
		EventName:   ev.EventName(),
		Payload:     payload,
		Connections: slices.Compact(conns),
	}, nil
}

// GeneralAnnouncement trusts its scope: no membership check.
func (e *Engine) resolveGeneral(ctx context.Context, ev models.GeneralAnnouncement, payload *models.Payload) []id.ConnectionID {
	setScope(payload, ev.Scope)
	online, ok := e.listOnline(ctx, ev.Scope)
	if !ok {
		return nil
	}
	return allConnections(online)
}

func (e *Engine) resolvePanelAnnouncement(ctx context.Context, ev models.PanelAnnouncement, payload *models.Payload) []id.ConnectionID {
	setScope(payload, ev.DomainScope)
	payload.PanelID = ev.PanelScope.ID

	var (
		g         errgroup.Group
		online    map[id.UserID]id.ConnectionID
		onlineOK  bool
		members   []id.UserID
		membersOK bool
	)
	g.Go(func() error {
		online, onlineOK = e.listOnline(ctx, ev.DomainScope)
		return nil
	})
	g.Go(func() error {
		members, membersOK = e.membersOf(ctx, ev.PanelScope)
		return nil
	})
	_ = g.Wait()

	if !onlineOK || !membersOK {
		return nil
	}
	return connectionsOf(online, members)
}

func (e *Engine) resolveTargeted(ctx context.Context, ev models.TargetedUsers, payload *models.Payload) []id.ConnectionID {
	setScope(payload, ev.Scope)
	conns, err := e.presence.ResolveConnections(ctx, ev.Scope, ev.UserIDs)
	if err != nil {
		e.degraded(ctx, "presence", "scope", ev.Scope.String(), "error", err)
		return nil
	}
	return conns
}

func (e *Engine) resolveMembershipChange(ctx context.Context, ev models.PanelMembershipChange, payload *models.Payload) []id.ConnectionID {
	setScope(payload, ev.DomainScope)
	payload.PanelID = ev.PanelScope.ID

	var (
		g     errgroup.Group
		conns []id.ConnectionID
		err   error
	)
	g.Go(func() error {
		conns, err = e.presence.ResolveConnections(ctx, ev.DomainScope, ev.UserIDs)
		return nil
	})
	g.Go(func() error {
		payload.DomainName = e.lookupName(ctx, "domain_name", ev.DomainScope.ID, e.domainName)
		return nil
	})
	g.Go(func() error {
		payload.PanelName = e.lookupName(ctx, "panel_name", ev.PanelScope.ID, e.panelName)
		return nil
	})
	_ = g.Wait()

	if payload.Message == "" {
		payload.Message = fmt.Sprintf("Membership of panel %s in %s changed",
			label(payload.PanelName, payload.PanelID), label(payload.DomainName, payload.DomainID))
	}
	if err != nil {
		e.degraded(ctx, "presence", "scope", ev.DomainScope.String(), "error", err)
		return nil
	}
	return conns
}

func (e *Engine) resolvePanelCreated(ctx context.Context, ev models.PanelCreated, payload *models.Payload) []id.ConnectionID {
	setScope(payload, ev.DomainScope)
	payload.PanelID = ev.PanelScope.ID
	payload.AuthorID = ev.AuthorID.String()

	var (
		g        errgroup.Group
		online   map[id.UserID]id.ConnectionID
		onlineOK bool
		owner    id.UserID
	)
	g.Go(func() error {
		online, onlineOK = e.listOnline(ctx, ev.DomainScope)
		return nil
	})
	g.Go(func() error {
		owner = e.domainOwner(ctx, ev.DomainScope.ID)
		return nil
	})
	g.Go(func() error {
		payload.AuthorName = e.lookupName(ctx, "author_name", ev.AuthorID.String(), e.userName)
		return nil
	})
	g.Go(func() error {
		payload.DomainName = e.lookupName(ctx, "domain_name", ev.DomainScope.ID, e.domainName)
		return nil
	})
	if !ev.PanelScope.IsZero() {
		g.Go(func() error {
			payload.PanelName = e.lookupName(ctx, "panel_name", ev.PanelScope.ID, e.panelName)
			return nil
		})
	}
	_ = g.Wait()

	if payload.Message == "" {
		payload.Message = fmt.Sprintf("%s created a panel in %s",
			label(payload.AuthorName, payload.AuthorID), label(payload.DomainName, payload.DomainID))
		if payload.PanelID != "" {
			payload.Message = fmt.Sprintf("%s created panel %s in %s",
				label(payload.AuthorName, payload.AuthorID),
				label(payload.PanelName, payload.PanelID),
				label(payload.DomainName, payload.DomainID))
		}
	}
	if !onlineOK {
		return nil
	}

	audience := make([]id.UserID, 0, len(ev.StakeholderIDs)+1)
	if !owner.IsNil() {
		audience = append(audience, owner)
	}
	audience = append(audience, ev.StakeholderIDs...)
	return connectionsOf(online, audience)
}

func (e *Engine) listOnline(ctx context.Context, scope id.Scope) (map[id.UserID]id.ConnectionID, bool) {
	online, err := e.presence.ListOnline(ctx, scope)
	if err != nil {
		e.degraded(ctx, "presence", "scope", scope.String(), "error", err)
		return nil, false
	}
	return online, true
}

func (e *Engine) membersOf(ctx context.Context, scope id.Scope) ([]id.UserID, bool) {
	members, err := e.members.MembersOf(ctx, scope)
	if err != nil {
		e.degraded(ctx, "membership", "scope", scope.String(), "error", err)
		return nil, false
	}
	return members, true
}

// domainOwner returns "" when the owner cannot be resolved; only the owner
// is dropped from the audience.
func (e *Engine) domainOwner(ctx context.Context, domainID string) id.UserID {
	if e.directory == nil {
		return ""
	}
	owner, err := e.directory.DomainOwner(ctx, domainID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			e.degraded(ctx, "domain_owner", "domain_id", domainID, "error", err)
		}
		return ""
	}
	return owner
}

func (e *Engine) domainName(ctx context.Context, key string) (string, error) {
	return e.directory.DomainName(ctx, key)
}

func (e *Engine) panelName(ctx context.Context, key string) (string, error) {
	return e.directory.PanelName(ctx, key)
}

func (e *Engine) userName(ctx context.Context, key string) (string, error) {
	return e.directory.UserName(ctx, id.UserID(key))
}

// lookupName returns "" on any failure so rendering falls back to the id.
func (e *Engine) lookupName(ctx context.Context, lookup, key string, fn func(context.Context, string) (string, error)) string {
	if e.directory == nil || key == "" {
		return ""
	}
	name, err := fn(ctx, key)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			e.degraded(ctx, lookup, "key", key, "error", err)
		}
		return ""
	}
	return name
}

func (e *Engine) degraded(ctx context.Context, lookup string, args ...any) {
	e.logger.WarnContext(ctx, "targeting lookup failed, degrading", append([]any{"lookup", lookup}, args...)...)
	if e.metrics != nil {
		e.metrics.IncrementDegraded(lookup)
	}
}

func allConnections(online map[id.UserID]id.ConnectionID) []id.ConnectionID {
	conns := make([]id.ConnectionID, 0, len(online))
	for _, connID := range online {
		conns = append(conns, connID)
	}
	return conns
}

// connectionsOf returns the connections of the userIDs present in online.
func connectionsOf(online map[id.UserID]id.ConnectionID, userIDs []id.UserID) []id.ConnectionID {
	conns := make([]id.ConnectionID, 0, len(userIDs))
	for _, userID := range userIDs {
		if connID, ok := online[userID]; ok {
			conns = append(conns, connID)
		}
	}
	return conns
}

func setScope(payload *models.Payload, scope id.Scope) {
	payload.Scope = scope.String()
	switch scope.Kind {
	case id.ScopeDomain:
		payload.DomainID = scope.ID
	case id.ScopePanel:
		payload.PanelID = scope.ID
	}
}

func label(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
