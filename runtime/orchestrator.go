// Package runtime handles event production, propagation, and the per-group
// write serialization. It orchestrates the system without containing
// business logic or domain rules.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"stampchat/contract"
	"stampchat/domain"
	"stampchat/domain/event"
	"stampchat/errors"
	"stampchat/repositories"
	"stampchat/runtime/workers"
)

// Orchestrator bridges services to the per-group workers. Each group gets
// one lazily started worker owning its sequence counter, so operations on
// different groups never block one another while appends within one group
// are totally ordered.
type Orchestrator struct {
	mu              sync.Mutex
	log             *slog.Logger
	supervisor      contract.ISupervisor
	registry        contract.IRegistry
	messages        repositories.IMessageRepository
	groups          repositories.IGroupRepository
	groupWorkers    map[uuid.UUID]*workers.GroupWorker
	events          chan event.DomainEvent
	permanentSinks  []contract.EventSink
	bufferSize      int
	deliveryTimeout time.Duration
	runCtx          context.Context
	cancel          context.CancelFunc
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry contract.IRegistry,
	messages repositories.IMessageRepository,
	groups repositories.IGroupRepository,
	bufferSize int, deliveryTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		log:             log,
		supervisor:      supervisor,
		registry:        registry,
		messages:        messages,
		groups:          groups,
		groupWorkers:    make(map[uuid.UUID]*workers.GroupWorker),
		events:          make(chan event.DomainEvent, bufferSize),
		bufferSize:      bufferSize,
		deliveryTimeout: deliveryTimeout,
	}
}

// AddSinks registers permanent event consumers. Must be called before Start.
func (o *Orchestrator) AddSinks(sinks ...contract.EventSink) {
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// Start launches the fanout pipeline and begins supervision. Group workers
// are started lazily on first use of their group. Non-blocking: the
// supervisor loop runs in its own goroutine until Stop or ctx cancel.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	o.runCtx, o.cancel = context.WithCancel(ctx)
	fanout := workers.NewEventFanout(o.log, o.events, o.deliveryTimeout, o.permanentSinks...)
	o.supervisor.Add(fanout)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	go o.supervisor.Run(o.runCtx)
}

// Stop initiates a graceful shutdown: workers stop blocking and drain.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.mu.Unlock()
	o.supervisor.Stop()
}

// Append routes a composed message to its group's worker and waits for the
// durable result. Once the command is accepted by the worker, the append is
// no longer cancellable: it either fully completes and is visible to all
// subscribers, or fails entirely. The caller may stop waiting (ctx done or
// orchestrator shutdown), in which case a buffered command can still land
// durably even though the reply is lost.
func (o *Orchestrator) Append(ctx context.Context, cmd domain.AppendMessageCommand) (domain.Message, error) {
	worker, err := o.workerFor(cmd.GroupID)
	if err != nil {
		return domain.Message{}, err
	}
	o.mu.Lock()
	runCtx := o.runCtx
	o.mu.Unlock()

	req := workers.AppendRequest{Cmd: cmd, Reply: make(chan workers.AppendResult, 1)}
	select {
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	case worker.Appends() <- req:
	}

	select {
	case result := <-req.Reply:
		return result.Message, result.Err
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	case <-runCtx.Done():
		return domain.Message{}, fmt.Errorf("orchestrator stopped before append completed")
	}
}

// Subscribe registers a viewer's sink with the group's worker and returns
// the initial snapshot. The union of the snapshot and the live stream
// contains every message exactly once.
func (o *Orchestrator) Subscribe(ctx context.Context, groupID uuid.UUID,
	viewerID string, sink contract.EventSink) ([]domain.Message, error) {
	worker, err := o.workerFor(groupID)
	if err != nil {
		return nil, err
	}

	req := workers.SubscribeRequest{
		ViewerID: viewerID,
		Sink:     sink,
		Reply:    make(chan workers.SubscribeResult, 1),
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case worker.Subscribes() <- req:
	}

	select {
	case <-ctx.Done():
		// The registration may still land; roll it back.
		o.registry.Unsubscribe(viewerID, groupID)
		return nil, ctx.Err()
	case result := <-req.Reply:
		return result.Snapshot, result.Err
	}
}

// Unsubscribe releases the viewer's sink. Idempotent, multi-call safe.
func (o *Orchestrator) Unsubscribe(groupID uuid.UUID, viewerID string) {
	o.registry.Unsubscribe(viewerID, groupID)
}

// History reads the full ordered log without involving the group's worker:
// readers never block writers, they observe a consistent prefix.
func (o *Orchestrator) History(groupID uuid.UUID) ([]domain.Message, error) {
	return o.messages.ReadAll(groupID)
}

// Broadcast delivers a membership event to the group's live viewers and to
// the permanent sink pipeline. Membership changes are not part of the
// message log's total order.
func (o *Orchestrator) Broadcast(ctx context.Context, evt event.DomainEvent) {
	for viewerID, sink := range o.registry.SinksForGroup(evt.Group()) {
		deliveryCtx, cancel := context.WithTimeout(ctx, o.deliveryTimeout)
		err := sink.Consume(deliveryCtx, evt)
		cancel()
		if err != nil {
			o.registry.Unsubscribe(viewerID, evt.Group())
			o.log.Warn("Dropping slow subscriber on broadcast",
				"viewer_id", viewerID,
				"group_id", evt.Group(),
				"error", err)
		}
	}

	select {
	case o.events <- evt:
	default:
		o.log.Debug("Permanent sink pipeline full, broadcast event lost for side consumers")
	}
}

// workerFor returns the group's worker, starting it under supervision on
// first use. Fails with ErrUnknownGroup for groups the directory has never
// created.
func (o *Orchestrator) workerFor(groupID uuid.UUID) (*workers.GroupWorker, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if worker, ok := o.groupWorkers[groupID]; ok {
		return worker, nil
	}
	if o.runCtx == nil {
		return nil, fmt.Errorf("orchestrator not started")
	}
	if _, err := o.groups.GetGroup(groupID); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownGroup, groupID)
	}

	worker := workers.NewGroupWorker(groupID, o.messages, o.registry,
		o.events, o.bufferSize, o.deliveryTimeout, o.log)
	o.groupWorkers[groupID] = worker
	o.supervisor.Start(o.runCtx, worker)
	o.log.Debug("Started group worker", "group_id", groupID)
	return worker, nil
}
