//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"stampchat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself: supervision, panic recovery, and restarts
// belong to the Supervisor.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	return TypeName(w)
}

// TypeName is the reflective name of any value, pointers unwrapped.
func TypeName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives domain events. Live viewer connections and permanent
// consumers (search index, inspectors) both implement it. Consume must
// return promptly; a sink that blocks past the delivery timeout is dropped.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks which viewer sinks are watching which group.
type IRegistry interface {
	SinksForGroup(groupID uuid.UUID) map[string]EventSink
	Subscribe(viewerID string, groupID uuid.UUID, sink EventSink)
	Unsubscribe(viewerID string, groupID uuid.UUID)
}
