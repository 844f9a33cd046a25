package notify

import (
	"testing"
	"time"

	"github.com/example/conveyor/internal/ports/secondary"
)

func entry(id, ticketID string) *secondary.ProgressRecord {
	return &secondary.ProgressRecord{
		ID:       id,
		TicketID: ticketID,
		Phase:    "analyzing_code",
		State:    "running",
	}
}

func TestBrokerFiltersByTicket(t *testing.T) {
	broker := NewBroker(8)
	t.Cleanup(broker.Close)

	all, stopAll := broker.Subscribe("")
	defer stopAll()

	ticketOnly, stopTicket := broker.Subscribe("PROJ-1")
	defer stopTicket()

	broker.Publish(entry("E-1", "PROJ-1"))
	broker.Publish(entry("E-2", "PROJ-2"))

	assertReceivesIDs(t, all, []string{"E-1", "E-2"})
	assertReceivesIDs(t, ticketOnly, []string{"E-1"})
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	broker := NewBroker(4)
	t.Cleanup(broker.Close)

	events, unsubscribe := broker.Subscribe("PROJ-1")
	unsubscribe()

	broker.Publish(entry("E-1", "PROJ-1"))

	select {
	case _, ok := <-events:
		if ok {
			t.Fatalf("expected closed channel after unsubscribe")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timed out waiting for subscriber channel to close")
	}
}

func TestBrokerDropsStaleEntriesForSlowSubscribers(t *testing.T) {
	broker := NewBroker(1)
	t.Cleanup(broker.Close)

	events, unsubscribe := broker.Subscribe("PROJ-1")
	defer unsubscribe()

	broker.Publish(entry("E-1", "PROJ-1"))
	broker.Publish(entry("E-2", "PROJ-1"))

	select {
	case got := <-events:
		if got.ID != "E-2" {
			t.Fatalf("expected latest entry E-2, got %s", got.ID)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timed out waiting for latest entry")
	}
}

func TestBrokerPublishDuringUnsubscribe(t *testing.T) {
	broker := NewBroker(1)
	t.Cleanup(broker.Close)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			broker.Publish(entry("E-1", "PROJ-1"))
		}
	}()

	// Churn subscriptions while the publisher runs. A send must never hit a
	// channel that unsubscribe has already closed.
	for i := 0; i < 1000; i++ {
		events, unsubscribe := broker.Subscribe("PROJ-1")
		select {
		case <-events:
		default:
		}
		unsubscribe()
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for publisher to finish")
	}
}

func TestBrokerPublishAfterCloseIsNoop(t *testing.T) {
	broker := NewBroker(4)

	events, _ := broker.Subscribe("PROJ-1")
	broker.Close()

	broker.Publish(entry("E-1", "PROJ-1"))

	if _, ok := <-events; ok {
		t.Fatal("expected closed channel after broker Close")
	}
}

func assertReceivesIDs(t *testing.T, ch <-chan *secondary.ProgressRecord, expected []string) {
	t.Helper()
	for _, id := range expected {
		select {
		case got := <-ch:
			if got.ID != id {
				t.Fatalf("expected entry %s, got %s", id, got.ID)
			}
		case <-time.After(200 * time.Millisecond):
			t.Fatalf("timed out waiting for entry %s", id)
		}
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected extra entry %s", got.ID)
	case <-time.After(50 * time.Millisecond):
	}
}
