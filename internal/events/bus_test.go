package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan StreamFailedEvent, 1)

	unsub := bus.Subscribe(func(e StreamFailedEvent) {
		received <- e
	})
	defer unsub()

	ev := StreamFailedEvent{
		DeviceID:  "cam-1",
		Kind:      "ConnectionError",
		Message:   "Connection refused",
		ExitCode:  1,
		Timestamp: "2025-01-27T10:30:00Z",
	}
	bus.Publish(ev)

	select {
	case got := <-received:
		if got != ev {
			t.Errorf("got %+v, want %+v", got, ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan StreamStartedEvent, 1)
	received2 := make(chan StreamStartedEvent, 1)

	unsub1 := bus.Subscribe(func(e StreamStartedEvent) { received1 <- e })
	defer unsub1()
	unsub2 := bus.Subscribe(func(e StreamStartedEvent) { received2 <- e })
	defer unsub2()

	bus.Publish(StreamStartedEvent{DeviceID: "cam-1", PID: 42})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan StreamStoppedEvent, 1)

	unsub := bus.Subscribe(func(e StreamStoppedEvent) { received <- e })

	bus.Publish(StreamStoppedEvent{DeviceID: "cam-1"})
	<-received

	unsub()

	bus.Publish(StreamStoppedEvent{DeviceID: "cam-2"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	exited := make(chan bool, 1)
	failed := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ StreamExitedEvent) { exited <- true })
	defer unsub1()
	unsub2 := bus.Subscribe(func(_ StreamFailedEvent) { failed <- true })
	defer unsub2()

	bus.Publish(StreamExitedEvent{DeviceID: "cam-1"})
	<-exited

	select {
	case <-failed:
		t.Fatal("failure subscriber should not receive StreamExitedEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)
	unsub := bus.Subscribe(func(_ SweepEvent) { receivedCh <- true })
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(SweepEvent{Pattern: "mpv", Reason: "test"})
			}
		}()
	}
	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	if unsub == nil {
		t.Fatal("expected no-op unsubscribe for unknown handler type")
	}
	unsub()
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 1)

	unsub := SubscribeToChannel[StreamRunningEvent](bus, ch)
	defer unsub()

	bus.Publish(StreamRunningEvent{DeviceID: "cam-1"})

	select {
	case got := <-ch:
		if e, ok := got.(StreamRunningEvent); !ok || e.DeviceID != "cam-1" {
			t.Errorf("unexpected event %#v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}
