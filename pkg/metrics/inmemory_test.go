package metrics

import "testing"

func TestInMemoryCollectorCountsEvents(t *testing.T) {
	c := NewInMemoryCollector()
	c.IncrementDispatchSends()
	c.IncrementDispatchSends()
	c.IncrementDispatchRetries()
	c.IncrementDispatchExhausted()
	c.IncrementPublishSuccess()
	c.IncrementPublishErrors()
	c.SetPCIConnected(true)

	snap := c.Snapshot()
	if snap.DispatchSends != 2 {
		t.Fatalf("expected 2 dispatch sends, got %d", snap.DispatchSends)
	}
	if snap.DispatchRetries != 1 || snap.DispatchExhausted != 1 {
		t.Fatalf("unexpected retry/exhausted counts: %+v", snap)
	}
	if snap.PublishSuccess != 1 || snap.PublishErrors != 1 {
		t.Fatalf("unexpected publish counts: %+v", snap)
	}
	if !snap.PCIConnected {
		t.Fatal("expected PCIConnected true")
	}
}

func TestNullCollectorIsNoOp(t *testing.T) {
	var c Collector = NewNullCollector()
	c.IncrementDispatchSends()
	c.IncrementDispatchRetries()
	c.IncrementDispatchExhausted()
	c.IncrementPublishSuccess()
	c.IncrementPublishErrors()
	c.SetPCIConnected(true)
}
