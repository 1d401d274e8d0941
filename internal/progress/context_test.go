package progress

import "testing"

func TestEventsArriveInEnqueueOrder(t *testing.T) {
	pc := New()
	go func() {
		pc.Job("setup")
		pc.Log("canonicalizing")
		pc.Log("starting container")
		pc.Done()
	}()

	var got []Event
	for e := range pc.Events() {
		got = append(got, e)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	want := []string{"setup", "canonicalizing", "starting container"}
	for i, w := range want {
		if got[i].Text != w {
			t.Errorf("event %d: expected %q, got %q", i, w, got[i].Text)
		}
	}
}

func TestFatalEnqueuesErrorThenCloses(t *testing.T) {
	pc := New()
	go pc.Fatal("no such deployment")

	var got []Event
	for e := range pc.Events() {
		got = append(got, e)
	}
	if len(got) != 1 || got[0].Kind != KindError {
		t.Fatalf("expected a single error event, got %v", got)
	}
}

func TestEventsAfterDoneAreDropped(t *testing.T) {
	pc := New()
	pc.Job("a")
	pc.Done()
	pc.Log("should be dropped")

	var got []Event
	for e := range pc.Events() {
		got = append(got, e)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the pre-Done event, got %v", got)
	}
}

func TestRenderPlaintext(t *testing.T) {
	cases := []struct {
		e    Event
		want string
	}{
		{Event{Kind: KindJob, Text: "setup"}, "-----> setup\n"},
		{Event{Kind: KindLog, Text: "ok"}, "       ok\n"},
		{Event{Kind: KindError, Text: "boom"}, "       Error: boom\n"},
	}
	for _, c := range cases {
		if got := c.e.RenderPlaintext(); got != c.want {
			t.Errorf("RenderPlaintext(%+v) = %q, want %q", c.e, got, c.want)
		}
	}
}
