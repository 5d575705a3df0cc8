package replica

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
)

func openTest(t *testing.T) *Replica {
	t.Helper()
	r, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func ticketAt(id string, at time.Time) *models.Ticket {
	return &models.Ticket{
		ID:          id,
		CreatedBy:   "cit-1",
		Category:    "roads",
		Description: "placeholder",
		Status:      models.StatusNew,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func TestUpsertRoundTrip(t *testing.T) {
	t.Parallel()
	r := openTest(t)

	at := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)
	in := ticketAt("t-1", at)
	lat, lng := 13.0067, 80.2206
	in.Lat, in.Lng = &lat, &lng
	rating := 4
	in.CitizenRating = &rating
	in.ClosedAt = &at

	if err := r.Accept(in); err != nil {
		t.Fatalf("accept: %v", err)
	}
	got, err := r.Get("t-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("ticket not found after accept")
	}
	if !got.CreatedAt.Equal(at) || !got.UpdatedAt.Equal(at) {
		t.Fatalf("timestamps lost precision: %v / %v", got.CreatedAt, got.UpdatedAt)
	}
	if got.Lat == nil || *got.Lat != lat || got.Lng == nil || *got.Lng != lng {
		t.Fatalf("coordinates: %v %v", got.Lat, got.Lng)
	}
	if got.CitizenRating == nil || *got.CitizenRating != rating {
		t.Fatalf("rating: %v", got.CitizenRating)
	}
	if got.ClosedAt == nil || !got.ClosedAt.Equal(at) {
		t.Fatalf("closed_at: %v", got.ClosedAt)
	}

	missing, err := r.Get("t-none")
	if err != nil || missing != nil {
		t.Fatalf("missing ticket = %v, %v; want nil, nil", missing, err)
	}
}

func TestMergeSkipsDirtyAndStaleRows(t *testing.T) {
	t.Parallel()
	r := openTest(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// a dirty row is never overwritten by a pull
	local := ticketAt("t-1", base)
	local.Status = models.StatusAssigned
	if err := r.UpsertLocal(local); err != nil {
		t.Fatal(err)
	}
	incoming := ticketAt("t-1", base.Add(time.Hour))
	changed, err := r.Merge(incoming)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("merge overwrote a dirty row")
	}
	got, _ := r.Get("t-1")
	if got.Status != models.StatusAssigned {
		t.Fatalf("dirty row regressed to %s", got.Status)
	}

	// an acknowledged row ignores older incoming state
	ack := ticketAt("t-2", base.Add(time.Hour))
	ack.Status = models.StatusInProgress
	if err := r.Accept(ack); err != nil {
		t.Fatal(err)
	}
	stale := ticketAt("t-2", base)
	changed, err = r.Merge(stale)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("merge applied a stale row")
	}
	got, _ = r.Get("t-2")
	if got.Status != models.StatusInProgress {
		t.Fatalf("stale merge regressed to %s", got.Status)
	}

	// newer authoritative state lands
	newer := ticketAt("t-2", base.Add(2*time.Hour))
	newer.Status = models.StatusResolved
	changed, err = r.Merge(newer)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("merge skipped a newer row")
	}
	got, _ = r.Get("t-2")
	if got.Status != models.StatusResolved {
		t.Fatalf("newer merge not applied, status %s", got.Status)
	}

	// unknown tickets insert
	changed, err = r.Merge(ticketAt("t-3", base))
	if err != nil || !changed {
		t.Fatalf("merge of unknown ticket: changed=%v err=%v", changed, err)
	}
}

func TestListOrderingStableForEqualTimestamps(t *testing.T) {
	t.Parallel()
	r := openTest(t)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		if err := r.Accept(ticketAt(fmt.Sprintf("t-%d", i), at)); err != nil {
			t.Fatal(err)
		}
	}

	mine, err := r.MyTickets("cit-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 3 {
		t.Fatalf("got %d tickets, want 3", len(mine))
	}
	// equal created_at falls back to insertion order, newest first
	want := []string{"t-3", "t-2", "t-1"}
	for i, w := range want {
		if mine[i].ID != w {
			t.Fatalf("position %d = %s, want %s (full: %v)", i, mine[i].ID, w, ids(mine))
		}
	}
}

func ids(ts []models.Ticket) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func TestSupervisorQueueOldestFirst(t *testing.T) {
	t.Parallel()
	r := openTest(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"t-b", "t-a"} {
		tk := ticketAt(id, base.Add(time.Duration(1-i)*time.Hour))
		tk.Status = models.StatusWaitingSupervisor
		tk.CurrentSupervisor = "sup-1"
		if err := r.Accept(tk); err != nil {
			t.Fatal(err)
		}
	}
	// a ticket in another state never shows up
	other := ticketAt("t-c", base)
	other.CurrentSupervisor = "sup-1"
	if err := r.Accept(other); err != nil {
		t.Fatal(err)
	}

	q, err := r.SupervisorQueue("sup-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(q) != 2 || q[0].ID != "t-a" || q[1].ID != "t-b" {
		t.Fatalf("queue order = %v, want [t-a t-b]", ids(q))
	}
}

func TestQueueSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "replica.db")
	r, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	seq1, err := r.NextSeq()
	if err != nil {
		t.Fatal(err)
	}
	seq2, err := r.NextSeq()
	if err != nil {
		t.Fatal(err)
	}
	if seq2 != seq1+1 {
		t.Fatalf("seq sequence %d then %d, want consecutive", seq1, seq2)
	}
	now := time.Now()
	if err := r.Enqueue("m-1", seq1, []byte(`{"op":"create_ticket"}`), now); err != nil {
		t.Fatal(err)
	}
	if err := r.Enqueue("m-2", seq2, []byte(`{"op":"add_comment"}`), now); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	r2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer r2.Close()

	pending, err := r2.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0].ID != "m-1" || pending[1].ID != "m-2" {
		t.Fatalf("pending after reopen = %+v", pending)
	}

	seq3, err := r2.NextSeq()
	if err != nil {
		t.Fatal(err)
	}
	if seq3 != seq2+1 {
		t.Fatalf("seq after reopen = %d, want %d", seq3, seq2+1)
	}

	if err := r2.Dequeue("m-1"); err != nil {
		t.Fatal(err)
	}
	pending, _ = r2.Pending()
	if len(pending) != 1 || pending[0].ID != "m-2" {
		t.Fatalf("pending after dequeue = %+v", pending)
	}
}

func TestWatermark(t *testing.T) {
	t.Parallel()
	r := openTest(t)

	wm, err := r.Watermark()
	if err != nil {
		t.Fatal(err)
	}
	if !wm.IsZero() {
		t.Fatalf("fresh replica watermark = %v, want zero", wm)
	}

	at := time.Date(2026, 3, 1, 15, 30, 0, 987654321, time.UTC)
	if err := r.SetWatermark(at); err != nil {
		t.Fatal(err)
	}
	wm, err = r.Watermark()
	if err != nil {
		t.Fatal(err)
	}
	if !wm.Equal(at) {
		t.Fatalf("watermark = %v, want %v", wm, at)
	}
}

func TestDeleteRemovesTicketAndTrail(t *testing.T) {
	t.Parallel()
	r := openTest(t)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := r.Accept(ticketAt("t-1", at)); err != nil {
		t.Fatal(err)
	}
	if err := r.StoreEvents([]models.TicketEvent{{
		ID: "ev-1", TicketID: "t-1", ActorID: "cit-1",
		Type: models.EventComment, Message: "hello", CreatedAt: at,
	}}); err != nil {
		t.Fatal(err)
	}

	if err := r.Delete("t-1"); err != nil {
		t.Fatal(err)
	}
	got, err := r.Get("t-1")
	if err != nil || got != nil {
		t.Fatalf("after delete: %v, %v", got, err)
	}
	d, err := r.Detail("t-1")
	if err != nil || d != nil {
		t.Fatalf("detail after delete: %v, %v", d, err)
	}
}
