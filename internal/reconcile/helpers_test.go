package reconcile

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/evanofslack/ovh-reconcile/internal/gateway"
	"github.com/evanofslack/ovh-reconcile/internal/gateway/gatewaytest"
	"github.com/evanofslack/ovh-reconcile/internal/journal"
	"github.com/evanofslack/ovh-reconcile/internal/metrics"
	"github.com/evanofslack/ovh-reconcile/internal/poll"
	ovhdns "github.com/evanofslack/ovh-reconcile/internal/provider/ovh"
)

type memJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
	err     error
}

func (j *memJournal) Append(ctx context.Context, e journal.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) List(ctx context.Context, runID string) ([]journal.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]journal.Entry{}, j.entries...), nil
}

func (j *memJournal) Close() error { return nil }

type testEngine struct {
	*engine
	gw      *gatewaytest.Fake
	journal *memJournal
	sleeps  []time.Duration
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	gw := gatewaytest.New()
	m := metrics.New(false)
	te := &testEngine{gw: gw, journal: &memJournal{}}

	p := poll.New(10, 10*time.Second)
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		te.sleeps = append(te.sleeps, d)
		return nil
	}
	te.engine = NewEngine(gw, ovhdns.New(gw, 0, m), te.journal, p, m)
	return te
}

func (te *testEngine) reconcile(d Desired, simulate bool) (Outcome, error) {
	return te.Reconcile(context.Background(), Request{Desired: d, Simulate: simulate})
}

// zoneFake serves /domain/zone/{zone}/record from an in-memory record set.
type zoneFake struct {
	gw     *gatewaytest.Fake
	zone   string
	nextID int64
	ids    []int64
}

type zoneRecord struct {
	ID        int64  `json:"id"`
	SubDomain string `json:"subDomain"`
	FieldType string `json:"fieldType"`
	Target    string `json:"target"`
}

func newZoneFake(gw *gatewaytest.Fake, zone string) *zoneFake {
	z := &zoneFake{gw: gw, zone: zone, nextID: 100}
	gw.On(http.MethodGet, z.recordsPath(), func(gatewaytest.Call) (any, error) {
		return z.ids, nil
	})
	gw.On(http.MethodPost, z.recordsPath(), func(call gatewaytest.Call) (any, error) {
		data, err := jsonFields(call.Body)
		if err != nil {
			return nil, err
		}
		rec := z.add(data["subDomain"], data["target"])
		return rec, nil
	})
	return z
}

func (z *zoneFake) recordsPath() string {
	return gateway.Path("domain", "zone", z.zone, "record")
}

func (z *zoneFake) add(name, target string) zoneRecord {
	z.nextID++
	rec := zoneRecord{ID: z.nextID, SubDomain: name, FieldType: "A", Target: target}
	z.ids = append(z.ids, rec.ID)
	path := z.recordsPath() + "/" + strconv.FormatInt(rec.ID, 10)
	z.gw.Reply(http.MethodGet, path, rec)
	z.gw.Reply(http.MethodPut, path, nil)
	z.gw.Reply(http.MethodDelete, path, nil)
	return rec
}

// jsonFields decodes the string fields of a request body.
func jsonFields(body any) (map[string]string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := map[string]string{}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, nil
}
