package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"docflow/internal/broker"
	"docflow/internal/db"
	"docflow/internal/migrate"
)

func TestTopicsAreHierarchical(t *testing.T) {
	got := strings.Join(Topics("doc_out.published"), ",")
	if got != "events,events.doc_out,events.doc_out.published" {
		t.Fatalf("topics = %s", got)
	}
	if got := strings.Join(Topics("ping"), ","); got != "events,events.ping" {
		t.Fatalf("topics = %s", got)
	}
}

func TestEmitPublishesEnvelopeToEveryTopic(t *testing.T) {
	hub := broker.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := hub.Subscribe(ctx, Topics("case.assigned")...)

	p := Publisher{Broker: hub, Enabled: true, Now: func() time.Time { return time.UnixMilli(1700000000000) }}
	if !p.Emit(ctx, "case.assigned", map[string]any{"case_id": "c1"}, "", "ld-1") {
		t.Fatalf("expected delivery")
	}
	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case m := <-sub:
			seen[m.Topic] = true
			var env Envelope
			if err := json.Unmarshal(m.Payload, &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Event != "case.assigned" || env.Audience != DefaultAudience || env.ActorID != "ld-1" || env.Timestamp != 1700000000000 {
				t.Fatalf("unexpected envelope %+v", env)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing message %d", i)
		}
	}
	for _, topic := range []string{"events", "events.case", "events.case.assigned"} {
		if !seen[topic] {
			t.Fatalf("topic %s not published", topic)
		}
	}
}

type failingBroker struct{ fail map[string]bool }

func (f failingBroker) Publish(_ context.Context, topic string, _ []byte) error {
	if f.fail[topic] || f.fail["*"] {
		return errors.New("broker down")
	}
	return nil
}

func TestEmitIsBestEffort(t *testing.T) {
	ctx := context.Background()
	if (Publisher{Enabled: true}).Emit(ctx, "doc_in.assigned", nil, "", "") {
		t.Fatalf("nil broker should report false")
	}
	if (Publisher{Broker: broker.NewHub()}).Emit(ctx, "doc_in.assigned", nil, "", "") {
		t.Fatalf("disabled publisher should report false")
	}
	if (Publisher{Broker: failingBroker{fail: map[string]bool{"*": true}}, Enabled: true}).Emit(ctx, "doc_in.assigned", nil, "", "") {
		t.Fatalf("all failures should report false")
	}
	partial := Publisher{Broker: failingBroker{fail: map[string]bool{"events": true}}, Enabled: true}
	if !partial.Emit(ctx, "doc_in.assigned", nil, "", "") {
		t.Fatalf("partial success should report true")
	}
}

func TestWriterAppendsTrailRows(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn, db.SQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	w := Writer{Now: func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }}
	ctx := WithClientIP(context.Background(), "10.0.0.7")
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	from, to := int64(1), int64(2)
	if err := w.AppendWorkflow(ctx, tx, WorkflowRecord{EntityType: "document", EntityID: "d1", Action: "REGISTERED", FromStatusID: &from, ToStatusID: &to, ActorID: "vt"}); err != nil {
		t.Fatalf("append workflow: %v", err)
	}
	if err := w.AppendAudit(ctx, tx, AuditRecord{ActorID: "vt", Action: "DOC.IN.REGISTER", EntityType: "document", EntityID: "d1", Before: map[string]any{"status_id": 1}, After: map[string]any{"status_id": 2}}); err != nil {
		t.Fatalf("append audit: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	var ip, meta string
	var version int
	if err := conn.QueryRow(`SELECT ip, schema_version FROM audit_logs WHERE entity_id='d1'`).Scan(&ip, &version); err != nil {
		t.Fatalf("read audit: %v", err)
	}
	if ip != "10.0.0.7" || version != SchemaVersion {
		t.Fatalf("audit ip=%s version=%d", ip, version)
	}
	if err := conn.QueryRow(`SELECT meta_json FROM workflow_logs WHERE entity_id='d1'`).Scan(&meta); err != nil || meta != "{}" {
		t.Fatalf("workflow meta=%q err=%v", meta, err)
	}
}
