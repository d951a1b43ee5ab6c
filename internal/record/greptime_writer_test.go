package record

import (
	"context"
	"errors"
	"testing"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
)

type mockGreptimeClient struct {
	tables []*table.Table
	err    error
}

func (m *mockGreptimeClient) Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	m.tables = append(m.tables, tables...)
	return &gpb.GreptimeResponse{}, m.err
}

func TestGreptimeWriterStateRows(t *testing.T) {
	ts := time.Unix(0, 0).UTC()
	m := &mockGreptimeClient{}
	w := newGreptimeDBWriter(m, "", "", nil)

	rows := []StateRow{sampleRow(0, ts), sampleRow(1, ts.Add(20*time.Millisecond))}
	rows[1].Late = true
	if err := w.WriteBatch(rows); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if len(m.tables) != 1 {
		t.Fatalf("expected one table write, got %d", len(m.tables))
	}
	tbl := m.tables[0]

	schema := tbl.GetRows().Schema
	if len(schema) != 18 {
		t.Fatalf("schema length = %d, want 18", len(schema))
	}
	if schema[0].Datatype != gpb.ColumnDataType_STRING || schema[0].SemanticType != gpb.SemanticType_TAG {
		t.Fatalf("session_id column = %v/%v", schema[0].Datatype, schema[0].SemanticType)
	}
	if schema[1].Datatype != gpb.ColumnDataType_UINT64 {
		t.Fatalf("step column type = %v", schema[1].Datatype)
	}
	if schema[16].Datatype != gpb.ColumnDataType_BOOLEAN {
		t.Fatalf("late column type = %v", schema[16].Datatype)
	}
	if schema[17].SemanticType != gpb.SemanticType_TIMESTAMP {
		t.Fatalf("ts column semantic = %v", schema[17].SemanticType)
	}

	got := tbl.GetRows().Rows
	if len(got) != 2 {
		t.Fatalf("rows = %d", len(got))
	}
	if v := got[1].Values[0].GetStringValue(); v != "s1" {
		t.Fatalf("session_id = %s", v)
	}
	if v := got[1].Values[1].GetU64Value(); v != 1 {
		t.Fatalf("step = %d", v)
	}
	if v := got[1].Values[5].GetF64Value(); v != 5000 {
		t.Fatalf("alt_ft = %v", v)
	}
	if !got[1].Values[16].GetBoolValue() || got[0].Values[16].GetBoolValue() {
		t.Fatalf("late flags wrong")
	}
}

func TestGreptimeWriterEvents(t *testing.T) {
	m := &mockGreptimeClient{}
	w := newGreptimeDBWriter(m, "", "bridge_events", nil)
	ev := EventRow{SessionID: "s1", From: "synchronized", To: "faulted", Cause: "peer closed", Timestamp: time.Unix(0, 0)}
	if err := w.WriteEvent(ev); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	tbl := m.tables[0]
	if w.eventTable != "bridge_events" || w.stateTable != defaultStateTable {
		t.Fatalf("tables = %s/%s", w.stateTable, w.eventTable)
	}
	vals := tbl.GetRows().Rows[0].Values
	if vals[1].GetStringValue() != "synchronized" || vals[2].GetStringValue() != "faulted" || vals[3].GetStringValue() != "peer closed" {
		t.Fatalf("unexpected values %v", vals)
	}
}

func TestGreptimeWriterError(t *testing.T) {
	m := &mockGreptimeClient{err: errors.New("unavailable")}
	w := newGreptimeDBWriter(m, "", "", nil)
	if err := w.Write(sampleRow(0, time.Unix(0, 0))); err == nil {
		t.Fatal("expected error")
	}
	if err := w.WriteBatch(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if len(m.tables) != 1 {
		t.Fatalf("empty batch should not write")
	}
}
