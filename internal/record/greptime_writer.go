package record

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

const (
	defaultStateTable = "jsbsim_state"
	defaultEventTable = "jsbsim_events"
	greptimeGRPCPort  = 4001
	writeTimeout      = 5 * time.Second
)

// greptimeClient is the subset of the ingester client used here.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes state and event rows to GreptimeDB via the ingester client.
type GreptimeDBWriter struct {
	client     greptimeClient
	stateTable string
	eventTable string
	log        *slog.Logger
}

// NewGreptimeDBWriter connects to endpoint (host or host:port). Empty
// table names take the defaults; tables are created on first write.
func NewGreptimeDBWriter(endpoint, database, stateTable, eventTable string, log *slog.Logger) (*GreptimeDBWriter, error) {
	host, port := endpoint, greptimeGRPCPort
	if h, p, err := net.SplitHostPort(endpoint); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid GreptimeDB port %q: %w", p, err)
		}
		host, port = h, n
	}
	if database == "" {
		database = "public"
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return newGreptimeDBWriter(client, stateTable, eventTable, log), nil
}

func newGreptimeDBWriter(client greptimeClient, stateTable, eventTable string, log *slog.Logger) *GreptimeDBWriter {
	if stateTable == "" {
		stateTable = defaultStateTable
	}
	if eventTable == "" {
		eventTable = defaultEventTable
	}
	if log == nil {
		log = slog.Default()
	}
	return &GreptimeDBWriter{client: client, stateTable: stateTable, eventTable: eventTable, log: log}
}

// Write inserts a single state row.
func (w *GreptimeDBWriter) Write(row StateRow) error {
	return w.WriteBatch([]StateRow{row})
}

// WriteBatch inserts multiple state rows.
func (w *GreptimeDBWriter) WriteBatch(rows []StateRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.stateTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("session_id", types.STRING)
	tbl.AddFieldColumn("step", types.UINT64)
	tbl.AddFieldColumn("sim_time_sec", types.FLOAT64)
	tbl.AddFieldColumn("lat_deg", types.FLOAT64)
	tbl.AddFieldColumn("lon_deg", types.FLOAT64)
	tbl.AddFieldColumn("alt_ft", types.FLOAT64)
	tbl.AddFieldColumn("phi_rad", types.FLOAT64)
	tbl.AddFieldColumn("theta_rad", types.FLOAT64)
	tbl.AddFieldColumn("psi_rad", types.FLOAT64)
	tbl.AddFieldColumn("p_rad_sec", types.FLOAT64)
	tbl.AddFieldColumn("q_rad_sec", types.FLOAT64)
	tbl.AddFieldColumn("r_rad_sec", types.FLOAT64)
	tbl.AddFieldColumn("u_fps", types.FLOAT64)
	tbl.AddFieldColumn("v_fps", types.FLOAT64)
	tbl.AddFieldColumn("w_fps", types.FLOAT64)
	tbl.AddFieldColumn("elapsed_ms", types.FLOAT64)
	tbl.AddFieldColumn("late", types.BOOLEAN)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	for _, r := range rows {
		err := tbl.AddRow(r.SessionID, r.Step, r.SimTime, r.Lat, r.Lon, r.Alt,
			r.Phi, r.Theta, r.Psi, r.P, r.Q, r.R, r.U, r.V, r.W,
			r.ElapsedMs, r.Late, r.Timestamp)
		if err != nil {
			return err
		}
	}
	return w.write(tbl, len(rows))
}

// WriteEvent inserts a transition event.
func (w *GreptimeDBWriter) WriteEvent(e EventRow) error {
	tbl, err := table.New(w.eventTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("session_id", types.STRING)
	tbl.AddFieldColumn("from_status", types.STRING)
	tbl.AddFieldColumn("to_status", types.STRING)
	tbl.AddFieldColumn("cause", types.STRING)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)
	if err := tbl.AddRow(e.SessionID, e.From, e.To, e.Cause, e.Timestamp); err != nil {
		return err
	}
	return w.write(tbl, 1)
}

func (w *GreptimeDBWriter) write(tbl *table.Table, n int) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if _, err := w.client.Write(ctx, tbl); err != nil {
		w.log.Error("greptime write failed", "rows", n, "err", err)
		return err
	}
	w.log.Debug("greptime write", "rows", n)
	return nil
}
