package record

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"jsbsim-bridge/internal/governor"
)

// ReplayLog replays state rows from r to writer. A speed >0 scales the
// recorded spacing between rows; if speed <= 0, no delay is inserted.
func ReplayLog(ctx context.Context, r io.Reader, writer StateWriter, speed float64) (int, error) {
	dec := json.NewDecoder(r)
	var prev time.Time
	n := 0
	for {
		var row StateRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		if !prev.IsZero() && speed > 0 {
			diff := row.Timestamp.Sub(prev)
			if speed != 1 {
				diff = time.Duration(float64(diff) / speed)
			}
			if err := governor.Sleep(ctx, diff); err != nil {
				return n, err
			}
		}
		if err := writer.Write(row); err != nil {
			return n, err
		}
		n++
		prev = row.Timestamp
	}
}

// ReplayLogFile opens a file and replays its state rows.
func ReplayLogFile(ctx context.Context, path string, writer StateWriter, speed float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ReplayLog(ctx, f, writer, speed)
}
