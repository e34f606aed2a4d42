// Package replay reads a relay session log (server/recording.go's on-disk
// format) and drives one of three modes against it: display (decode and
// print summary statistics), play (resend at the recorded cadence through a
// live connection), and loop (play forever). There is no teacher analogue
// for this tool; it is a small set of exported functions with no state
// struct, context-cancelable, using log/slog for summary output.
package replay

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"muco/client/internal/wire"
)

// Record is one decoded log entry: the milliseconds elapsed between the
// relay's start and the frame's arrival, and the raw frame bytes (length
// prefix included, exactly as recorded).
type Record struct {
	DeltaMS uint32
	Frame   []byte // length-prefixed frame, as read off the wire
}

// ReadLog loads every record from path in order. The file format is
// `<delta_ms:u32 LE><frame bytes including length prefix>` repeated to EOF.
func ReadLog(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	var records []Record
	for {
		var head [4]byte
		if _, err := io.ReadFull(f, head[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read record header: %w", err)
		}
		deltaMS := binary.LittleEndian.Uint32(head[:])

		var lenBuf [4]byte
		if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
			return nil, fmt.Errorf("read frame length: %w", err)
		}
		bodyLen := binary.LittleEndian.Uint32(lenBuf[:])

		frame := make([]byte, 4+bodyLen)
		copy(frame, lenBuf[:])
		if _, err := io.ReadFull(f, frame[4:]); err != nil {
			return nil, fmt.Errorf("read frame body: %w", err)
		}

		records = append(records, Record{DeltaMS: deltaMS, Frame: frame})
	}
	return records, nil
}

// Sender is the subset of Connection's API the play/loop modes need: enough
// to replay a recorded frame into a live connection process without
// replay depending on the full Connection type.
type Sender interface {
	Send(msg wire.ClientToServer)
}

// Display decodes every record in path and logs a one-line summary plus
// per-message detail, finishing with aggregate statistics: duration, byte
// rate, message rate, and a histogram of inter-arrival gaps in milliseconds.
func Display(path string) error {
	records, err := ReadLog(path)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		slog.Info("log empty", "path", path)
		return nil
	}

	var totalBytes int
	gapCounts := map[uint32]int{}
	prevDelta := records[0].DeltaMS

	for i, r := range records {
		payload := r.Frame[4:]
		totalBytes += len(r.Frame)

		msg, err := wire.DecodeClientToServer(payload, 0)
		if err != nil {
			slog.Warn("decode error", "index", i, "delta_ms", r.DeltaMS, "err", err)
			continue
		}
		describeMessage(i, r.DeltaMS, msg)

		if i > 0 {
			gap := r.DeltaMS - prevDelta
			gapCounts[gap]++
		}
		prevDelta = r.DeltaMS
	}

	durationMS := records[len(records)-1].DeltaMS - records[0].DeltaMS
	durationS := float64(durationMS) / 1000.0
	var byteRate, msgRate float64
	if durationS > 0 {
		byteRate = float64(totalBytes) / durationS
		msgRate = float64(len(records)) / durationS
	}

	slog.Info("replay summary",
		"records", len(records),
		"duration_ms", durationMS,
		"bytes", totalBytes,
		"byte_rate_per_s", byteRate,
		"msg_rate_per_s", msgRate,
	)
	printGapHistogram(gapCounts)
	return nil
}

func describeMessage(index int, deltaMS uint32, msg wire.ClientToServer) {
	switch m := msg.(type) {
	case wire.MsgBinaryMessageTo:
		inner, err := wire.DecodeInterClient(m.Bytes)
		if err != nil {
			slog.Info("record", "index", index, "delta_ms", deltaMS, "type", "BinaryMessageTo", "inner_decode_err", err)
			return
		}
		slog.Info("record", "index", index, "delta_ms", deltaMS, "type", "BinaryMessageTo", "inner_kind", inner.Kind)
	case wire.MsgSetData:
		slog.Info("record", "index", index, "delta_ms", deltaMS, "type", "SetData", "key", m.Key, "bytes", len(m.Data))
	case wire.MsgClaimData:
		slog.Info("record", "index", index, "delta_ms", deltaMS, "type", "ClaimData", "key", m.Key)
	case wire.MsgKick:
		slog.Info("record", "index", index, "delta_ms", deltaMS, "type", "Kick", "target", m.Target)
	case wire.MsgSetClientType:
		slog.Info("record", "index", index, "delta_ms", deltaMS, "type", "SetClientType", "client_type", m.Type)
	case wire.MsgDisconnect:
		slog.Info("record", "index", index, "delta_ms", deltaMS, "type", "Disconnect")
	default:
		slog.Info("record", "index", index, "delta_ms", deltaMS, "type", fmt.Sprintf("%T", msg))
	}
}

func printGapHistogram(gapCounts map[uint32]int) {
	gaps := make([]uint32, 0, len(gapCounts))
	for g := range gapCounts {
		gaps = append(gaps, g)
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
	for _, g := range gaps {
		slog.Info("inter-arrival gap", "gap_ms", g, "count", gapCounts[g])
	}
}

// Play anchors "virtual zero" to now minus the first record's delta, then
// sleeps until each record's scheduled instant before sending it through
// sender. Inbound traffic on sender is ignored during playback.
func Play(ctx context.Context, path string, sender Sender) error {
	records, err := ReadLog(path)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	virtualZero := time.Now().Add(-time.Duration(records[0].DeltaMS) * time.Millisecond)

	for _, r := range records {
		target := virtualZero.Add(time.Duration(r.DeltaMS) * time.Millisecond)
		if d := time.Until(target); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		msg, err := wire.DecodeClientToServer(r.Frame[4:], 0)
		if err != nil {
			slog.Warn("skipping undecodable record during playback", "delta_ms", r.DeltaMS, "err", err)
			continue
		}
		sender.Send(msg)
	}
	return nil
}

// Loop replays path through sender indefinitely until ctx is canceled.
func Loop(ctx context.Context, path string, sender Sender) error {
	for {
		if err := Play(ctx, path, sender); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
