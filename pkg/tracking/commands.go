package tracking

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Command types accepted on the host control channel.
const (
	CmdCalibrateBegin  = "calibrate_begin"
	CmdCalibratePoint  = "calibrate_point"
	CmdCalibrateFinish = "calibrate_finish"
	CmdCalibrateCancel = "calibrate_cancel"
	CmdPause           = "pause"
	CmdResume          = "resume"
	CmdStatus          = "status"
	CmdExit            = "exit"
)

// ErrExit is returned by HandleCommand for the exit command.
var ErrExit = errors.New("tracking: exit requested")

// Command is one host control message.
type Command struct {
	Type string  `json:"type"`
	X    float64 `json:"x,omitempty"`
	Y    float64 `json:"y,omitempty"`
}

// ParseCommand parses a JSON command line. The legacy text forms
// "CALIBRATE:x,y", "FINISH_CALIBRATION", "PAUSE", "RESUME" and "EXIT" are
// also accepted.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, errors.New("empty command")
	}

	if strings.HasPrefix(line, "{") {
		var c Command
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return Command{}, fmt.Errorf("bad command: %w", err)
		}
		c.Type = strings.ToLower(c.Type)
		if c.Type == "" {
			return Command{}, errors.New("command has no type")
		}
		return c, nil
	}

	upper := strings.ToUpper(line)
	switch {
	case strings.HasPrefix(upper, "CALIBRATE:"):
		x, y, ok := strings.Cut(line[len("CALIBRATE:"):], ",")
		if !ok {
			return Command{}, fmt.Errorf("bad calibration point %q", line)
		}
		fx, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return Command{}, fmt.Errorf("bad calibration x: %w", err)
		}
		fy, err := strconv.ParseFloat(strings.TrimSpace(y), 64)
		if err != nil {
			return Command{}, fmt.Errorf("bad calibration y: %w", err)
		}
		return Command{Type: CmdCalibratePoint, X: fx, Y: fy}, nil
	case upper == "BEGIN_CALIBRATION":
		return Command{Type: CmdCalibrateBegin}, nil
	case upper == "FINISH_CALIBRATION":
		return Command{Type: CmdCalibrateFinish}, nil
	case upper == "PAUSE", upper == "RESUME", upper == "STATUS", upper == "EXIT":
		return Command{Type: strings.ToLower(upper)}, nil
	}
	return Command{}, fmt.Errorf("unknown command %q", line)
}

// HandleCommand applies c and returns a value to report back to the host.
// The exit command returns ErrExit.
func (t *Tracker) HandleCommand(ctx context.Context, c Command) (any, error) {
	switch c.Type {
	case CmdCalibrateBegin:
		t.BeginCalibration()
		return map[string]string{"calibration": "collecting"}, nil
	case CmdCalibratePoint:
		if err := t.AddCalibrationPoint(c.X, c.Y, time.Now()); err != nil {
			return nil, err
		}
		return map[string]int{"pending": t.deps.Fitter.Pending()}, nil
	case CmdCalibrateFinish:
		m, err := t.FinishCalibration(ctx)
		if err != nil {
			return nil, err
		}
		return m, nil
	case CmdCalibrateCancel:
		t.CancelCalibration()
		return map[string]string{"calibration": t.deps.Fitter.State().String()}, nil
	case CmdPause:
		t.Pause()
		return map[string]string{"state": Paused.String()}, nil
	case CmdResume:
		t.Resume()
		return map[string]string{"state": Tracking.String()}, nil
	case CmdStatus:
		return t.Stats(), nil
	case CmdExit:
		return nil, ErrExit
	}
	return nil, fmt.Errorf("unknown command %q", c.Type)
}

// Reply is written back for every command read by ServeCommands.
type Reply struct {
	Type   string `json:"type"`
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ServeCommands reads one command per line from r until EOF, ctx is done or
// an exit command arrives, writing a JSON Reply per command to w. It
// returns ErrExit on exit and nil on EOF.
func (t *Tracker) ServeCommands(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	enc := json.NewEncoder(w)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		c, err := ParseCommand(line)
		if err != nil {
			t.logger.Warn("ignoring command", "line", line, "error", err)
			if w != nil {
				_ = enc.Encode(Reply{Type: "error", Error: err.Error()})
			}
			continue
		}

		result, err := t.HandleCommand(ctx, c)
		if errors.Is(err, ErrExit) {
			t.logger.Info("exit requested by host")
			return ErrExit
		}
		if w == nil {
			continue
		}
		reply := Reply{Type: c.Type, OK: err == nil, Result: result}
		if err != nil {
			reply.Error = err.Error()
		}
		if err := enc.Encode(reply); err != nil {
			return fmt.Errorf("write reply: %w", err)
		}
	}
	return scanner.Err()
}
