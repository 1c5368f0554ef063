package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/rtn/internal/ir"
	"github.com/roach88/rtn/internal/scheduler"
)

// hostInput is one parsed stdin line of the run command.
type hostInput struct {
	Event   string
	Payload ir.Value
	Quit    bool
}

// parseInput maps a stdin line to the bus event it stands for:
//
//	touch                      trigger a session
//	face                       a detected face
//	face-invalid               a malformed face payload
//	sound <label> [feature...] a sound classification
//	quit                       stop the host
//
// Blank lines and lines starting with # yield a zero hostInput.
func parseInput(events scheduler.Events, line string, now time.Time) (hostInput, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return hostInput{}, nil
	}

	switch fields[0] {
	case "touch":
		return hostInput{Event: events.Trigger, Payload: ir.Int(1)}, nil
	case "face":
		payload := ir.NewArray(ir.Int(now.UnixMilli()), ir.Object{"faces": ir.Int(1)})
		return hostInput{Event: events.SuccessSignal, Payload: payload}, nil
	case "face-invalid":
		return hostInput{Event: events.SuccessSignal, Payload: ir.NewArray()}, nil
	case "sound":
		if len(fields) < 2 {
			return hostInput{}, fmt.Errorf("sound: label required")
		}
		arr := ir.NewArray(ir.String(fields[1]))
		for _, f := range fields[2:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return hostInput{}, fmt.Errorf("sound: feature %q: %w", f, err)
			}
			arr = append(arr, ir.Float(v))
		}
		return hostInput{Event: events.Classification, Payload: arr}, nil
	case "quit", "exit":
		return hostInput{Quit: true}, nil
	default:
		return hostInput{}, fmt.Errorf("unknown input %q (want touch, face, face-invalid, sound <label>, quit)", fields[0])
	}
}
