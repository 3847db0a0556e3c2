package buildlog

import (
	"fmt"
	"strings"
)

// Step is one named pipeline stage recovered from a Jenkins console log.
type Step struct {
	Seq      int    `json:"seq"`
	Name     string `json:"name"`
	Duration string `json:"duration"`
	Status   string `json:"status"`
	Echoes   []Echo `json:"echoes"`
}

// Echo is a free-text message emitted inside a step via "[Pipeline] echo".
// Echo numbering restarts at 1 with each new step.
type Echo struct {
	Seq      int    `json:"seq"`
	Content  string `json:"content"`
	Duration string `json:"duration"`
}

const (
	stageMarker = "[Pipeline] { ("
	echoMarker  = "[Pipeline] echo"

	// StatusSuccess is the only step status this parser emits. Per-step
	// failure is not inferred from console content; callers that need the
	// build outcome read it from the build info instead.
	StatusSuccess = "success"

	// NoDuration is rendered when a step is missing a timestamp on either
	// side or a timestamp fails to parse.
	NoDuration = "-"
)

// Parse converts raw console text into an ordered list of steps. It is a pure
// function: a single forward pass over the lines, no I/O, deterministic output.
//
// Lines may begin with a bracketed wall-clock timestamp of the fixed form
// [HH:MM:SS]; when present it is stripped and used for duration arithmetic.
// A "[Pipeline] { (<name>)" line closes the previously open step and opens a
// new one. A "[Pipeline] echo" line marks the next non-blank line as an echo
// belonging to the currently open step.
func Parse(consoleText string) []Step {
	var steps []Step

	var open *Step
	var openedAt int // seconds since midnight, -1 when unknown
	echoSeq := 0
	pendingEcho := false

	for _, raw := range strings.Split(consoleText, "\n") {
		line := raw
		ts := -1
		if t, rest, ok := splitTimestamp(line); ok {
			ts = t
			line = rest
		}

		if name, ok := stageName(line); ok {
			if open != nil {
				open.Duration = formatDuration(openedAt, ts)
				steps = append(steps, *open)
			}
			open = &Step{
				Seq:    len(steps) + 1,
				Name:   name,
				Status: StatusSuccess,
				Echoes: []Echo{},
			}
			openedAt = ts
			echoSeq = 0
			pendingEcho = false
			continue
		}

		if strings.TrimSpace(line) == echoMarker || strings.HasSuffix(strings.TrimSpace(line), " "+echoMarker) {
			pendingEcho = true
			continue
		}

		if pendingEcho {
			content := strings.TrimSpace(line)
			if content == "" {
				continue // blank lines before the message are skipped
			}
			pendingEcho = false
			if open != nil {
				echoSeq++
				open.Echoes = append(open.Echoes, Echo{
					Seq:      echoSeq,
					Content:  content,
					Duration: NoDuration,
				})
			}
		}
	}

	if open != nil {
		open.Duration = NoDuration
		steps = append(steps, *open)
	}
	return steps
}

// splitTimestamp strips a leading [HH:MM:SS] marker, returning the local time
// as seconds since midnight and the remainder of the line.
func splitTimestamp(line string) (int, string, bool) {
	if len(line) < 10 || line[0] != '[' || line[9] != ']' {
		return 0, "", false
	}
	body := line[1:9]
	if body[2] != ':' || body[5] != ':' {
		return 0, "", false
	}
	h, ok1 := twoDigits(body[0], body[1])
	m, ok2 := twoDigits(body[3], body[4])
	s, ok3 := twoDigits(body[6], body[7])
	if !ok1 || !ok2 || !ok3 || h > 23 || m > 59 || s > 59 {
		return 0, "", false
	}
	rest := strings.TrimPrefix(line[10:], " ")
	return h*3600 + m*60 + s, rest, true
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

// stageName extracts the name from a "[Pipeline] { (<name>)" line. The
// marker is located anywhere in the line so that an unparseable timestamp
// prefix degrades the duration, not the step itself.
func stageName(line string) (string, bool) {
	idx := strings.Index(line, stageMarker)
	if idx < 0 {
		return "", false
	}
	rest := line[idx+len(stageMarker):]
	end := strings.LastIndex(rest, ")")
	if end < 0 {
		return "", false
	}
	name := strings.TrimSpace(rest[:end])
	if name == "" {
		return "", false
	}
	return name, true
}

// formatDuration renders the elapsed time between two seconds-since-midnight
// stamps. An end earlier than the start is treated as a midnight wraparound.
func formatDuration(start, end int) string {
	if start < 0 || end < 0 {
		return NoDuration
	}
	if end < start {
		end += 24 * 3600
	}
	elapsed := end - start
	if elapsed >= 60 {
		return fmt.Sprintf("%dm %ds", elapsed/60, elapsed%60)
	}
	return fmt.Sprintf("%ds", elapsed)
}
