package handler

import (
	"fmt"
	"io"
	"strings"
)

// writeSSE writes one server-sent event. Multi-line payloads become
// consecutive data: lines so fragment content with newlines survives
// the framing.
func writeSSE(w io.Writer, event, data string) {
	fmt.Fprintf(w, "event: %s\n", event)
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
