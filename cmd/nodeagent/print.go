package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"nodeagent/internal/node"
)

func printStatus(w io.Writer, st *node.Status) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Node ID\t%s\n", st.NodeID)
	fmt.Fprintf(tw, "Control port\t%d\n", st.ControlPort)
	fmt.Fprintf(tw, "Data addresses\t%s\n", strings.Join(st.DataAddrs, ", "))
	fmt.Fprintf(tw, "Relay\t%s\n", st.Relay)
	fmt.Fprintf(tw, "Known peers\t%d\n", st.Peers)
	fmt.Fprintf(tw, "Uptime\t%s\n", st.Uptime.Truncate(time.Second))
	_ = tw.Flush()
}
