package node

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Status is what the control and data planes report about a running node.
type Status struct {
	NodeID      string        `json:"node_id"`
	ControlPort uint16        `json:"control_port"`
	DataAddrs   []string      `json:"data_addrs"`
	Relay       string        `json:"relay"`
	Peers       int           `json:"peers"`
	Uptime      time.Duration `json:"uptime_ns"`
}

func (s Status) toProto() (*structpb.Struct, error) {
	addrs := make([]interface{}, len(s.DataAddrs))
	for i, a := range s.DataAddrs {
		addrs[i] = a
	}
	return structpb.NewStruct(map[string]interface{}{
		"node_id":        s.NodeID,
		"control_port":   int(s.ControlPort),
		"data_addrs":     addrs,
		"relay":          s.Relay,
		"peers":          s.Peers,
		"uptime_seconds": s.Uptime.Seconds(),
	})
}

func statusFromProto(pb *structpb.Struct) (*Status, error) {
	f := pb.GetFields()
	id := f["node_id"].GetStringValue()
	if id == "" {
		return nil, fmt.Errorf("status reply has no node_id")
	}
	s := &Status{
		NodeID:      id,
		ControlPort: uint16(f["control_port"].GetNumberValue()),
		Relay:       f["relay"].GetStringValue(),
		Peers:       int(f["peers"].GetNumberValue()),
		Uptime:      time.Duration(f["uptime_seconds"].GetNumberValue() * float64(time.Second)),
	}
	for _, v := range f["data_addrs"].GetListValue().GetValues() {
		s.DataAddrs = append(s.DataAddrs, v.GetStringValue())
	}
	return s, nil
}
