package node

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"nodeagent/internal/network"
)

// Client issues control operations against a node.
type Client struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// NewClient connects lazily to a control endpoint such as "127.0.0.1:4919".
// The control listener is loopback only, so no transport security is used.
func NewClient(target string) (*Client, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create control client: %w", err)
	}
	return &Client{conn: conn, health: healthpb.NewHealthClient(conn)}, nil
}

// Dial connects to the node whose control listener is on the local port.
func Dial(port uint16) (*Client, error) {
	return NewClient(network.ControlTarget(port))
}

// Status fetches the node's status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, statusMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return statusFromProto(out)
}

// Shutdown asks the node to stop. It returns once the request is acknowledged,
// not when the node has finished stopping.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.conn.Invoke(ctx, shutdownMethod, &emptypb.Empty{}, new(emptypb.Empty))
}

// Health reports the serving status of the control plane.
func (c *Client) Health(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
