package shipments_api

import (
	"context"

	"google.golang.org/grpc"
)

type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *Client) RunSync(ctx context.Context, in *RunSyncRequest, opts ...grpc.CallOption) (*RunSyncResponse, error) {
	out := new(RunSyncResponse)
	if err := c.invoke(ctx, "RunSync", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetShipments(ctx context.Context, in *GetShipmentsRequest, opts ...grpc.CallOption) (*GetShipmentsResponse, error) {
	out := new(GetShipmentsResponse)
	if err := c.invoke(ctx, "GetShipments", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetAlerts(ctx context.Context, in *GetAlertsRequest, opts ...grpc.CallOption) (*GetAlertsResponse, error) {
	out := new(GetAlertsResponse)
	if err := c.invoke(ctx, "GetAlerts", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
