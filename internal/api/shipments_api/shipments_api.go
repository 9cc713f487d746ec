package shipments_api

import (
	"context"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "fleetsync.ShipmentsService"

type Service interface {
	RunSync(ctx context.Context, ownerID string) (models.SyncResult, error)
	GetShipments(ctx context.Context, ownerID string) ([]*models.Shipment, error)
	GetAlerts(ctx context.Context, ownerID string, limit int) ([]*models.Alert, error)
}

type ShipmentsServiceServer interface {
	RunSync(ctx context.Context, req *RunSyncRequest) (*RunSyncResponse, error)
	GetShipments(ctx context.Context, req *GetShipmentsRequest) (*GetShipmentsResponse, error)
	GetAlerts(ctx context.Context, req *GetAlertsRequest) (*GetAlertsResponse, error)
}

type ShipmentsAPI struct {
	svc Service
}

func New(svc Service) *ShipmentsAPI {
	return &ShipmentsAPI{svc: svc}
}

// RunSync отдаёт результат и при неуспешной синхронизации (timeout, persistence):
// это нормальный ответ с success=false, а не ошибка транспорта.
func (a *ShipmentsAPI) RunSync(ctx context.Context, req *RunSyncRequest) (*RunSyncResponse, error) {
	res, err := a.svc.RunSync(ctx, req.OwnerID)
	// таймаут и сбой записи отдаются как SyncResult с Success=false
	if err != nil && !errors.Is(err, models.ErrSyncTimeout) && !errors.Is(err, models.ErrPersistence) {
		return nil, toStatus(err)
	}
	return &RunSyncResponse{Result: res}, nil
}

func (a *ShipmentsAPI) GetShipments(ctx context.Context, req *GetShipmentsRequest) (*GetShipmentsResponse, error) {
	out, err := a.svc.GetShipments(ctx, req.OwnerID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetShipmentsResponse{Shipments: out}, nil
}

func (a *ShipmentsAPI) GetAlerts(ctx context.Context, req *GetAlertsRequest) (*GetAlertsResponse, error) {
	out, err := a.svc.GetAlerts(ctx, req.OwnerID, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetAlertsResponse{Alerts: out}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, models.ErrOwnerRequired):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, models.ErrSyncInProgress):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, models.ErrSyncTimeout):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, models.ErrConfiguration):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func Register(s grpc.ServiceRegistrar, srv ShipmentsServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ShipmentsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RunSync", Handler: runSyncHandler},
		{MethodName: "GetShipments", Handler: getShipmentsHandler},
		{MethodName: "GetAlerts", Handler: getAlertsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fleetsync/shipments.json",
}

func runSyncHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RunSyncRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShipmentsServiceServer).RunSync(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/RunSync"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ShipmentsServiceServer).RunSync(ctx, req.(*RunSyncRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getShipmentsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetShipmentsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShipmentsServiceServer).GetShipments(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetShipments"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ShipmentsServiceServer).GetShipments(ctx, req.(*GetShipmentsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getAlertsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetAlertsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShipmentsServiceServer).GetAlerts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetAlerts"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ShipmentsServiceServer).GetAlerts(ctx, req.(*GetAlertsRequest))
	}
	return interceptor(ctx, in, info, handler)
}
