package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/config"
	"salonbook/internal/domain"
	"salonbook/internal/models"
	"salonbook/internal/service"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName           = "salonbook.availability.v1.AvailabilityService"
	methodGetAvailability = "/" + serviceName + "/GetAvailability"
	methodCreateBooking   = "/" + serviceName + "/CreateBooking"
)

// availabilityServer is the gRPC surface. Messages are google.protobuf.Struct
// carrying the same JSON shapes as the HTTP API.
type availabilityServer interface {
	GetAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var availabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*availabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAvailability", Handler: unaryHandler(methodGetAvailability, availabilityServer.GetAvailability)},
		{MethodName: "CreateBooking", Handler: unaryHandler(methodCreateBooking, availabilityServer.CreateBooking)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "salonbook/availability/v1/availability.proto",
}

func unaryHandler(
	fullMethod string,
	call func(availabilityServer, context.Context, *structpb.Struct) (*structpb.Struct, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		impl := srv.(availabilityServer)
		if interceptor == nil {
			return call(impl, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(impl, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AvailabilityService adapts the resolver and booking service to gRPC.
type AvailabilityService struct {
	availability AvailabilityReader
	bookings     BookingManager
}

func NewAvailabilityService(avail AvailabilityReader, bookings BookingManager) *AvailabilityService {
	return &AvailabilityService{availability: avail, bookings: bookings}
}

func (s *AvailabilityService) GetAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	q := availability.Query{
		PlaceID:    int64(fields["place_id"].GetNumberValue()),
		EmployeeID: int64(fields["employee_id"].GetNumberValue()),
		ServiceID:  int64(fields["service_id"].GetNumberValue()),
	}
	if raw := fields["date"].GetStringValue(); raw != "" {
		date, err := models.ParseDate(raw)
		if err != nil {
			return nil, grpcError(domain.Validationf("invalid date %q", raw))
		}
		q.Date = date
	}

	res, err := s.availability.GetAvailableSlots(ctx, q)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(res)
}

func (s *AvailabilityService) CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in service.CreateBookingRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, grpcError(err)
	}

	booking, err := s.bookings.CreateBooking(ctx, in)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(booking)
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, grpcError(fmt.Errorf("encode response: %w", err))
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, grpcError(fmt.Errorf("encode response: %w", err))
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, grpcError(fmt.Errorf("encode response: %w", err))
	}
	return out, nil
}

func fromStruct(s *structpb.Struct, dst any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return domain.Validationf("invalid request: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return domain.Validationf("invalid request: %v", err)
	}
	return nil
}

type GRPCServer struct {
	cfg      *config.APIConfig
	server   *grpc.Server
	listener net.Listener
	log      zerolog.Logger
}

// newGRPCServer builds the server without binding a listener.
func newGRPCServer(cfg *config.APIConfig, avail AvailabilityReader, bookings BookingManager, logger *zerolog.Logger) *grpc.Server {
	auth := newAuthenticator(*cfg)
	unary := ChainUnaryInterceptors(
		LoggingUnaryInterceptor(logger),
		auth.AuthUnaryInterceptor(),
	)

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(unary))
	grpcServer.RegisterService(&availabilityServiceDesc, NewAvailabilityService(avail, bookings))

	if cfg.GRPC.Reflection {
		reflection.Register(grpcServer)
	}
	return grpcServer
}

func NewGRPCServer(cfg *config.APIConfig, avail AvailabilityReader, bookings BookingManager, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	serverLogger := logger.With().Str("component", "grpc").Logger()

	return &GRPCServer{
		cfg:      cfg,
		server:   newGRPCServer(cfg, avail, bookings, &serverLogger),
		listener: lis,
		log:      serverLogger,
	}, nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("gRPC API listening")
	return s.server.Serve(s.listener)
}

func (s *GRPCServer) Shutdown(ctx context.Context) {
	if s.server == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
		s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
		return
	case <-time.After(10 * time.Second):
		s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
		return
	}
}
