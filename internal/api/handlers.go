package api

import (
	"context"
	"strings"

	"courtclub/internal/models"
	"courtclub/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	availabilityServiceName = "courtclub.v1.Availability"

	MethodListSlots = "/" + availabilityServiceName + "/ListSlots"
	MethodGetQuote  = "/" + availabilityServiceName + "/GetQuote"
)

// AvailabilityServer is the partner-facing read API. Messages are plain
// structpb.Struct values so partners need no generated stubs.
type AvailabilityServer interface {
	ListSlots(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetQuote(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// AvailabilityServiceDesc registers AvailabilityServer on a grpc.Server.
var AvailabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: availabilityServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListSlots", Handler: listSlotsHandler},
		{MethodName: "GetQuote", Handler: getQuoteHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "courtclub/v1/availability.proto",
}

func listSlotsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServer).ListSlots(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListSlots}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServer).ListSlots(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getQuoteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServer).GetQuote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetQuote}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServer).GetQuote(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type AvailabilityService struct {
	club *service.ClubService
}

func NewAvailabilityService(club *service.ClubService) *AvailabilityService {
	return &AvailabilityService{club: club}
}

// ListSlots answers {"date": "YYYY-MM-DD"}; an empty date means today.
func (s *AvailabilityService) ListSlots(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	date := s.club.Today()
	if raw := strings.TrimSpace(stringField(req, "date")); raw != "" {
		parsed, err := models.ParseDate(raw)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "invalid date format; expected YYYY-MM-DD")
		}
		date = parsed
	}

	slots := s.club.Slots(date)
	list := make([]any, 0, len(slots))
	for _, slot := range slots {
		list = append(list, map[string]any{
			"id":           slot.ID,
			"time_label":   slot.TimeLabel,
			"is_available": slot.IsAvailable,
		})
	}

	out, err := structpb.NewStruct(map[string]any{
		"club":  s.club.Name(),
		"date":  date.String(),
		"slots": list,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode slots")
	}
	return out, nil
}

// GetQuote answers {"player_type": "Member", "duration_minutes": 90}.
func (s *AvailabilityService) GetQuote(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	playerType, ok := models.ParsePlayerType(stringField(req, "player_type"))
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "player_type must be Member or Guest")
	}
	duration := int(req.GetFields()["duration_minutes"].GetNumberValue())

	quote, err := s.club.Quote(playerType, duration)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, service.UserMessage(err))
	}

	out, err := structpb.NewStruct(map[string]any{
		"player_type":      string(quote.PlayerType),
		"duration_minutes": quote.DurationMinutes,
		"hourly_rate":      quote.HourlyRate,
		"hours":            quote.Hours,
		"base":             quote.Base,
		"guest_fee":        quote.GuestFee,
		"total":            quote.Total,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode quote")
	}
	return out, nil
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}
