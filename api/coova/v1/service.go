package v1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "coova.v1.CoovaService"

// Full method names, used by interceptors.
const (
	RequestBookingMethod    = "/" + ServiceName + "/RequestBooking"
	GetBookingMethod        = "/" + ServiceName + "/GetBooking"
	ListBookingsMethod      = "/" + ServiceName + "/ListBookings"
	TransitionBookingMethod = "/" + ServiceName + "/TransitionBooking"
	QuoteBookingMethod      = "/" + ServiceName + "/QuoteBooking"
	GetAvailabilityMethod   = "/" + ServiceName + "/GetAvailability"
	CreateResourceMethod    = "/" + ServiceName + "/CreateResource"
	GetResourceMethod       = "/" + ServiceName + "/GetResource"
	UpdateResourceMethod    = "/" + ServiceName + "/UpdateResource"
	ListResourcesMethod     = "/" + ServiceName + "/ListResources"
	OpenConversationMethod  = "/" + ServiceName + "/OpenConversation"
	SendMessageMethod       = "/" + ServiceName + "/SendMessage"
	ListMessagesMethod      = "/" + ServiceName + "/ListMessages"
	DeleteMessageMethod     = "/" + ServiceName + "/DeleteMessage"
	MarkReadMethod          = "/" + ServiceName + "/MarkRead"
	GetUnreadCountMethod    = "/" + ServiceName + "/GetUnreadCount"
	ListInboxMethod         = "/" + ServiceName + "/ListInbox"
	SubscribeMethod         = "/" + ServiceName + "/Subscribe"
)

// CoovaServiceServer is the server API for CoovaService.
type CoovaServiceServer interface {
	RequestBooking(context.Context, *RequestBookingRequest) (*Booking, error)
	GetBooking(context.Context, *GetBookingRequest) (*Booking, error)
	ListBookings(context.Context, *ListBookingsRequest) (*ListBookingsResponse, error)
	TransitionBooking(context.Context, *TransitionBookingRequest) (*Booking, error)
	QuoteBooking(context.Context, *QuoteRequest) (*Quote, error)
	GetAvailability(context.Context, *AvailabilityRequest) (*AvailabilityResponse, error)
	CreateResource(context.Context, *CreateResourceRequest) (*Resource, error)
	GetResource(context.Context, *GetResourceRequest) (*Resource, error)
	UpdateResource(context.Context, *UpdateResourceRequest) (*Resource, error)
	ListResources(context.Context, *ListResourcesRequest) (*ListResourcesResponse, error)
	OpenConversation(context.Context, *OpenConversationRequest) (*Conversation, error)
	SendMessage(context.Context, *SendMessageRequest) (*Message, error)
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	DeleteMessage(context.Context, *DeleteMessageRequest) (*DeleteMessageResponse, error)
	MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error)
	GetUnreadCount(context.Context, *UnreadCountRequest) (*UnreadCountResponse, error)
	ListInbox(context.Context, *InboxRequest) (*InboxResponse, error)
	Subscribe(*SubscribeRequest, CoovaService_SubscribeServer) error
	mustEmbedUnimplementedCoovaServiceServer()
}

// CoovaService_SubscribeServer is the server side of the Subscribe stream.
type CoovaService_SubscribeServer = grpc.ServerStreamingServer[Event]

// UnimplementedCoovaServiceServer must be embedded by implementations.
type UnimplementedCoovaServiceServer struct{}

func (UnimplementedCoovaServiceServer) RequestBooking(context.Context, *RequestBookingRequest) (*Booking, error) {
	return nil, status.Error(codes.Unimplemented, "method RequestBooking not implemented")
}
func (UnimplementedCoovaServiceServer) GetBooking(context.Context, *GetBookingRequest) (*Booking, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBooking not implemented")
}
func (UnimplementedCoovaServiceServer) ListBookings(context.Context, *ListBookingsRequest) (*ListBookingsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListBookings not implemented")
}
func (UnimplementedCoovaServiceServer) TransitionBooking(context.Context, *TransitionBookingRequest) (*Booking, error) {
	return nil, status.Error(codes.Unimplemented, "method TransitionBooking not implemented")
}
func (UnimplementedCoovaServiceServer) QuoteBooking(context.Context, *QuoteRequest) (*Quote, error) {
	return nil, status.Error(codes.Unimplemented, "method QuoteBooking not implemented")
}
func (UnimplementedCoovaServiceServer) GetAvailability(context.Context, *AvailabilityRequest) (*AvailabilityResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAvailability not implemented")
}
func (UnimplementedCoovaServiceServer) CreateResource(context.Context, *CreateResourceRequest) (*Resource, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateResource not implemented")
}
func (UnimplementedCoovaServiceServer) GetResource(context.Context, *GetResourceRequest) (*Resource, error) {
	return nil, status.Error(codes.Unimplemented, "method GetResource not implemented")
}
func (UnimplementedCoovaServiceServer) UpdateResource(context.Context, *UpdateResourceRequest) (*Resource, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateResource not implemented")
}
func (UnimplementedCoovaServiceServer) ListResources(context.Context, *ListResourcesRequest) (*ListResourcesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListResources not implemented")
}
func (UnimplementedCoovaServiceServer) OpenConversation(context.Context, *OpenConversationRequest) (*Conversation, error) {
	return nil, status.Error(codes.Unimplemented, "method OpenConversation not implemented")
}
func (UnimplementedCoovaServiceServer) SendMessage(context.Context, *SendMessageRequest) (*Message, error) {
	return nil, status.Error(codes.Unimplemented, "method SendMessage not implemented")
}
func (UnimplementedCoovaServiceServer) ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListMessages not implemented")
}
func (UnimplementedCoovaServiceServer) DeleteMessage(context.Context, *DeleteMessageRequest) (*DeleteMessageResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteMessage not implemented")
}
func (UnimplementedCoovaServiceServer) MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method MarkRead not implemented")
}
func (UnimplementedCoovaServiceServer) GetUnreadCount(context.Context, *UnreadCountRequest) (*UnreadCountResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetUnreadCount not implemented")
}
func (UnimplementedCoovaServiceServer) ListInbox(context.Context, *InboxRequest) (*InboxResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListInbox not implemented")
}
func (UnimplementedCoovaServiceServer) Subscribe(*SubscribeRequest, CoovaService_SubscribeServer) error {
	return status.Error(codes.Unimplemented, "method Subscribe not implemented")
}
func (UnimplementedCoovaServiceServer) mustEmbedUnimplementedCoovaServiceServer() {}

// RegisterCoovaServiceServer registers srv on s.
func RegisterCoovaServiceServer(s grpc.ServiceRegistrar, srv CoovaServiceServer) {
	s.RegisterService(&CoovaService_ServiceDesc, srv)
}

// unary builds a method handler that decodes Req and dispatches through the
// interceptor chain.
func unary[Req any, Resp any](fullMethod string, call func(CoovaServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CoovaServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(CoovaServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(SubscribeRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(CoovaServiceServer).Subscribe(m, &grpc.GenericServerStream[SubscribeRequest, Event]{ServerStream: stream})
}

// CoovaService_ServiceDesc is the grpc.ServiceDesc for CoovaService.
var CoovaService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CoovaServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RequestBooking", Handler: unary(RequestBookingMethod, CoovaServiceServer.RequestBooking)},
		{MethodName: "GetBooking", Handler: unary(GetBookingMethod, CoovaServiceServer.GetBooking)},
		{MethodName: "ListBookings", Handler: unary(ListBookingsMethod, CoovaServiceServer.ListBookings)},
		{MethodName: "TransitionBooking", Handler: unary(TransitionBookingMethod, CoovaServiceServer.TransitionBooking)},
		{MethodName: "QuoteBooking", Handler: unary(QuoteBookingMethod, CoovaServiceServer.QuoteBooking)},
		{MethodName: "GetAvailability", Handler: unary(GetAvailabilityMethod, CoovaServiceServer.GetAvailability)},
		{MethodName: "CreateResource", Handler: unary(CreateResourceMethod, CoovaServiceServer.CreateResource)},
		{MethodName: "GetResource", Handler: unary(GetResourceMethod, CoovaServiceServer.GetResource)},
		{MethodName: "UpdateResource", Handler: unary(UpdateResourceMethod, CoovaServiceServer.UpdateResource)},
		{MethodName: "ListResources", Handler: unary(ListResourcesMethod, CoovaServiceServer.ListResources)},
		{MethodName: "OpenConversation", Handler: unary(OpenConversationMethod, CoovaServiceServer.OpenConversation)},
		{MethodName: "SendMessage", Handler: unary(SendMessageMethod, CoovaServiceServer.SendMessage)},
		{MethodName: "ListMessages", Handler: unary(ListMessagesMethod, CoovaServiceServer.ListMessages)},
		{MethodName: "DeleteMessage", Handler: unary(DeleteMessageMethod, CoovaServiceServer.DeleteMessage)},
		{MethodName: "MarkRead", Handler: unary(MarkReadMethod, CoovaServiceServer.MarkRead)},
		{MethodName: "GetUnreadCount", Handler: unary(GetUnreadCountMethod, CoovaServiceServer.GetUnreadCount)},
		{MethodName: "ListInbox", Handler: unary(ListInboxMethod, CoovaServiceServer.ListInbox)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "coova/v1/coova.json",
}
