package v1

import (
	"context"

	"google.golang.org/grpc"
)

// CoovaServiceClient is the client API for CoovaService.
type CoovaServiceClient interface {
	RequestBooking(ctx context.Context, in *RequestBookingRequest, opts ...grpc.CallOption) (*Booking, error)
	GetBooking(ctx context.Context, in *GetBookingRequest, opts ...grpc.CallOption) (*Booking, error)
	ListBookings(ctx context.Context, in *ListBookingsRequest, opts ...grpc.CallOption) (*ListBookingsResponse, error)
	TransitionBooking(ctx context.Context, in *TransitionBookingRequest, opts ...grpc.CallOption) (*Booking, error)
	QuoteBooking(ctx context.Context, in *QuoteRequest, opts ...grpc.CallOption) (*Quote, error)
	GetAvailability(ctx context.Context, in *AvailabilityRequest, opts ...grpc.CallOption) (*AvailabilityResponse, error)
	CreateResource(ctx context.Context, in *CreateResourceRequest, opts ...grpc.CallOption) (*Resource, error)
	GetResource(ctx context.Context, in *GetResourceRequest, opts ...grpc.CallOption) (*Resource, error)
	UpdateResource(ctx context.Context, in *UpdateResourceRequest, opts ...grpc.CallOption) (*Resource, error)
	ListResources(ctx context.Context, in *ListResourcesRequest, opts ...grpc.CallOption) (*ListResourcesResponse, error)
	OpenConversation(ctx context.Context, in *OpenConversationRequest, opts ...grpc.CallOption) (*Conversation, error)
	SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*Message, error)
	ListMessages(ctx context.Context, in *ListMessagesRequest, opts ...grpc.CallOption) (*ListMessagesResponse, error)
	DeleteMessage(ctx context.Context, in *DeleteMessageRequest, opts ...grpc.CallOption) (*DeleteMessageResponse, error)
	MarkRead(ctx context.Context, in *MarkReadRequest, opts ...grpc.CallOption) (*MarkReadResponse, error)
	GetUnreadCount(ctx context.Context, in *UnreadCountRequest, opts ...grpc.CallOption) (*UnreadCountResponse, error)
	ListInbox(ctx context.Context, in *InboxRequest, opts ...grpc.CallOption) (*InboxResponse, error)
	Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Event], error)
}

type coovaServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewCoovaServiceClient returns a client that always selects the JSON codec.
func NewCoovaServiceClient(cc grpc.ClientConnInterface) CoovaServiceClient {
	return &coovaServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coovaServiceClient) RequestBooking(ctx context.Context, in *RequestBookingRequest, opts ...grpc.CallOption) (*Booking, error) {
	return invoke[Booking](ctx, c.cc, RequestBookingMethod, in, opts)
}

func (c *coovaServiceClient) GetBooking(ctx context.Context, in *GetBookingRequest, opts ...grpc.CallOption) (*Booking, error) {
	return invoke[Booking](ctx, c.cc, GetBookingMethod, in, opts)
}

func (c *coovaServiceClient) ListBookings(ctx context.Context, in *ListBookingsRequest, opts ...grpc.CallOption) (*ListBookingsResponse, error) {
	return invoke[ListBookingsResponse](ctx, c.cc, ListBookingsMethod, in, opts)
}

func (c *coovaServiceClient) TransitionBooking(ctx context.Context, in *TransitionBookingRequest, opts ...grpc.CallOption) (*Booking, error) {
	return invoke[Booking](ctx, c.cc, TransitionBookingMethod, in, opts)
}

func (c *coovaServiceClient) QuoteBooking(ctx context.Context, in *QuoteRequest, opts ...grpc.CallOption) (*Quote, error) {
	return invoke[Quote](ctx, c.cc, QuoteBookingMethod, in, opts)
}

func (c *coovaServiceClient) GetAvailability(ctx context.Context, in *AvailabilityRequest, opts ...grpc.CallOption) (*AvailabilityResponse, error) {
	return invoke[AvailabilityResponse](ctx, c.cc, GetAvailabilityMethod, in, opts)
}

func (c *coovaServiceClient) CreateResource(ctx context.Context, in *CreateResourceRequest, opts ...grpc.CallOption) (*Resource, error) {
	return invoke[Resource](ctx, c.cc, CreateResourceMethod, in, opts)
}

func (c *coovaServiceClient) GetResource(ctx context.Context, in *GetResourceRequest, opts ...grpc.CallOption) (*Resource, error) {
	return invoke[Resource](ctx, c.cc, GetResourceMethod, in, opts)
}

func (c *coovaServiceClient) UpdateResource(ctx context.Context, in *UpdateResourceRequest, opts ...grpc.CallOption) (*Resource, error) {
	return invoke[Resource](ctx, c.cc, UpdateResourceMethod, in, opts)
}

func (c *coovaServiceClient) ListResources(ctx context.Context, in *ListResourcesRequest, opts ...grpc.CallOption) (*ListResourcesResponse, error) {
	return invoke[ListResourcesResponse](ctx, c.cc, ListResourcesMethod, in, opts)
}

func (c *coovaServiceClient) OpenConversation(ctx context.Context, in *OpenConversationRequest, opts ...grpc.CallOption) (*Conversation, error) {
	return invoke[Conversation](ctx, c.cc, OpenConversationMethod, in, opts)
}

func (c *coovaServiceClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*Message, error) {
	return invoke[Message](ctx, c.cc, SendMessageMethod, in, opts)
}

func (c *coovaServiceClient) ListMessages(ctx context.Context, in *ListMessagesRequest, opts ...grpc.CallOption) (*ListMessagesResponse, error) {
	return invoke[ListMessagesResponse](ctx, c.cc, ListMessagesMethod, in, opts)
}

func (c *coovaServiceClient) DeleteMessage(ctx context.Context, in *DeleteMessageRequest, opts ...grpc.CallOption) (*DeleteMessageResponse, error) {
	return invoke[DeleteMessageResponse](ctx, c.cc, DeleteMessageMethod, in, opts)
}

func (c *coovaServiceClient) MarkRead(ctx context.Context, in *MarkReadRequest, opts ...grpc.CallOption) (*MarkReadResponse, error) {
	return invoke[MarkReadResponse](ctx, c.cc, MarkReadMethod, in, opts)
}

func (c *coovaServiceClient) GetUnreadCount(ctx context.Context, in *UnreadCountRequest, opts ...grpc.CallOption) (*UnreadCountResponse, error) {
	return invoke[UnreadCountResponse](ctx, c.cc, GetUnreadCountMethod, in, opts)
}

func (c *coovaServiceClient) ListInbox(ctx context.Context, in *InboxRequest, opts ...grpc.CallOption) (*InboxResponse, error) {
	return invoke[InboxResponse](ctx, c.cc, ListInboxMethod, in, opts)
}

func (c *coovaServiceClient) Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Event], error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &CoovaService_ServiceDesc.Streams[0], SubscribeMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[SubscribeRequest, Event]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
