package main

import (
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	v1 "github.com/PaulBabatuyi/coova/api/coova/v1"
	"github.com/PaulBabatuyi/coova/internal/booking"
	"github.com/PaulBabatuyi/coova/internal/chat"
	"github.com/PaulBabatuyi/coova/internal/listing"
)

// Server implements the coova service on top of the booking, messaging and
// listing cores. Handlers return domain errors; errorsUnaryInterceptor maps
// them onto gRPC status codes.
type Server struct {
	v1.UnimplementedCoovaServiceServer

	bookings *booking.Controller
	chat     *chat.Service
	listings *listing.Service
	hub      *ConnectionHub
	log      *logrus.Logger
}

// newServer returns a ready-to-use Server wired with the services and hub.
func newServer(bookings *booking.Controller, chatSvc *chat.Service, listings *listing.Service, hub *ConnectionHub, logger *logrus.Logger) *Server {
	return &Server{bookings: bookings, chat: chatSvc, listings: listings, hub: hub, log: logger}
}

// registerService registers the CoovaService on the given gRPC server.
func registerService(s *grpc.Server, srv *Server) {
	v1.RegisterCoovaServiceServer(s, srv)
}
