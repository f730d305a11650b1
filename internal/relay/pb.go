package relay

import "google.golang.org/grpc"

// PositionUpdate is a streamed publisher report.
type PositionUpdate struct {
	OrderId   string
	Latitude  float64
	Longitude float64
	Heading   float64
	Ts        int64
}

// PublishAck is returned when the stream closes.
type PublishAck struct {
	Received int64
}

// LocationRelayServer defines the gRPC contract.
type LocationRelayServer interface {
	PublishPositions(LocationRelay_PublishPositionsServer) error
}

// RegisterLocationRelayServer registers the service implementation.
func RegisterLocationRelayServer(s *grpc.Server, srv LocationRelayServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "relay.LocationRelay",
		HandlerType: (*LocationRelayServer)(nil),
		Streams: []grpc.StreamDesc{{
			StreamName:    "PublishPositions",
			Handler:       _LocationRelay_PublishPositions_Handler,
			ServerStreams: true,
			ClientStreams: true,
		}},
	}, srv)
}

// LocationRelay_PublishPositionsServer defines the bidi stream interface.
type LocationRelay_PublishPositionsServer interface {
	grpc.ServerStream
	SendAndClose(*PublishAck) error
	Recv() (*PositionUpdate, error)
}

func _LocationRelay_PublishPositions_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(LocationRelayServer).PublishPositions(&publishPositionsServer{ServerStream: stream})
}

type publishPositionsServer struct {
	grpc.ServerStream
}

func (s *publishPositionsServer) SendAndClose(*PublishAck) error { return nil }

func (s *publishPositionsServer) Recv() (*PositionUpdate, error) {
	msg := new(PositionUpdate)
	if err := s.ServerStream.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg, nil
}
