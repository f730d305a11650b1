package relay

import (
	"io"

	"github.com/example/courierlive/internal/order/domain"
)

// StreamServer implements the LocationRelayServer interface, feeding
// streamed publisher positions into the update pipeline.
type StreamServer struct {
	svc *Service
}

// NewStreamServer constructs the ingest server.
func NewStreamServer(svc *Service) *StreamServer {
	return &StreamServer{svc: svc}
}

// PublishPositions ingests a publisher stream until EOF.
func (s *StreamServer) PublishPositions(stream LocationRelay_PublishPositionsServer) error {
	var received int64
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			return stream.SendAndClose(&PublishAck{Received: received})
		}
		if err != nil {
			return err
		}
		received++
		s.svc.HandleLocationUpdate(stream.Context(), msg.OrderId, domain.Report{
			Latitude:  msg.Latitude,
			Longitude: msg.Longitude,
			Heading:   msg.Heading,
		})
	}
}
