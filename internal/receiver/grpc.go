// Package receiver implements OTLP logs endpoints that feed the error
// deduplication store.
package receiver

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"

	"github.com/mbeckert/sitepulse/internal/logstore"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

// GRPCReceiver handles OTLP/gRPC log export requests.
type GRPCReceiver struct {
	collogspb.UnimplementedLogsServiceServer
	store    *logstore.Store
	logger   *slog.Logger
	server   *grpc.Server
	listener net.Listener
	addr     string
}

// NewGRPCReceiver creates a new gRPC receiver.
func NewGRPCReceiver(addr string, store *logstore.Store, logger *slog.Logger) *GRPCReceiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCReceiver{
		store:  store,
		logger: logger,
		addr:   addr,
	}
}

// Start starts the gRPC server.
func (r *GRPCReceiver) Start() error {
	lis, err := net.Listen("tcp", r.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	r.listener = lis

	r.server = grpc.NewServer()
	collogspb.RegisterLogsServiceServer(r.server, r)

	// Reflection makes the endpoint debuggable with grpcurl
	reflection.Register(r.server)

	log.Printf("gRPC log receiver listening on %s", r.addr)
	return r.server.Serve(lis)
}

// Shutdown gracefully shuts down the gRPC server.
func (r *GRPCReceiver) Shutdown(ctx context.Context) error {
	if r.server != nil {
		r.server.GracefulStop()
	}
	return nil
}

// Export implements the LogsService Export RPC.
func (r *GRPCReceiver) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	rejected := recordRequest(ctx, r.store, r.logger, req)

	resp := &collogspb.ExportLogsServiceResponse{}
	if rejected > 0 {
		resp.PartialSuccess = &collogspb.ExportLogsPartialSuccess{
			RejectedLogRecords: rejected,
		}
	}
	return resp, nil
}

// recordRequest folds every log record of the request into the store and
// returns how many records were rejected. Shared by both transports.
func recordRequest(ctx context.Context, store *logstore.Store, logger *slog.Logger, req *collogspb.ExportLogsServiceRequest) int64 {
	var rejected int64
	for _, resourceLogs := range req.GetResourceLogs() {
		for _, scopeLogs := range resourceLogs.GetScopeLogs() {
			for _, record := range scopeLogs.GetLogRecords() {
				ev := convertLogRecord(resourceLogs.GetResource(), record)
				if _, err := store.Record(ctx, ev); err != nil {
					logger.Warn("rejecting log record", "service", ev.Service, "error", err)
					rejected++
				}
			}
		}
	}
	return rejected
}
