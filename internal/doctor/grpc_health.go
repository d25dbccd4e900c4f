package doctor

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// checkGRPCHealth probes a self-hosted speech gateway with the standard
// gRPC health protocol (empty service name).
func checkGRPCHealth(ctx context.Context, target string) Check {
	name := "doctor.grpc_health"

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("dial %s: %v", target, err)}
	}
	defer conn.Close()

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	conn.Connect()
	if err := waitForReady(probeCtx, conn); err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("connect %s: %v", target, err)}
	}

	resp, err := healthpb.NewHealthClient(conn).Check(probeCtx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("health check %s: %v", target, err)}
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s reports %s", target, resp.GetStatus())}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s is serving", target)}
}

// waitForReady blocks until the connection enters Ready or fails.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
