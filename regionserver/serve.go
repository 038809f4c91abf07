package regionserver

import (
	"context"
	"fmt"

	"github.com/jrife/regionhost/coprocessor"
	"github.com/jrife/regionhost/transport"
	"github.com/jrife/regionhost/utils/jsoncodec"
	"github.com/jrife/regionhost/utils/log"
	"go.uber.org/zap"
)

const (
	// HostService is the built-in server-level service
	HostService = "host"
	// OnlineRegionsMethod returns the names of the regions
	// online on the server as a JSON array
	OnlineRegionsMethod = "OnlineRegions"
)

var _ transport.Handler = (*Host)(nil)

// ServeCall dispatches a call to the coprocessor service it
// targets. Calls without a region target the server itself.
func (host *Host) ServeCall(ctx context.Context, call transport.Call) (transport.Response, error) {
	if call.Region == "" {
		return host.serveServerCall(ctx, call)
	}

	if _, ok := host.online.OnlineRegion(call.Region); !ok {
		return transport.Response{}, fmt.Errorf("region %s: %w", call.Region, transport.ErrRegionNotOnline)
	}

	host.mu.Lock()
	env, ok := host.environments[environmentKey{region: call.Region, class: call.Service}]
	host.mu.Unlock()

	if !ok || !env.Active() {
		return transport.Response{}, fmt.Errorf("%s on region %s: %w", call.Service, call.Region, transport.ErrNoSuchService)
	}

	service, ok := env.instance.(coprocessor.Service)

	if !ok {
		return transport.Response{}, fmt.Errorf("%s is not a service: %w", call.Service, transport.ErrNoSuchService)
	}

	// Nested calls replace the logger rather than add to the
	// context's fields
	ctx = log.WithLogger(ctx, env.logger.With(zap.String("call", call.ID), zap.String("method", call.Method)))

	payload, err := service.CallMethod(ctx, env, call.Method, call.Payload)

	if err != nil {
		return transport.Response{}, err
	}

	return transport.Response{Payload: payload}, nil
}

func (host *Host) serveServerCall(ctx context.Context, call transport.Call) (transport.Response, error) {
	if call.Service != HostService {
		return transport.Response{}, fmt.Errorf("server service %s: %w", call.Service, transport.ErrNoSuchService)
	}

	switch call.Method {
	case OnlineRegionsMethod:
		names := []string{}

		for _, info := range host.OnlineRegions() {
			names = append(names, info.Name())
		}

		payload, err := jsoncodec.Marshal(names)

		if err != nil {
			return transport.Response{}, fmt.Errorf("could not encode online regions: %w", err)
		}

		return transport.Response{Payload: payload}, nil
	}

	return transport.Response{}, fmt.Errorf("%s.%s: %w", call.Service, call.Method, coprocessor.ErrNoSuchMethod)
}
