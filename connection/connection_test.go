package connection_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/regionhost/connection"
	"github.com/jrife/regionhost/region"
	"github.com/jrife/regionhost/transport"
	"go.uber.org/zap/zaptest"
)

type fakeRegion struct {
	info region.RegionInfo
}

func (r fakeRegion) Info() region.RegionInfo { return r.info }
func (r fakeRegion) IsAvailable() bool       { return true }

type fakeOnline struct {
	regions []region.Region
}

func (online fakeOnline) OnlineRegion(encodedName string) (region.Region, bool) {
	for _, r := range online.regions {
		if r.Info().EncodedName() == encodedName {
			return r, true
		}
	}

	return nil, false
}

func (online fakeOnline) OnlineRegionsForTable(table string) []region.Region {
	result := []region.Region{}

	for _, r := range online.regions {
		if r.Info().Table() == table {
			result = append(result, r)
		}
	}

	return result
}

func (online fakeOnline) OnlineRegions() []region.Region {
	return online.regions
}

type recorder struct {
	mu    sync.Mutex
	calls []transport.Call
	err   error
}

func (r *recorder) ServeCall(ctx context.Context, call transport.Call) (transport.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	call.ID = ""
	r.calls = append(r.calls, call)

	if r.err != nil {
		err := r.err
		r.err = nil

		return transport.Response{}, err
	}

	return transport.Response{Payload: []byte("ok")}, nil
}

func (r *recorder) Calls() []transport.Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]transport.Call{}, r.calls...)
}

type fakeStub struct {
	handler *recorder
	closed  bool
}

func (stub *fakeStub) Exec(ctx context.Context, call transport.Call) (transport.Response, error) {
	return stub.handler.ServeCall(ctx, call)
}

func (stub *fakeStub) Close() error {
	stub.closed = true

	return nil
}

type fakeNetwork struct {
	mu      sync.Mutex
	servers map[string]*recorder
	dials   []string
	stubs   []*fakeStub
}

func (network *fakeNetwork) Dial(ctx context.Context, address string) (transport.Stub, error) {
	network.mu.Lock()
	defer network.mu.Unlock()

	network.dials = append(network.dials, address)
	server, ok := network.servers[address]

	if !ok {
		return nil, errors.New("connection refused")
	}

	stub := &fakeStub{handler: server}
	network.stubs = append(network.stubs, stub)

	return stub, nil
}

func (network *fakeNetwork) Dials() []string {
	network.mu.Lock()
	defer network.mu.Unlock()

	return append([]string{}, network.dials...)
}

type countingLocator struct {
	connection.Locator
	mu    sync.Mutex
	count int
}

func (locator *countingLocator) Locate(ctx context.Context, table string, row []byte) (connection.Location, error) {
	locator.mu.Lock()
	locator.count++
	locator.mu.Unlock()

	return locator.Locator.Locate(ctx, table, row)
}

func (locator *countingLocator) Count() int {
	locator.mu.Lock()
	defer locator.mu.Unlock()

	return locator.count
}

var (
	localServer  = region.ServerName{Host: "rs1", Port: 16020, StartCode: 1}
	remoteServer = region.ServerName{Host: "rs2", Port: 16020, StartCode: 1}
	localRegion  = region.NewRegionInfo("t1", nil, []byte("m"), 1)
	remoteRegion = region.NewRegionInfo("t1", []byte("m"), nil, 2)
)

type fixture struct {
	broker  *connection.Broker
	local   *recorder
	remote  *recorder
	network *fakeNetwork
	locator *countingLocator
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		local:  &recorder{},
		remote: &recorder{},
	}

	f.network = &fakeNetwork{servers: map[string]*recorder{remoteServer.Address(): f.remote}}
	f.locator = &countingLocator{
		Locator: connection.NewStaticLocator(
			connection.Location{Region: localRegion, Server: localServer},
			connection.Location{Region: remoteRegion, Server: remoteServer},
		),
	}

	broker, err := connection.NewBroker(connection.BrokerConfig{
		Server: localServer,
		Online: fakeOnline{regions: []region.Region{fakeRegion{localRegion}}},
		Local:  f.local,
		Host:   f.config(),
		Logger: zaptest.NewLogger(t),
	})

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	t.Cleanup(func() { broker.Close() })

	f.broker = broker

	return f
}

func (f *fixture) config() connection.Config {
	return connection.Config{
		Locator: f.locator,
		Dialer:  f.network.Dial,
	}
}

func TestShortCircuit(t *testing.T) {
	f := newFixture(t)
	conn := f.broker.HostConnection()
	ctx := context.Background()

	if _, err := conn.Exec(ctx, "t1", []byte("a"), "Audit", "Count", []byte("1")); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if _, err := conn.ExecRegion(ctx, localRegion.EncodedName(), "Audit", "Count", []byte("2")); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if _, err := conn.ExecServer(ctx, localServer, "host", "OnlineRegions", nil); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	expected := []transport.Call{
		{Region: localRegion.EncodedName(), Service: "Audit", Method: "Count", Payload: []byte("1")},
		{Region: localRegion.EncodedName(), Service: "Audit", Method: "Count", Payload: []byte("2")},
		{Service: "host", Method: "OnlineRegions"},
	}

	if diff := cmp.Diff(expected, f.local.Calls()); diff != "" {
		t.Fatalf(diff)
	}

	if len(f.network.Dials()) != 0 {
		t.Fatalf("expected no dials, got %v", f.network.Dials())
	}

	if f.locator.Count() != 0 {
		t.Fatalf("expected locator to be bypassed, got %d lookups", f.locator.Count())
	}
}

func TestRemote(t *testing.T) {
	f := newFixture(t)
	conn := f.broker.HostConnection()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		response, err := conn.Exec(ctx, "t1", []byte("x"), "Audit", "Count", nil)

		if err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		if diff := cmp.Diff("ok", string(response)); diff != "" {
			t.Fatalf(diff)
		}
	}

	if diff := cmp.Diff([]string{remoteServer.Address()}, f.network.Dials()); diff != "" {
		t.Fatalf(diff)
	}

	if f.locator.Count() != 1 {
		t.Fatalf("expected the location to be cached, got %d lookups", f.locator.Count())
	}

	if len(f.local.Calls()) != 0 {
		t.Fatalf("expected no local calls")
	}

	for _, call := range f.remote.Calls() {
		if call.Region != remoteRegion.EncodedName() {
			t.Fatalf("expected call to target %s, got %s", remoteRegion.EncodedName(), call.Region)
		}
	}
}

func TestInvalidateOnRegionNotOnline(t *testing.T) {
	f := newFixture(t)
	conn := f.broker.HostConnection()
	ctx := context.Background()

	if _, err := conn.Exec(ctx, "t1", []byte("x"), "Audit", "Count", nil); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	f.remote.mu.Lock()
	f.remote.err = transport.ErrRegionNotOnline
	f.remote.mu.Unlock()

	if _, err := conn.Exec(ctx, "t1", []byte("x"), "Audit", "Count", nil); !errors.Is(err, transport.ErrRegionNotOnline) {
		t.Fatalf("expected ErrRegionNotOnline, got %#v", err)
	}

	if _, err := conn.Exec(ctx, "t1", []byte("x"), "Audit", "Count", nil); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if f.locator.Count() != 2 {
		t.Fatalf("expected the location to be looked up again, got %d lookups", f.locator.Count())
	}
}

func TestNoLocation(t *testing.T) {
	f := newFixture(t)
	conn := f.broker.HostConnection()

	if _, err := conn.Exec(context.Background(), "t2", []byte("x"), "Audit", "Count", nil); !errors.Is(err, connection.ErrNoLocation) {
		t.Fatalf("expected ErrNoLocation, got %#v", err)
	}

	if _, err := conn.ExecRegion(context.Background(), "nope", "Audit", "Count", nil); !errors.Is(err, connection.ErrNoLocation) {
		t.Fatalf("expected ErrNoLocation, got %#v", err)
	}
}

func TestHostConnection(t *testing.T) {
	f := newFixture(t)
	conn := f.broker.HostConnection()

	if conn.ID() != f.broker.HostConnection().ID() {
		t.Fatalf("expected the same host connection")
	}

	if err := conn.Close(); !errors.Is(err, connection.ErrHostOwned) {
		t.Fatalf("expected ErrHostOwned, got %#v", err)
	}

	if conn.Closed() {
		t.Fatalf("expected host connection to stay open")
	}

	if _, err := conn.ExecServer(context.Background(), localServer, "host", "OnlineRegions", nil); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}
}

func TestCreateConnection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.broker.CreateConnection(ctx, f.config())

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	b, err := f.broker.CreateConnection(ctx, f.config())

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	ids := []string{a.ID(), b.ID(), f.broker.HostConnection().ID()}
	sort.Strings(ids)

	if ids[0] == ids[1] || ids[1] == ids[2] {
		t.Fatalf("expected distinct connection ids, got %v", ids)
	}

	for _, conn := range []connection.Connection{a, b} {
		if _, err := conn.Exec(ctx, "t1", []byte("x"), "Audit", "Count", nil); err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}
	}

	// Each connection dials on its own
	if len(f.network.Dials()) != 2 {
		t.Fatalf("expected 2 dials, got %v", f.network.Dials())
	}

	if err := a.Close(); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if !a.Closed() {
		t.Fatalf("expected a to be closed")
	}

	if _, err := a.Exec(ctx, "t1", []byte("x"), "Audit", "Count", nil); !errors.Is(err, connection.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %#v", err)
	}

	if _, err := b.Exec(ctx, "t1", []byte("x"), "Audit", "Count", nil); err != nil {
		t.Fatalf("expected b to be unaffected, got %#v", err)
	}

	if _, err := f.broker.HostConnection().Exec(ctx, "t1", []byte("x"), "Audit", "Count", nil); err != nil {
		t.Fatalf("expected host connection to be unaffected, got %#v", err)
	}

	if !f.network.stubs[0].closed {
		t.Fatalf("expected a's stub to be closed")
	}
}

func TestCreateConnectionInvalid(t *testing.T) {
	f := newFixture(t)

	if _, err := f.broker.CreateConnection(context.Background(), connection.Config{}); !errors.Is(err, connection.ErrConnectionCreation) {
		t.Fatalf("expected ErrConnectionCreation, got %#v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.broker.CreateConnection(ctx, f.config()); !errors.Is(err, connection.ErrConnectionCreation) {
		t.Fatalf("expected ErrConnectionCreation, got %#v", err)
	}
}

func TestBrokerCloseClosesLeaked(t *testing.T) {
	f := newFixture(t)

	conn, err := f.broker.CreateConnection(context.Background(), f.config())

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := f.broker.Close(); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if !conn.Closed() {
		t.Fatalf("expected leaked connection to be closed")
	}

	if !f.broker.HostConnection().Closed() {
		t.Fatalf("expected host connection to be closed")
	}

	if _, err := f.broker.CreateConnection(context.Background(), f.config()); !errors.Is(err, connection.ErrConnectionCreation) {
		t.Fatalf("expected ErrConnectionCreation, got %#v", err)
	}
}

func TestStaticLocator(t *testing.T) {
	split := region.NewRegionInfo("t1", []byte("m"), []byte("t"), 3)
	locator := connection.NewStaticLocator(
		connection.Location{Region: localRegion, Server: localServer},
		connection.Location{Region: remoteRegion, Server: remoteServer},
		connection.Location{Region: split, Server: localServer},
	)

	testCases := map[string]struct {
		row    string
		region region.RegionInfo
		err    error
	}{
		"first": {
			row:    "",
			region: localRegion,
		},
		"before-split": {
			row:    "l",
			region: localRegion,
		},
		"replaced": {
			row:    "n",
			region: split,
		},
		"beyond-end": {
			row: "z",
			err: connection.ErrNoLocation,
		},
	}

	for name, testCase := range testCases {
		testCase := testCase

		t.Run(name, func(t *testing.T) {
			location, err := locator.Locate(context.Background(), "t1", []byte(testCase.row))

			if testCase.err != nil {
				if !errors.Is(err, testCase.err) {
					t.Fatalf("expected %#v, got %#v", testCase.err, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if !location.Region.Equal(testCase.region) {
				t.Fatalf("expected %s, got %s", testCase.region, location.Region)
			}
		})
	}

	if _, err := locator.LocateRegion(context.Background(), remoteRegion.EncodedName()); !errors.Is(err, connection.ErrNoLocation) {
		t.Fatalf("expected the replaced region to be gone, got %#v", err)
	}
}
