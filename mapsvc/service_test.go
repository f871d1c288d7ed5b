package mapsvc

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// echoService answers from its request so the wire round trip is visible.
type echoService struct{}

func (echoService) CreateSession(_ context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error) {
	return &CreateSessionResponse{Session: SessionInfo{ID: "s-1", Source: req.SnapshotID, NumEvents: req.NumEvents}}, nil
}

func (echoService) Settle(_ context.Context, req *SettleRequest) (*SettleResponse, error) {
	return &SettleResponse{Applied: req.View != nil, Representatives: []string{req.SessionID}}, nil
}

func (echoService) Drain(context.Context, *DrainRequest) (*DrainResponse, error) {
	return &DrainResponse{Live: 7}, nil
}

func (echoService) Select(_ context.Context, req *SelectRequest) (*SelectResponse, error) {
	resp := &SelectResponse{}
	resp.Detail.ID = req.EventID
	return resp, nil
}

func (echoService) Summary(context.Context, *SummaryRequest) (*SummaryResponse, error) {
	resp := &SummaryResponse{}
	resp.Summary.TotalEvents = 3
	return resp, nil
}

func (echoService) CloseSession(_ context.Context, req *CloseSessionRequest) (*CloseSessionResponse, error) {
	return nil, status.Errorf(codes.NotFound, "session %s not found", req.SessionID)
}

func (echoService) ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error) {
	return &ListSessionsResponse{Sessions: []SessionInfo{{ID: "s-1"}}}, nil
}

func TestClientServerRoundTrip(t *testing.T) {
	var mu sync.Mutex
	var methods []string
	record := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		mu.Lock()
		methods = append(methods, info.FullMethod)
		mu.Unlock()
		return handler(ctx, req)
	}

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(grpc.UnaryInterceptor(record))
	RegisterMapServiceServer(s, echoService{})
	go s.Serve(lis)
	defer s.Stop()

	conn, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	defer conn.Close()
	client := NewClient(conn)
	ctx := context.Background()

	created, err := client.CreateSession(ctx, &CreateSessionRequest{SnapshotID: "abc", NumEvents: 5})
	require.NoError(t, err)
	assert.Equal(t, SessionInfo{ID: "s-1", Source: "abc", NumEvents: 5}, created.Session)

	settled, err := client.Settle(ctx, &SettleRequest{SessionID: "s-1"})
	require.NoError(t, err)
	assert.False(t, settled.Applied)
	assert.Equal(t, []string{"s-1"}, settled.Representatives)

	drained, err := client.Drain(ctx, &DrainRequest{SessionID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, 7, drained.Live)

	selected, err := client.Select(ctx, &SelectRequest{SessionID: "s-1", EventID: "evt"})
	require.NoError(t, err)
	assert.Equal(t, "evt", selected.Detail.ID)

	summary, err := client.Summary(ctx, &SummaryRequest{SessionID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Summary.TotalEvents)

	list, err := client.ListSessions(ctx, &ListSessionsRequest{})
	require.NoError(t, err)
	assert.Len(t, list.Sessions, 1)

	_, err = client.CloseSession(ctx, &CloseSessionRequest{SessionID: "s-1"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"/lezhure.maps.MapService/CreateSession",
		"/lezhure.maps.MapService/Settle",
		"/lezhure.maps.MapService/Drain",
		"/lezhure.maps.MapService/Select",
		"/lezhure.maps.MapService/Summary",
		"/lezhure.maps.MapService/ListSessions",
		"/lezhure.maps.MapService/CloseSession",
	}, methods)
}
