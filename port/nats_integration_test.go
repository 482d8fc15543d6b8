//go:build integration

package port

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/c360/rtkit/config"
	cerrors "github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/natsclient"
	"github.com/c360/rtkit/pkg/timestamp"
)

// NATSTransportSuite shares one NATS container across the transport tests.
type NATSTransportSuite struct {
	suite.Suite
	tc *natsclient.TestClient
}

func TestNATSTransportSuite(t *testing.T) {
	suite.Run(t, new(NATSTransportSuite))
}

func (s *NATSTransportSuite) SetupSuite() {
	tc, err := natsclient.NewSharedTestClient()
	s.Require().NoError(err)
	s.tc = tc
}

func (s *NATSTransportSuite) TearDownSuite() {
	if s.tc != nil {
		_ = s.tc.Terminate()
	}
}

// SetupTest makes sure the shared connection is up before each test.
func (s *NATSTransportSuite) SetupTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Require().NoError(s.tc.Client.WaitForConnection(ctx))
}

func (s *NATSTransportSuite) fixture() *fixture {
	f := newFixture(s.T())
	s.Require().NoError(f.net.Transports().Register(NewNATSTransport(s.tc.Client, "rtkit.test")))
	return f
}

func (s *NATSTransportSuite) TestPushRoundTrip() {
	f := s.fixture()
	_, err := f.net.Connect(context.Background(), f.profile("nats1", config.Properties{
		"dataport.subscription_type": "flush",
		PropInterfaceType:            NATSTransportName,
	}))
	s.Require().NoError(err)

	tm := timestamp.Time{Sec: 1700000000, Nsec: 5}
	s.Require().NoError(f.out.Write(Record{Timestamp: tm, Payload: []byte("over the wire")}))

	rec, err := f.in.Read()
	s.Require().NoError(err)
	s.Equal(tm, rec.Timestamp)
	s.Equal("over the wire", string(rec.Payload))
}

func (s *NATSTransportSuite) TestSendFullPropagates() {
	f := s.fixture()
	_, err := f.net.Connect(context.Background(), f.profile("nats2", config.Properties{
		"dataport.subscription_type":      "flush",
		PropInterfaceType:                 NATSTransportName,
		"inport.buffer.length":            "1",
		"inport.buffer.write.full_policy": "do_nothing",
	}))
	s.Require().NoError(err)

	s.Require().NoError(f.out.Write(NewRecord([]byte("1"))))
	err = f.out.Write(NewRecord([]byte("2")))
	s.Equal(cerrors.SendFull, cerrors.Status(err))
}

func (s *NATSTransportSuite) TestPull() {
	f := s.fixture()
	_, err := f.net.Connect(context.Background(), f.profile("nats3", config.Properties{
		PropInterfaceType: NATSTransportName,
		PropDataflowType:  "pull",
	}))
	s.Require().NoError(err)

	_, err = f.in.Read()
	s.Equal(cerrors.RecvEmpty, cerrors.Status(err))

	s.Require().NoError(f.out.Write(NewRecord([]byte("pulled"))))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rec, err := f.in.ReadContext(ctx)
	s.Require().NoError(err)
	s.Equal("pulled", string(rec.Payload))
}

func (s *NATSTransportSuite) TestClosedChannelIsConnectionLost() {
	tr := NewNATSTransport(s.tc.Client, "")

	ch, err := tr.Open(context.Background(), Endpoints{
		Profile:  ConnectorProfile{ID: "orphan"},
		Dataflow: Pull,
	})
	s.Require().NoError(err)
	s.Require().NoError(ch.Close())
	s.Require().NoError(ch.Close())

	_, err = ch.Pull(context.Background())
	s.True(cerrors.IsConnectionLost(err))

	// Nobody serves this subject any more.
	other, err := tr.Open(context.Background(), Endpoints{
		Profile:  ConnectorProfile{ID: "orphan"},
		Dataflow: Pull,
	})
	s.Require().NoError(err)
	s.Require().NoError(other.Close())
	live := &natsChannel{client: s.tc.Client, subject: DefaultSubjectPrefix + ".orphan"}
	_, err = live.Pull(context.Background())
	s.True(cerrors.IsConnectionLost(err), "no responders maps to connection lost: %v", err)
}
