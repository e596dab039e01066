//go:build integration

package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"singluten/pkg/testutil/containers"
)

const testAuditTopic = "singluten.rate-limit.audit.test"

type KafkaSinkIntegrationSuite struct {
	suite.Suite
	broker string
	sink   *KafkaSink
}

func TestKafkaSinkIntegrationSuite(t *testing.T) {
	suite.Run(t, new(KafkaSinkIntegrationSuite))
}

func (s *KafkaSinkIntegrationSuite) SetupSuite() {
	rp := containers.NewRedpandaContainer(s.T())
	s.broker = rp.Broker

	sink, err := NewKafkaSink([]string{s.broker}, testAuditTopic,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(err)
	s.sink = sink
}

func (s *KafkaSinkIntegrationSuite) TearDownSuite() {
	if s.sink != nil {
		s.sink.Close()
	}
}

func (s *KafkaSinkIntegrationSuite) TestEmit_TopicCreatedAndRecordDelivered() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	event := NewEvent("rate_limit_exceeded",
		"identifier", "user-9",
		"bucket", "review",
		"count", 6,
	)
	s.Require().NoError(s.sink.Emit(ctx, event))
	s.Require().NoError(s.sink.Flush(ctx))

	adminClient, err := kgo.NewClient(kgo.SeedBrokers(s.broker))
	s.Require().NoError(err)
	defer adminClient.Close()

	admin := kadm.NewClient(adminClient)
	topics, err := admin.ListTopics(ctx)
	s.Require().NoError(err)
	s.True(topics.Has(testAuditTopic), "audit topic should be auto-created on first produce")

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(testAuditTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().NoError(fetches.Err())

	records := fetches.Records()
	s.Require().NotEmpty(records)

	record := records[0]
	s.Equal([]byte("user-9"), record.Key)

	var decoded Event
	s.Require().NoError(json.Unmarshal(record.Value, &decoded))
	s.Equal(event.ID, decoded.ID)
	s.Equal("rate_limit_exceeded", decoded.Action)
	s.Equal("review", decoded.Fields["bucket"])
}

func (s *KafkaSinkIntegrationSuite) TestEmit_PartitionsBySubject() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		s.Require().NoError(s.sink.Emit(ctx, NewEvent("rate_limit_exceeded", "identifier", "user-ordered")))
	}
	s.Require().NoError(s.sink.Flush(ctx))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(testAuditTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	partitions := map[int32]int{}
	deadline := time.Now().Add(20 * time.Second)
	seen := 0
	for seen < 5 && time.Now().Before(deadline) {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(fetches.Err())
		for _, record := range fetches.Records() {
			if string(record.Key) == "user-ordered" {
				partitions[record.Partition]++
				seen++
			}
		}
	}

	s.Require().Equal(5, seen)
	s.Len(partitions, 1, "records for one subject should land in one partition")
}
