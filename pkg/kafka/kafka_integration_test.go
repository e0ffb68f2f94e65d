//go:build integration
// +build integration

package kafka

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ava-labs/orderfill-indexer/internal/types"
	"github.com/ava-labs/orderfill-indexer/pkg/data/sqlite/orderrepo"
	"github.com/ava-labs/orderfill-indexer/pkg/kafka/processor"
	"github.com/ava-labs/orderfill-indexer/pkg/kafka/testutils"
)

const (
	kafkaStartupTimeout = 60 * time.Second
	testBrokers         = "localhost:9093"
)

func setupKafka(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "confluentinc/cp-kafka:7.5.0",
		ExposedPorts: []string{"9093/tcp"},
		HostConfigModifier: func(hc *container.HostConfig) {
			// advertised listener is localhost:9093, so the host port must match
			hc.PortBindings = map[nat.Port][]nat.PortBinding{
				"9093/tcp": {{HostIP: "127.0.0.1", HostPort: "9093"}},
			}
		},
		Env: map[string]string{
			"KAFKA_LISTENERS":                                "PLAINTEXT://0.0.0.0:9093,BROKER://0.0.0.0:9092,CONTROLLER://0.0.0.0:9094",
			"KAFKA_ADVERTISED_LISTENERS":                     "PLAINTEXT://localhost:9093,BROKER://localhost:9092",
			"KAFKA_LISTENER_SECURITY_PROTOCOL_MAP":           "CONTROLLER:PLAINTEXT,BROKER:PLAINTEXT,PLAINTEXT:PLAINTEXT",
			"KAFKA_INTER_BROKER_LISTENER_NAME":               "BROKER",
			"KAFKA_CONTROLLER_LISTENER_NAMES":                "CONTROLLER",
			"KAFKA_CONTROLLER_QUORUM_VOTERS":                 "1@localhost:9094",
			"KAFKA_PROCESS_ROLES":                            "broker,controller",
			"KAFKA_NODE_ID":                                  "1",
			"KAFKA_OFFSETS_TOPIC_REPLICATION_FACTOR":         "1",
			"KAFKA_TRANSACTION_STATE_LOG_REPLICATION_FACTOR": "1",
			"KAFKA_TRANSACTION_STATE_LOG_MIN_ISR":            "1",
			"KAFKA_GROUP_INITIAL_REBALANCE_DELAY_MS":         "0",
			"KAFKA_AUTO_CREATE_TOPICS_ENABLE":                "false",
			"CLUSTER_ID":                                     "MkU3OEVBNTcwNTJENDM2Qk",
		},
		WaitingFor: wait.ForLog("Kafka Server started").WithStartupTimeout(kafkaStartupTimeout),
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
	})

	time.Sleep(3 * time.Second)
}

func TestIntegration_PublishAndMirror(t *testing.T) {
	setupKafka(t)
	log := testutils.NewTestLogger(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pcfg := ProducerConfig{
		Brokers:           testBrokers,
		Topic:             "orders-filled",
		ClientID:          "orderfill-test",
		Partitions:        2,
		ReplicationFactor: 1,
		FlushTimeout:      DefaultFlushTimeout,
	}
	require.NoError(t, EnsureOrdersTopic(ctx, pcfg, log))
	// idempotent
	require.NoError(t, EnsureOrdersTopic(ctx, pcfg, log))
	require.NoError(t, EnsureOrdersTopic(ctx, ProducerConfig{
		Brokers: testBrokers, Topic: "orders-filled-dlq", Partitions: 1, ReplicationFactor: 1,
	}, log))

	producer, err := NewProducer(ctx, pcfg.ConfigMap(), log)
	require.NoError(t, err)
	defer producer.Close(pcfg.FlushTimeout)

	pub := NewOrderPublisher(producer, pcfg.Topic)
	orders := []*types.OrderFilled{
		{TxHash: "A", Sender: "0xa", Filler: "osmo1f", AmountIn: "10", AmountOut: "9", SourceDomain: "1", SolverRevenue: 1, Height: 10, IngestionTimestamp: time.Now().UTC()},
		{TxHash: "B", Sender: "0xb", Filler: "osmo1f", AmountIn: "20", AmountOut: "18", SourceDomain: "8453", SolverRevenue: 2, Height: 11, IngestionTimestamp: time.Now().UTC()},
	}
	for _, o := range orders {
		require.NoError(t, pub.PublishOrder(ctx, o))
	}
	// redelivery of the same order is absorbed by the store
	require.NoError(t, pub.PublishOrder(ctx, orders[0]))
	require.NoError(t, producer.Produce(ctx, Msg{Topic: pcfg.Topic, Key: []byte("junk"), Value: []byte("not json")}))

	repo, err := orderrepo.Open(ctx, filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	defer repo.Close()

	ccfg := ConsumerConfig{
		Brokers:         testBrokers,
		Topic:           pcfg.Topic,
		DLQTopic:        "orders-filled-dlq",
		GroupID:         "orderfill-mirror-test",
		AutoOffsetReset: "earliest",
	}
	consumer, err := NewConsumer(ctx, log, ccfg, processor.NewOrderProcessor(repo, log), nil)
	require.NoError(t, err)

	consumeCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- consumer.Start(consumeCtx) }()

	require.Eventually(t, func() bool {
		all, err := repo.AllOrders(ctx)
		return err == nil && len(all) == 2
	}, 60*time.Second, 500*time.Millisecond)

	stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("consumer did not stop")
	}

	got, err := repo.OrdersBySender(ctx, "0xb")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "20", got[0].AmountIn)
	assert.Equal(t, uint64(11), got[0].Height)
}
