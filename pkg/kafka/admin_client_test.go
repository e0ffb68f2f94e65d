package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/orderfill-indexer/pkg/kafka/testutils"
)

type mockAdmin struct {
	mock.Mock
}

func (m *mockAdmin) GetMetadata(topic *string, allTopics bool, timeoutMs int) (*kafka.Metadata, error) {
	args := m.Called(*topic, allTopics, timeoutMs)
	md, _ := args.Get(0).(*kafka.Metadata)
	return md, args.Error(1)
}

func (m *mockAdmin) CreateTopics(ctx context.Context, topics []kafka.TopicSpecification, _ ...kafka.CreateTopicsAdminOption) ([]kafka.TopicResult, error) {
	args := m.Called(ctx, topics)
	res, _ := args.Get(0).([]kafka.TopicResult)
	return res, args.Error(1)
}

func (m *mockAdmin) CreatePartitions(ctx context.Context, partitions []kafka.PartitionsSpecification, _ ...kafka.CreatePartitionsAdminOption) ([]kafka.TopicResult, error) {
	args := m.Called(ctx, partitions)
	res, _ := args.Get(0).([]kafka.TopicResult)
	return res, args.Error(1)
}

func metadataWith(topic string, partitions, replicas int) *kafka.Metadata {
	tm := kafka.TopicMetadata{Topic: topic}
	for i := 0; i < partitions; i++ {
		tm.Partitions = append(tm.Partitions, kafka.PartitionMetadata{
			ID:       int32(i),
			Replicas: make([]int32, replicas),
		})
	}
	return &kafka.Metadata{Topics: map[string]kafka.TopicMetadata{topic: tm}}
}

func TestTopicConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TopicConfig
		wantErr bool
	}{
		{"valid", TopicConfig{Name: "orders-filled", NumPartitions: 1, ReplicationFactor: 1}, false},
		{"empty name", TopicConfig{NumPartitions: 1, ReplicationFactor: 1}, true},
		{"zero partitions", TopicConfig{Name: "t", ReplicationFactor: 1}, true},
		{"zero replication", TopicConfig{Name: "t", NumPartitions: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestEnsureTopic_CreatesMissingTopic(t *testing.T) {
	admin := &mockAdmin{}
	cfg := TopicConfig{Name: "orders-filled", NumPartitions: 3, ReplicationFactor: 1}

	admin.On("GetMetadata", "orders-filled", false, mock.Anything).
		Return(&kafka.Metadata{Topics: map[string]kafka.TopicMetadata{}}, nil)
	admin.On("CreateTopics", mock.Anything, []kafka.TopicSpecification{{
		Topic: "orders-filled", NumPartitions: 3, ReplicationFactor: 1,
	}}).Return([]kafka.TopicResult{{Topic: "orders-filled"}}, nil)

	require.NoError(t, EnsureTopic(t.Context(), admin, cfg, testutils.NewTestLogger(t)))
	admin.AssertExpectations(t)
}

func TestEnsureTopic_AlreadyMatching(t *testing.T) {
	admin := &mockAdmin{}
	cfg := TopicConfig{Name: "orders-filled", NumPartitions: 2, ReplicationFactor: 1}
	admin.On("GetMetadata", "orders-filled", false, mock.Anything).Return(metadataWith("orders-filled", 2, 1), nil)

	require.NoError(t, EnsureTopic(t.Context(), admin, cfg, testutils.NewTestLogger(t)))
	admin.AssertNotCalled(t, "CreateTopics", mock.Anything, mock.Anything)
	admin.AssertNotCalled(t, "CreatePartitions", mock.Anything, mock.Anything)
}

func TestEnsureTopic_GrowsPartitions(t *testing.T) {
	admin := &mockAdmin{}
	cfg := TopicConfig{Name: "orders-filled", NumPartitions: 4, ReplicationFactor: 1}
	admin.On("GetMetadata", "orders-filled", false, mock.Anything).Return(metadataWith("orders-filled", 1, 1), nil)
	admin.On("CreatePartitions", mock.Anything, []kafka.PartitionsSpecification{{Topic: "orders-filled", IncreaseTo: 4}}).
		Return([]kafka.TopicResult{{Topic: "orders-filled"}}, nil)

	require.NoError(t, EnsureTopic(t.Context(), admin, cfg, testutils.NewTestLogger(t)))
	admin.AssertExpectations(t)
}

func TestEnsureTopic_TooManyPartitions(t *testing.T) {
	admin := &mockAdmin{}
	cfg := TopicConfig{Name: "orders-filled", NumPartitions: 1, ReplicationFactor: 1}
	admin.On("GetMetadata", "orders-filled", false, mock.Anything).Return(metadataWith("orders-filled", 3, 1), nil)

	err := EnsureTopic(t.Context(), admin, cfg, testutils.NewTestLogger(t))
	require.ErrorIs(t, err, ErrTooManyPartitions)
}

func TestEnsureTopic_MetadataError(t *testing.T) {
	admin := &mockAdmin{}
	cfg := TopicConfig{Name: "orders-filled", NumPartitions: 1, ReplicationFactor: 1}
	boom := errors.New("broker unreachable")
	admin.On("GetMetadata", "orders-filled", false, mock.Anything).Return(nil, boom)

	err := EnsureTopic(t.Context(), admin, cfg, testutils.NewTestLogger(t))
	require.ErrorIs(t, err, boom)
}

func TestEnsureTopic_InvalidConfig(t *testing.T) {
	admin := &mockAdmin{}
	err := EnsureTopic(t.Context(), admin, TopicConfig{}, testutils.NewTestLogger(t))
	require.Error(t, err)
	admin.AssertNotCalled(t, "GetMetadata", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateTopic_ResultError(t *testing.T) {
	admin := &mockAdmin{}
	cfg := TopicConfig{Name: "orders-filled", NumPartitions: 1, ReplicationFactor: 3}
	admin.On("CreateTopics", mock.Anything, mock.Anything).Return([]kafka.TopicResult{{
		Topic: "orders-filled",
		Error: kafka.NewError(kafka.ErrInvalidReplicationFactor, "not enough brokers", false),
	}}, nil)

	err := CreateTopic(t.Context(), admin, cfg, testutils.NewTestLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orders-filled")
}

func TestCreateTopic_AlreadyExistsIsNotAnError(t *testing.T) {
	admin := &mockAdmin{}
	cfg := TopicConfig{Name: "orders-filled", NumPartitions: 1, ReplicationFactor: 1}
	admin.On("CreateTopics", mock.Anything, mock.Anything).Return([]kafka.TopicResult{{
		Topic: "orders-filled",
		Error: kafka.NewError(kafka.ErrTopicAlreadyExists, "exists", false),
	}}, nil)

	require.NoError(t, CreateTopic(t.Context(), admin, cfg, testutils.NewTestLogger(t)))
}
