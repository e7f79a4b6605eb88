package eventbus

import (
	"testing"

	"github.com/kichcoin/ledger/pkg/eventbus"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, parseBrokers(" a:9092, ,b:9092 "))
	assert.Empty(t, parseBrokers(""))
}

func TestTopicNameFor(t *testing.T) {
	assert.Equal(t, "ledger.events.transfer.completed", topicNameFor("", eventbus.TransferCompleted))
	assert.Equal(t, "prod.crypto.sent", topicNameFor(" prod ", eventbus.CryptoSent))
	assert.Equal(t, "ledger.events.settlement.refunded.dlq", dlqTopicNameFor("", eventbus.SettlementRefunded))
	assert.Equal(t, "ledger:events-DLQ", dlqStreamName("ledger:events"))
}

func TestNewWithKafka_RequiresBrokers(t *testing.T) {
	_, err := NewWithKafka(" , ", nil, nil)
	assert.ErrorContains(t, err, "brokers are required")
}

func TestBuildKafkaSASLMechanism(t *testing.T) {
	m, err := buildKafkaSASLMechanism(&KafkaEventBusConfig{})
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = buildKafkaSASLMechanism(&KafkaEventBusConfig{SASLUsername: "ledger"})
	assert.Error(t, err)

	m, err = buildKafkaSASLMechanism(&KafkaEventBusConfig{SASLUsername: "ledger", SASLPassword: "secret"})
	require.NoError(t, err)
	assert.Equal(t, plain.Mechanism{Username: "ledger", Password: "secret"}, m)
}

func TestBuildKafkaTLSConfig(t *testing.T) {
	cfg, err := buildKafkaTLSConfig(&KafkaEventBusConfig{TLSCAFile: "/does/not/matter"})
	require.NoError(t, err)
	assert.Nil(t, cfg, "tls stays off unless enabled")

	cfg, err = buildKafkaTLSConfig(&KafkaEventBusConfig{TLSEnabled: true})
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Nil(t, cfg.RootCAs)

	_, err = buildKafkaTLSConfig(&KafkaEventBusConfig{TLSEnabled: true, TLSCAFile: "/nonexistent/ca.pem"})
	assert.ErrorContains(t, err, "read tls ca file")

	_, err = buildKafkaTLSConfig(&KafkaEventBusConfig{TLSEnabled: true, TLSCertFile: "cert.pem"})
	assert.ErrorContains(t, err, "cert and key are required")
}

func TestNewKafkaDialer_TransportOnlyWhenSecured(t *testing.T) {
	d, tr, err := newKafkaDialer(&KafkaEventBusConfig{})
	require.NoError(t, err)
	assert.NotNil(t, d)
	assert.Nil(t, tr)

	d, tr, err = newKafkaDialer(&KafkaEventBusConfig{SASLUsername: "u", SASLPassword: "p"})
	require.NoError(t, err)
	assert.NotNil(t, d.SASLMechanism)
	require.NotNil(t, tr)
	assert.NotNil(t, tr.SASL)
}
