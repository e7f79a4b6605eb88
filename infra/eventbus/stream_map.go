package eventbus

import (
	"fmt"
	"strings"

	"github.com/kichcoin/ledger/pkg/eventbus"
)

const defaultTopicPrefix = "ledger.events"

// topicNameFor maps transfer.completed to <prefix>.transfer.completed.
func topicNameFor(prefix string, t eventbus.EventType) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	return fmt.Sprintf("%s.%s", prefix, strings.ToLower(t.String()))
}

func dlqTopicNameFor(prefix string, t eventbus.EventType) string {
	return topicNameFor(prefix, t) + ".dlq"
}

func dlqStreamName(stream string) string {
	return stream + "-DLQ"
}

func parseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
