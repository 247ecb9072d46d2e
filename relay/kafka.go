// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/inconshreveable/log15"

	"github.com/rift-labs/riftvm/kernel"
)

const (
	DefaultReceiptTopic    = "riftvm_receipts"
	DefaultWithdrawalTopic = "riftvm_withdrawals"
)

// kafkaEnvelope is the JSON document published per message.
type kafkaEnvelope struct {
	Level   uint64               `json:"level"`
	Seq     uint64               `json:"seq"`
	Kind    string               `json:"kind"`
	Payload kernel.OutboxPayload `json:"payload"`
}

// KafkaSink publishes outbox messages to per-kind topics, keyed by
// sequence number so consumers can dedup redelivery.
type KafkaSink struct {
	log             log15.Logger
	producer        sarama.SyncProducer
	receiptTopic    string
	withdrawalTopic string
}

func NewKafkaSink(brokers []string, receiptTopic, withdrawalTopic string, log log15.Logger) (*KafkaSink, error) {
	if receiptTopic == "" {
		receiptTopic = DefaultReceiptTopic
	}
	if withdrawalTopic == "" {
		withdrawalTopic = DefaultWithdrawalTopic
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Timeout = 5 * time.Second
	config.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	log.Info("kafka sink ready",
		"brokers", brokers,
		"receiptTopic", receiptTopic,
		"withdrawalTopic", withdrawalTopic)

	return &KafkaSink{
		log:             log,
		producer:        producer,
		receiptTopic:    receiptTopic,
		withdrawalTopic: withdrawalTopic,
	}, nil
}

func (s *KafkaSink) Deliver(msg *kernel.OutboxMessage) error {
	var topic, kind string
	switch msg.Payload.(type) {
	case *kernel.Receipt:
		topic, kind = s.receiptTopic, "receipt"
	case *kernel.Withdrawal:
		topic, kind = s.withdrawalTopic, "withdrawal"
	default:
		return fmt.Errorf("unhandled outbox payload %T", msg.Payload)
	}

	value, err := json.Marshal(&kafkaEnvelope{
		Level:   msg.Level,
		Seq:     msg.Seq,
		Kind:    kind,
		Payload: msg.Payload,
	})
	if err != nil {
		return fmt.Errorf("encoding outbox message %d: %w", msg.Seq, err)
	}

	partition, offset, err := s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(msg.Seq, 10)),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return fmt.Errorf("publishing outbox message %d: %w", msg.Seq, err)
	}

	s.log.Debug("outbox message published",
		"seq", msg.Seq, "topic", topic, "partition", partition, "offset", offset)
	return nil
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
