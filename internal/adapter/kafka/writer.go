// Package kafka publishes finished reservoir snapshots to a topic for
// downstream consumers that prefer a stream over polling the JSON artifact.
// The file remains the canonical output; publishing is feature-flagged and
// best-effort.
package kafka

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/fjmahv/datosEmbalses/internal/export"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces one message per reservoir record.
// Message values reuse the dense single-line encoding of the file output,
// so stream and file consumers see identical record bytes.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the snapshot topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish sends every record of the dataset in a single WriteMessages call.
func (p *Publisher) Publish(ctx context.Context, ds export.Dataset) error {
	if len(ds.Records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(ds.Records))
	for i := range ds.Records {
		msgs[i] = serializeToMessage(ds.Metadata, ds.Records[i])
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage renders a record as a Kafka message keyed by
// basin|reservoir, carrying the source label as a header.
func serializeToMessage(meta export.Metadata, rec export.Record) kafkago.Message {
	var buf bytes.Buffer
	export.EncodeRecord(&buf, rec)
	return kafkago.Message{
		Key:   []byte(rec.Basin + "|" + rec.Reservoir),
		Value: buf.Bytes(),
		Headers: []kafkago.Header{
			{Key: "fuente", Value: []byte(meta.Source)},
			{Key: "fecha_ultimo_dato", Value: []byte(rec.Snapshot.ReferenceDate.Format("2006-01-02"))},
		},
	}
}
