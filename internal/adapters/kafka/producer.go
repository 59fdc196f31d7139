// Package kafka mirrors published tariff batches to a Kafka topic with franz-go
package kafka

import (
	"context"
	"encoding/json"
	"time"

	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/logger"
	"tariffsync/internal/services/propagation/domain"

	"github.com/twmb/franz-go/pkg/kgo"
)

// DefaultTopic receives one record per published batch
const DefaultTopic = "tariffs.box.snapshots"

// Options configures the Producer
type Options struct {
	Brokers  []string
	Topic    string
	ClientID string
	Timeout  time.Duration
}

// Producer implements domain.Stream
type Producer struct {
	cl      *kgo.Client
	topic   string
	timeout time.Duration
	produce func(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

var _ domain.Stream = (*Producer)(nil)

// New builds a franz-go client; brokers are contacted lazily on first produce
func New(o Options) (*Producer, error) {
	if len(o.Brokers) == 0 {
		return nil, perr.Configurationf("kafka brokers are required")
	}
	if o.Topic == "" {
		o.Topic = DefaultTopic
	}
	if o.ClientID == "" {
		o.ClientID = "tariffsync"
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(o.Brokers...),
		kgo.ClientID(o.ClientID),
		kgo.DefaultProduceTopic(o.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression(), kgo.NoCompression()),
	)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeConfiguration, "kafka client")
	}
	return &Producer{cl: cl, topic: o.Topic, timeout: o.Timeout, produce: cl.ProduceSync}, nil
}

// Publish implements domain.Stream, blocking until the broker acks
func (p *Producer) Publish(ctx context.Context, b domain.Batch) error {
	rec, err := Encode(p.topic, b)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.produce(ctx, rec).FirstErr(); err != nil {
		return perr.Wrap(err, perr.ErrorCodePublish, "kafka produce")
	}
	logger.C(ctx).Debug().Str("topic", p.topic).Int("rows", len(b.Records)).Msg("snapshot mirrored")
	return nil
}

// Close flushes nothing and releases the client
func (p *Producer) Close() {
	if p.cl != nil {
		p.cl.Close()
	}
}

type message struct {
	CycleID    string    `json:"cycle_id"`
	CapturedAt time.Time `json:"captured_at"`
	Rows       []row     `json:"rows"`
}

type row struct {
	DtTillMax              string   `json:"dt_till_max"`
	WarehouseName          string   `json:"warehouse_name"`
	DeliveryAndStorageExpr *float64 `json:"delivery_and_storage_expr"`
	DeliveryBase           *float64 `json:"delivery_base"`
	DeliveryLiter          *float64 `json:"delivery_liter"`
	StorageBase            *float64 `json:"storage_base"`
	StorageLiter           *float64 `json:"storage_liter"`
}

// Encode renders a batch as one record keyed by the effective date of its first row
func Encode(topic string, b domain.Batch) (*kgo.Record, error) {
	msg := message{CycleID: b.CycleID, CapturedAt: b.CapturedAt.UTC(), Rows: make([]row, 0, len(b.Records))}
	var key string
	for _, r := range b.Records {
		d := r.DtTillMax.Format("2006-01-02")
		if key == "" {
			key = d
		}
		msg.Rows = append(msg.Rows, row{
			DtTillMax:              d,
			WarehouseName:          r.WarehouseName,
			DeliveryAndStorageExpr: r.DeliveryAndStorageExpr,
			DeliveryBase:           r.DeliveryBase,
			DeliveryLiter:          r.DeliveryLiter,
			StorageBase:            r.StorageBase,
			StorageLiter:           r.StorageLiter,
		})
	}
	val, err := json.Marshal(msg)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "encode snapshot")
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: val,
		Headers: []kgo.RecordHeader{
			{Key: "cycle_id", Value: []byte(b.CycleID)},
		},
	}, nil
}
