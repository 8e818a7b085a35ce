package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/PixelPet-dev/xlayerslot/game"
	"github.com/PixelPet-dev/xlayerslot/presentation"
)

const defaultWorkerNum = 4

// OutcomeProducer streams settled plays to Kafka via a worker pool.
// Delivery is best effort and fully decoupled from bet settlement: a
// full queue drops the event rather than blocking the pipeline.
type OutcomeProducer struct {
	writer    *kafka.Writer
	topic     string
	logger    zerolog.Logger
	jobs      chan kafka.Message
	workerNum int
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// ProducerConfig holds Kafka producer configuration.
type ProducerConfig struct {
	Brokers   []string
	Topic     string
	WorkerNum int
	Logger    zerolog.Logger
}

// NewOutcomeProducer builds the producer. Returns nil when no brokers
// are configured; the nil producer is simply not wired.
func NewOutcomeProducer(config ProducerConfig) *OutcomeProducer {
	if len(config.Brokers) == 0 || config.Topic == "" {
		return nil
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	workerNum := config.WorkerNum
	if workerNum <= 0 {
		workerNum = defaultWorkerNum
	}

	p := &OutcomeProducer{
		writer:    writer,
		topic:     config.Topic,
		logger:    config.Logger.With().Str("component", "kafka_producer").Logger(),
		jobs:      make(chan kafka.Message, 100),
		workerNum: workerNum,
	}
	for i := 0; i < workerNum; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// outcomeEvent is the wire shape of one settled play.
type outcomeEvent struct {
	Player    string    `json:"player"`
	GameID    string    `json:"game_id,omitempty"`
	Symbols   [3]string `json:"symbols"`
	BetAmount string    `json:"bet_amount"`
	WinAmount string    `json:"win_amount"`
	TxHash    string    `json:"tx_hash"`
	Block     uint64    `json:"block"`
	Source    string    `json:"source"`
	IsWin     bool      `json:"is_win"`
	IsJackpot bool      `json:"is_jackpot"`
}

// PublishOutcome enqueues a settled play, keyed by player so each
// player's stream stays ordered within a partition.
func (p *OutcomeProducer) PublishOutcome(_ context.Context, o game.Outcome) error {
	ev := outcomeEvent{
		Player: o.Player.Hex(),
		Symbols: [3]string{
			presentation.SymbolName(o.Symbols[0]),
			presentation.SymbolName(o.Symbols[1]),
			presentation.SymbolName(o.Symbols[2]),
		},
		BetAmount: o.BetAmount.String(),
		WinAmount: o.WinAmount.String(),
		TxHash:    o.TxHash.Hex(),
		Block:     o.Block,
		Source:    o.Source.String(),
		IsWin:     o.IsWin(),
		IsJackpot: o.IsJackpot(),
	}
	if o.GameID != nil {
		ev.GameID = o.GameID.String()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.Player),
		Value: data,
		Time:  time.Now(),
	}
	select {
	case p.jobs <- msg:
		return nil
	default:
		p.logger.Warn().Str("tx_hash", ev.TxHash).Msg("outcome queue full, event dropped")
		return nil
	}
}

func (p *OutcomeProducer) worker() {
	defer p.wg.Done()
	for msg := range p.jobs {
		func() {
			defer p.recover()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := p.writer.WriteMessages(ctx, msg); err != nil {
				p.logger.Error().
					Err(err).
					Str("key", string(msg.Key)).
					Msg("failed to publish outcome")
				return
			}
			p.logger.Debug().
				Str("key", string(msg.Key)).
				Msg("outcome published")
		}()
	}
}

// Close drains the queue and shuts down the writer.
func (p *OutcomeProducer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.jobs)
		p.wg.Wait()
		err = p.writer.Close()
	})
	return err
}

func (p *OutcomeProducer) recover() {
	if r := recover(); r != nil {
		p.logger.Error().
			Str("panic", fmt.Sprintf("%v", r)).
			Str("stack_trace", string(debug.Stack())).
			Msg("panic recovered in outcome worker")
	}
}
