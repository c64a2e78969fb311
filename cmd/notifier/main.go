// cmd/notifier/main.go is an asynchronous worker that pops notification data
// from the Redis queue and persists it to PostgreSQL, giving users a durable
// notification history independent of live websocket delivery.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/grindline/skate-service/internal/config"
	"github.com/grindline/skate-service/internal/database"
	"github.com/grindline/skate-service/internal/models"
)

// NotifierService encapsulates the Redis + DB logic for draining the
// notification queue in batches.
type NotifierService struct {
	redisClient *redis.Client
	batchSize   int
	flushDelay  time.Duration

	batchMu  sync.Mutex
	batch    []models.Notification
	persist  func(batch []models.Notification) error
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewNotifierService constructs a NotifierService from environment variables or defaults.
func NewNotifierService() *NotifierService {
	batchSize := config.GetEnvInt("NOTIFIER_BATCH_SIZE", 20)
	flushMs := config.GetEnvInt("NOTIFIER_FLUSH_MS", 500)

	redisAddr := config.GetEnv("REDIS_ADDR", "localhost:6379")
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &NotifierService{
		redisClient: rdb,
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		batch:       make([]models.Notification, 0, batchSize),
		persist:     persistToDB,
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run connects the database and drains the queue until Stop is called.
func (ns *NotifierService) Run() {
	database.ConnectDB()

	go ns.readRedisLoop()

	log.Println("skate-notifier service started.")
	<-ns.ctx.Done()
	log.Println("skate-notifier shutting down.")
}

// readRedisLoop continuously uses BLPop to retrieve messages from the Redis queue.
func (ns *NotifierService) readRedisLoop() {
	ticker := time.NewTicker(ns.flushDelay)
	defer ticker.Stop()

	queueName := config.GetEnv("NOTIFY_QUEUE_NAME", "skate_notifications")

	for {
		select {
		case <-ns.ctx.Done():
			return

		case <-ticker.C:
			ns.flushBatchToDB()

		default:
			// BLPop with a short timeout so context cancellation is handled.
			res, err := ns.redisClient.BLPop(ns.ctx, 3*time.Second, queueName).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				log.Printf("[ERROR] BLPop: %v\n", err)
				continue
			}
			if len(res) < 2 {
				continue
			}

			// res[0] is the queue name and res[1] the payload.
			var n models.Notification
			if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
				log.Printf("invalid notification record: %v\n", err)
				continue
			}

			ns.appendToBatch(n)
		}
	}
}

// appendToBatch adds a record to the in-memory batch and flushes if the threshold is reached.
func (ns *NotifierService) appendToBatch(n models.Notification) {
	ns.batchMu.Lock()
	defer ns.batchMu.Unlock()

	ns.batch = append(ns.batch, n)
	if len(ns.batch) >= ns.batchSize {
		ns.flushLocked()
	}
}

// flushBatchToDB flushes the current batch to the database in a single transaction.
func (ns *NotifierService) flushBatchToDB() {
	ns.batchMu.Lock()
	defer ns.batchMu.Unlock()
	ns.flushLocked()
}

// flushLocked drains the batch and hands it to persist. Callers must hold
// batchMu.
func (ns *NotifierService) flushLocked() {
	if len(ns.batch) == 0 {
		return
	}
	batchCopy := make([]models.Notification, len(ns.batch))
	copy(batchCopy, ns.batch)
	ns.batch = ns.batch[:0]

	if err := ns.persist(batchCopy); err != nil {
		log.Printf("[ERROR] flush batch: %v\n", err)
	} else {
		log.Printf("Flushed %d notifications to DB.\n", len(batchCopy))
	}
}

// persistToDB writes one drained batch in a single transaction.
func persistToDB(batch []models.Notification) error {
	ctx := context.Background()
	return pgx.BeginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, n := range batch {
			if err := insertNotificationTx(ctx, tx, n); err != nil {
				return fmt.Errorf("insertNotificationTx: %w", err)
			}
		}
		return nil
	})
}

// insertNotificationTx inserts one notification row.
func insertNotificationTx(ctx context.Context, tx pgx.Tx, n models.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO notifications (user_id, event_kind, payload, sent_at)
		VALUES ($1, $2, $3, to_timestamp($4::double precision / 1000))
	`
	_, err = tx.Exec(ctx, q, n.UserID, n.EventKind, payload, n.Timestamp)
	return err
}

// Stop gracefully stops the notifier service.
func (ns *NotifierService) Stop() {
	ns.cancelFn()
}

func main() {
	ns := NewNotifierService()
	go ns.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	ns.Stop()
	log.Println("Notifier shutdown complete.")
}
