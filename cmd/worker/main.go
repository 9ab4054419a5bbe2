package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/carpool-matching/internal/ingest"
)

var (
	eventsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worker_trip_events_consumed_total",
		Help: "Total trip events consumed",
	})
	eventsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worker_trip_events_invalid_total",
		Help: "Total invalid trip events received",
	})
	cacheUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worker_cache_updates_total",
		Help: "Total successful trip cache updates",
	})
	cacheErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worker_cache_errors_total",
		Help: "Total trip cache errors",
	})
)

func init() {
	prometheus.MustRegister(eventsConsumed, eventsInvalid, cacheUpdates, cacheErrors)
}

func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	brokers := splitBrokers(os.Getenv("KAFKA_BROKERS"))
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "trip-events"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "carpool-trip-worker"
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	rc := redis.NewClient(&redis.Options{Addr: redisAddr, Password: os.Getenv("REDIS_PASSWORD")})
	cache := &redisTripCache{c: rc}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			_, _ = w.Write([]byte("ready"))
		})
		log.Printf("metrics/health listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	log.Printf("worker listening topic=%s brokers=%v group=%s", topic, brokers, group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down worker")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		eventsConsumed.Inc()

		var ev ingest.TripEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.Trip.ID == "" {
			eventsInvalid.Inc()
			log.Printf("invalid trip event: %v", err)
			continue
		}

		if err := updateCacheWithRetry(ctx, cache, &ev, 3, 200*time.Millisecond); err != nil {
			cacheErrors.Inc()
			log.Printf("cache update failed for trip=%s: %v", ev.Trip.ID, err)
			continue
		}
		cacheUpdates.Inc()
	}
}

// TripCache is the small subset of redis operations the worker needs,
// kept as an interface for tests.
type TripCache interface {
	HSet(ctx context.Context, key string, values map[string]interface{}) error
	Del(ctx context.Context, key string) error
}

type redisTripCache struct{ c *redis.Client }

func (r *redisTripCache) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	_, err := r.c.HSet(ctx, key, values).Result()
	return err
}

func (r *redisTripCache) Del(ctx context.Context, key string) error {
	_, err := r.c.Del(ctx, key).Result()
	return err
}

// updateCacheWithRetry mirrors the event into the trip lookup cache with
// retry and doubling backoff.
func updateCacheWithRetry(ctx context.Context, cache TripCache, ev *ingest.TripEvent, attempts int, delay time.Duration) error {
	key := "trip:" + ev.Trip.ID
	var lastErr error
	for i := 0; i < attempts; i++ {
		if ev.Type == "trip_closed" {
			lastErr = cache.Del(ctx, key)
		} else {
			lastErr = cache.HSet(ctx, key, map[string]interface{}{
				"origin":      ev.Trip.Origin,
				"destination": ev.Trip.Destination,
				"departure":   ev.Trip.DepartureTime,
				"seats":       ev.Trip.Seats,
				"driver_id":   ev.Trip.DriverID,
			})
		}
		if lastErr == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return lastErr
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if v := strings.TrimSpace(b); v != "" {
			out = append(out, v)
		}
	}
	return out
}
