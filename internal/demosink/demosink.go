// Package demosink is the item sink the demonstration CLI (SPEC_FULL
// §5) writes discovered links to: JSON to stdout by default, and
// optionally MongoDB. Adapted from the teacher's storage backends
// (internal/storage/file.go's JSONLStorage, internal/storage/database.go's
// MongoStorage) — same Store/Close/Name shape, generalized from
// types.Item's free-form field bag to the fixed DiscoveredLink record
// this crawler's link-extraction callback produces.
package demosink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DiscoveredLink is one link found on a fetched page.
type DiscoveredLink struct {
	SourceURL  string    `json:"source_url"`
	LinkURL    string    `json:"link_url"`
	AnchorText string    `json:"anchor_text,omitempty"`
	Depth      int       `json:"depth"`
	FoundAt    time.Time `json:"found_at"`
}

// Sink is the interface the demo CLI's crawl loop writes discovered
// links through.
type Sink interface {
	Store(links []DiscoveredLink) error
	Close() error
	Name() string
}

// JSONLSink writes one JSON object per line to w, mirroring the
// teacher's JSONLStorage streaming-write style.
type JSONLSink struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
	count  int
	logger *slog.Logger
}

// NewJSONLSink wraps w (e.g. os.Stdout or a file) as a streaming JSONL sink.
func NewJSONLSink(w io.Writer, logger *slog.Logger) *JSONLSink {
	closer, _ := w.(io.Closer)
	return &JSONLSink{
		enc:    json.NewEncoder(w),
		closer: closer,
		logger: logger.With("component", "jsonl_sink"),
	}
}

func (s *JSONLSink) Name() string { return "jsonl" }

func (s *JSONLSink) Store(links []DiscoveredLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range links {
		if err := s.enc.Encode(link); err != nil {
			return fmt.Errorf("encode discovered link: %w", err)
		}
		s.count++
	}
	return nil
}

func (s *JSONLSink) Close() error {
	s.logger.Info("jsonl sink closing", "links_written", s.count)
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// MongoSink writes discovered links to a MongoDB collection, adapted
// from the teacher's MongoStorage (internal/storage/database.go).
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoSink connects to uri and targets database.collection.
func NewMongoSink(uri, database, collection string, logger *slog.Logger) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoSink{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_sink"),
	}, nil
}

func (s *MongoSink) Name() string { return "mongodb" }

func (s *MongoSink) Store(links []DiscoveredLink) error {
	if len(links) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]any, len(links))
	for i, link := range links {
		docs[i] = link
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongodb insert: %w", err)
	}
	s.count += len(links)
	s.logger.Debug("links stored in mongodb", "count", len(links), "total", s.count)
	return nil
}

func (s *MongoSink) Close() error {
	s.logger.Info("mongodb sink closing", "total_links", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// MultiSink fans out Store calls to every backend, continuing past
// individual failures and returning the first error encountered
// (mirroring the teacher's MultiStorage).
type MultiSink struct {
	backends []Sink
	logger   *slog.Logger
}

// NewMultiSink fans writes out to every given backend.
func NewMultiSink(logger *slog.Logger, backends ...Sink) *MultiSink {
	return &MultiSink{backends: backends, logger: logger.With("component", "multi_sink")}
}

func (s *MultiSink) Name() string { return "multi" }

func (s *MultiSink) Store(links []DiscoveredLink) error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Store(links); err != nil {
			s.logger.Error("backend store failed", "backend", backend.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *MultiSink) Close() error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
