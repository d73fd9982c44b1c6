// Command sync-demo runs a full local-first sync loop against an in-process
// record server: it seeds a few remote records, queues local changes
// (including one that conflicts), then performs a sync with a merging
// conflict handler and prints what happened.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alvintu/swift-ui-aws-amplify/cursor"
	"github.com/alvintu/swift-ui-aws-amplify/datastore"
	"github.com/alvintu/swift-ui-aws-amplify/engine"
	"github.com/alvintu/swift-ui-aws-amplify/logging"
	"github.com/alvintu/swift-ui-aws-amplify/storage/sqlite"
	"github.com/alvintu/swift-ui-aws-amplify/syncexpr"
	"github.com/alvintu/swift-ui-aws-amplify/transport/httptransport"
)

func main() {
	configPath := flag.String("config", "", "optional sync configuration file (yaml or json)")
	flag.Parse()

	logging.Init(logging.ConfigFromEnv())

	if err := run(*configPath); err != nil {
		logging.Error("demo failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx := context.Background()

	// Remote side: an in-memory record server speaking the push/pull protocol.
	backend := newMemoryBackend()
	backend.seed(
		datastore.NewRecordWithID("Post", "post-1", map[string]any{"title": "Hello", "rating": 5.0}),
		datastore.NewRecordWithID("Post", "post-2", map[string]any{"title": "Drafts", "rating": 2.0}),
		datastore.NewRecordWithID("Comment", "comment-1", map[string]any{"body": "First!"}),
	)
	server := httptest.NewServer(httptransport.NewHandler(backend))
	defer server.Close()

	// Local side: a SQLite store in a scratch directory.
	dir, err := os.MkdirTemp("", "sync-demo")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	store, err := sqlite.NewWithDataSource(filepath.Join(dir, "local.db"))
	if err != nil {
		return err
	}

	opts := []datastore.Option{
		datastore.WithSyncPageSize(2),
		datastore.WithSyncExpressions(syncexpr.MustNew("Post", "rating > 3")),
		datastore.WithConflictHandlerFunc(mergeTitles),
		datastore.WithErrorHandlerFunc(func(err error) {
			logging.Error("sync error", slog.String("error", err.Error()))
		}),
	}
	if configPath != "" {
		fileOpts, err := datastore.OptionsFromFile(configPath, syncexpr.Compiler)
		if err != nil {
			return fmt.Errorf("loading %s: %w", configPath, err)
		}
		opts = append(opts, fileOpts...)
	}
	cfg := datastore.New(opts...)

	client := httptransport.NewClient(server.URL)
	eng, err := engine.New(store, client, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	// Queue local work: one clean create and one update that collides with
	// a record the server already holds.
	if err := store.Enqueue(ctx, engine.Change{
		Record: datastore.NewRecord("Post", map[string]any{"title": "Fresh", "rating": 4.0}),
		Op:     engine.ChangeCreate,
	}); err != nil {
		return err
	}
	backend.conflictOn("post-1")
	if err := store.Enqueue(ctx, engine.Change{
		Record: datastore.NewRecordWithID("Post", "post-1", map[string]any{"title": "Hello, edited locally"}),
		Op:     engine.ChangeUpdate,
	}); err != nil {
		return err
	}

	result, err := eng.Sync(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("mode:               %s\n", result.Mode)
	fmt.Printf("changes pushed:     %d\n", result.ChangesPushed)
	fmt.Printf("records pulled:     %d\n", result.RecordsPulled)
	fmt.Printf("records filtered:   %d\n", result.RecordsFiltered)
	fmt.Printf("conflicts detected: %d\n", result.ConflictsDetected)
	fmt.Printf("errors:             %d\n", len(result.Errors))

	// Give the conflict handler a moment, then show the requeued merge.
	time.Sleep(100 * time.Millisecond)
	pending, err := store.Pending(ctx, 10)
	if err != nil {
		return err
	}
	for _, ch := range pending {
		fmt.Printf("requeued after merge: %s %s %v\n", ch.Op, ch.Record.ID(), ch.Record.Fields())
	}
	return nil
}

// mergeTitles resolves a conflict by overlaying the local title on the
// remote version.
func mergeTitles(c datastore.ConflictSnapshot, resolve datastore.ResolutionReceiver) {
	title, ok := c.Local.Fields()["title"]
	if !ok {
		resolve(datastore.ApplyRemote())
		return
	}
	merged := datastore.NewRecordWithID(c.Remote.Model(), c.Remote.ID(), c.Remote.Fields()).
		WithFields(map[string]any{"title": title})
	resolve(datastore.Retry(merged))
}

// memoryBackend is a toy record server for the demo.
type memoryBackend struct {
	mu        sync.Mutex
	records   map[string]datastore.Record
	order     []string
	conflicts map[string]bool
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		records:   make(map[string]datastore.Record),
		conflicts: make(map[string]bool),
	}
}

func (b *memoryBackend) seed(records ...datastore.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range records {
		b.order = append(b.order, r.ID())
		b.records[r.ID()] = r
	}
}

// conflictOn makes the next push of the given record ID conflict once.
func (b *memoryBackend) conflictOn(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conflicts[id] = true
}

func (b *memoryBackend) ApplyPush(ctx context.Context, changes []engine.Change) (*engine.PushResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := &engine.PushResult{}
	for _, ch := range changes {
		id := ch.Record.ID()
		if b.conflicts[id] {
			delete(b.conflicts, id)
			result.Conflicts = append(result.Conflicts, engine.RemoteConflict{
				Local:  ch,
				Remote: b.records[id],
			})
			continue
		}
		if _, seen := b.records[id]; !seen {
			b.order = append(b.order, id)
		}
		b.records[id] = ch.Record
		result.Accepted = append(result.Accepted, id)
	}
	return result, nil
}

func (b *memoryBackend) Query(ctx context.Context, since cursor.Cursor, limit int) (*engine.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := 0
	if sc, ok := since.(cursor.SeqCursor); ok {
		start = int(sc.Seq)
	}

	page := &engine.Page{}
	for i := start; i < len(b.order) && len(page.Records) < limit; i++ {
		page.Records = append(page.Records, b.records[b.order[i]])
	}
	next := start + len(page.Records)
	if len(page.Records) > 0 {
		page.Next = cursor.NewSeq(uint64(next))
	}
	page.HasMore = next < len(b.order)
	return page, nil
}
