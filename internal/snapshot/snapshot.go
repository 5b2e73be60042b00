// Package snapshot implements spec §4.5's persisted crawl state: a
// versioned, self-describing header followed by a length-prefixed
// sequence of opaque records (ridealong table, seed set, queue size,
// then each queue item in dequeue order). Grounded on the teacher's
// CheckpointManager (internal/engine/checkpoint.go) for the
// atomic-temp-file-then-rename write pattern, generalized from its
// ad-hoc JSON document into the spec's record stream so loaders can
// verify the header before trusting the payload.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/arclane/politecrawl/internal/crawlwork"
	"github.com/arclane/politecrawl/internal/frontier"
)

// formatVersion identifies the record layout below. Bump on any change
// to field order or encoding so Load can refuse a stale file outright
// instead of misreading it.
const formatVersion = 1

// Header is the self-describing prefix spec §4.5 requires. Load refuses
// a snapshot whose Version differs from formatVersion; ConfigDigest is
// returned to the caller and is not compared by Load.
type Header struct {
	Version      int       `json:"version"`
	SavedAt      time.Time `json:"saved_at"`
	ConfigDigest string    `json:"config_digest"`
}

// State is everything Save persists and Load restores.
type State struct {
	Header    Header
	Ridealong map[string]crawlwork.Ridealong
	Seeds     []string
	Queue     []crawlwork.WorkItem
}

// Save drains f destructively (spec §4.5: "the save is destructive to
// the live queue; callers must suspend workers first") and writes the
// header, ridealong table, seed set, queue size, then each item in
// dequeue order, to path via a temp-file-then-rename (adapted from
// CheckpointManager.Save).
func Save(path string, f *frontier.Frontier, seeds []string, configDigest string) error {
	ridealong := f.RidealongSnapshot()
	queue := f.Drain()

	state := State{
		Header: Header{
			Version:      formatVersion,
			SavedAt:      time.Now(),
			ConfigDigest: configDigest,
		},
		Ridealong: ridealong,
		Seeds:     seeds,
		Queue:     queue,
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := writeState(tmp, state); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename snapshot file: %w", err)
	}
	return nil
}

// Load reads path, verifies its header, and restores its queue and
// ridealong table into f. Returns the restored state's header and seed
// set for the caller to re-seed anything not already in the queue.
func Load(path string, f *frontier.Frontier) (Header, []string, error) {
	file, err := os.Open(path)
	if err != nil {
		return Header{}, nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer file.Close()

	state, err := readState(file)
	if err != nil {
		return Header{}, nil, err
	}
	if state.Header.Version != formatVersion {
		return Header{}, nil, fmt.Errorf("snapshot: unsupported format version %d (want %d)", state.Header.Version, formatVersion)
	}

	f.LoadRidealong(state.Ridealong)
	f.RestoreAll(state.Queue)

	return state.Header, state.Seeds, nil
}

// writeState encodes each record as a big-endian uint32 length prefix
// followed by its JSON body, header first. Load decodes every record
// and then checks the header version before restoring anything into
// the frontier.
func writeState(w io.Writer, state State) error {
	bw := bufio.NewWriter(w)

	if err := writeRecord(bw, state.Header); err != nil {
		return fmt.Errorf("write header record: %w", err)
	}
	if err := writeRecord(bw, state.Ridealong); err != nil {
		return fmt.Errorf("write ridealong record: %w", err)
	}
	if err := writeRecord(bw, state.Seeds); err != nil {
		return fmt.Errorf("write seeds record: %w", err)
	}
	if err := writeRecord(bw, len(state.Queue)); err != nil {
		return fmt.Errorf("write queue size record: %w", err)
	}
	for i, item := range state.Queue {
		if err := writeRecord(bw, item); err != nil {
			return fmt.Errorf("write queue item %d: %w", i, err)
		}
	}

	return bw.Flush()
}

func readState(r io.Reader) (State, error) {
	br := bufio.NewReader(r)

	var state State
	if err := readRecord(br, &state.Header); err != nil {
		return State{}, fmt.Errorf("read header record: %w", err)
	}
	if err := readRecord(br, &state.Ridealong); err != nil {
		return State{}, fmt.Errorf("read ridealong record: %w", err)
	}
	if err := readRecord(br, &state.Seeds); err != nil {
		return State{}, fmt.Errorf("read seeds record: %w", err)
	}
	var queueSize int
	if err := readRecord(br, &queueSize); err != nil {
		return State{}, fmt.Errorf("read queue size record: %w", err)
	}

	state.Queue = make([]crawlwork.WorkItem, queueSize)
	for i := range state.Queue {
		if err := readRecord(br, &state.Queue[i]); err != nil {
			return State{}, fmt.Errorf("read queue item %d: %w", i, err)
		}
	}

	return state, nil
}

func writeRecord(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(body)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func readRecord(r io.Reader, v any) error {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return err
	}
	size := binary.BigEndian.Uint32(lenPrefix[:])
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return err
	}
	return json.NewDecoder(bytes.NewReader(body)).Decode(v)
}
