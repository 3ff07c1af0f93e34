package manifest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// fileHeader is the first line of the record file.
const fileHeader = "filename,label"

// FileStore persists the manifest as a flat, human-readable record file:
// a header row followed by newline-delimited `filename,label` rows.
//
// Mutations are serialized through a single writer goroutine. Each write
// re-parses the on-disk file, applies the mutation to the fresh view, and
// rewrites the whole file via temp-file-then-rename, so a failed write
// leaves the previous on-disk state untouched.
type FileStore struct {
	path   string
	logger *slog.Logger

	ops  chan fileOp
	quit chan struct{}
	done chan struct{}
}

type mutResult struct {
	label   Status
	existed bool
}

type fileOp struct {
	// apply mutates the freshly parsed view and reports whether the file
	// must be rewritten.
	apply func(entries map[string]Status) (mutResult, bool)
	reply chan fileOpReply
}

type fileOpReply struct {
	res mutResult
	err error
}

// OpenFile opens (or prepares to create) a record file at path and starts
// the writer queue. The file itself is created on first write.
func OpenFile(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating manifest directory: %w", err)
	}

	s := &FileStore{
		path:   path,
		logger: slog.Default(),
		ops:    make(chan fileOp),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.writeLoop()
	return s, nil
}

// Path returns the record file location.
func (s *FileStore) Path() string {
	return s.path
}

// Close stops the writer queue. Pending callers receive ErrClosed.
func (s *FileStore) Close() error {
	select {
	case <-s.quit:
		return nil
	default:
	}
	close(s.quit)
	<-s.done
	return nil
}

func (s *FileStore) writeLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case op := <-s.ops:
			op.reply <- s.handle(op)
		}
	}
}

func (s *FileStore) handle(op fileOp) fileOpReply {
	entries, err := s.parse()
	if err != nil {
		return fileOpReply{err: err}
	}
	res, write := op.apply(entries)
	if write {
		if err := s.rewrite(entries); err != nil {
			return fileOpReply{err: err}
		}
	}
	return fileOpReply{res: res}
}

func (s *FileStore) mutate(apply func(map[string]Status) (mutResult, bool)) (mutResult, error) {
	op := fileOp{apply: apply, reply: make(chan fileOpReply, 1)}
	select {
	case s.ops <- op:
	case <-s.quit:
		return mutResult{}, ErrClosed
	}
	r := <-op.reply
	return r.res, r.err
}

// ReadAll parses the record file into a filename→label map. A missing file
// reads as empty; unparsable rows are skipped rather than failing the read.
func (s *FileStore) ReadAll() (map[string]Status, error) {
	return s.parse()
}

// List returns all entries sorted by filename.
func (s *FileStore) List() ([]Entry, error) {
	entries, err := s.parse()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(entries))
	for name, label := range entries {
		out = append(out, Entry{Filename: name, Label: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

// Upsert creates or replaces the entry for filename.
func (s *FileStore) Upsert(filename string, label Status) error {
	_, err := s.mutate(func(entries map[string]Status) (mutResult, bool) {
		entries[filename] = label
		return mutResult{label: label}, true
	})
	return err
}

// AppendIfMissing inserts filename as pending only when absent and returns
// the label now on record.
func (s *FileStore) AppendIfMissing(filename string) (Status, error) {
	res, err := s.mutate(func(entries map[string]Status) (mutResult, bool) {
		if existing, ok := entries[filename]; ok {
			return mutResult{label: existing, existed: true}, false
		}
		entries[filename] = StatusPending
		return mutResult{label: StatusPending}, true
	})
	if err != nil {
		return "", err
	}
	return res.label, nil
}

// Remove deletes the entry for filename, reporting whether it existed.
func (s *FileStore) Remove(filename string) (bool, error) {
	res, err := s.mutate(func(entries map[string]Status) (mutResult, bool) {
		if _, ok := entries[filename]; !ok {
			return mutResult{}, false
		}
		delete(entries, filename)
		return mutResult{existed: true}, true
	})
	if err != nil {
		return false, err
	}
	return res.existed, nil
}

func (s *FileStore) parse() (map[string]Status, error) {
	entries := make(map[string]Status)

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || (i == 0 && line == fileHeader) {
			continue
		}
		name, label, ok := strings.Cut(line, ",")
		if !ok || name == "" || !Status(label).Valid() {
			s.logger.Warn("skipping unparsable manifest row", "line", i+1)
			continue
		}
		entries[name] = Status(label)
	}
	return entries, nil
}

// rewrite writes the full view to a temp file and renames it into place.
func (s *FileStore) rewrite(entries map[string]Status) error {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(fileHeader)
	b.WriteByte('\n')
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(',')
		b.WriteString(string(entries[name]))
		b.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".manifest-*")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp manifest: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing manifest: %w", err)
	}
	return nil
}
