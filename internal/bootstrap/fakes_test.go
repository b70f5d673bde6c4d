package bootstrap_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"ignite/internal/faults"
	"ignite/internal/journal"
	"ignite/internal/stage"
)

type calls struct {
	mu  sync.Mutex
	log []string
}

func (c *calls) add(name string) {
	c.mu.Lock()
	c.log = append(c.log, name)
	c.mu.Unlock()
}

func (c *calls) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.log, ",")
}

func (c *calls) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, entry := range c.log {
		if entry == name {
			n++
		}
	}
	return n
}

type fakeNative struct {
	calls         *calls
	shouldExtract bool
	// block holds the first Extract call until closed; entered is closed
	// once that call is waiting.
	block   <-chan struct{}
	entered chan struct{}

	mu         sync.Mutex
	extracts   int
	extractErr *faults.Error
	partial    bool
	loadErr    *faults.Error
	verifyErrs []*faults.Error
}

func (f *fakeNative) Name() string                  { return "native_libraries" }
func (f *fakeNative) Confirm(context.Context) error { return nil }
func (f *fakeNative) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(f.Name())
}
func (f *fakeNative) ShouldExtract() bool { return f.shouldExtract }

func (f *fakeNative) Extract(context.Context) stage.ExtractionResult {
	f.mu.Lock()
	f.extracts++
	first := f.extracts == 1
	f.mu.Unlock()
	if first && f.block != nil {
		if f.entered != nil {
			close(f.entered)
		}
		<-f.block
	}
	f.calls.add("native.extract")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.partial {
		return stage.NewExtractionResult("/n", []string{"/n/a.so", "/n/b.so"}, []string{"c.so"},
			faults.NativeLibraryError("extracted 2 native files with 1 failures", nil))
	}
	if f.extractErr != nil {
		return stage.FailedExtraction("/n", f.extractErr)
	}
	return stage.NewExtractionResult("/n", []string{"/n/a.so"}, nil, nil)
}

func (f *fakeNative) Load(context.Context) stage.LoadResult {
	f.calls.add("native.load")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return stage.LoadResult{Err: f.loadErr}
	}
	return stage.LoadResult{Success: true, LoadedLibraries: []string{"/n/a.so"}}
}

// Verify pops the next queued error; an empty queue verifies cleanly.
func (f *fakeNative) Verify(context.Context) stage.VerificationResult {
	f.calls.add("native.verify")
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.verifyErrs) > 0 {
		err := f.verifyErrs[0]
		f.verifyErrs = f.verifyErrs[1:]
		return stage.VerificationResult{Err: err}
	}
	return stage.VerificationResult{Success: true}
}

type fakeRuntime struct {
	calls *calls

	mu        sync.Mutex
	setupErrs []*faults.Error
	sticky    *faults.Error
}

func (f *fakeRuntime) Name() string                  { return "runtime_environment" }
func (f *fakeRuntime) Confirm(context.Context) error { return nil }
func (f *fakeRuntime) HealthCheck(context.Context) stage.Health {
	return stage.Unhealthy(f.Name(), "not extracted")
}

func (f *fakeRuntime) Setup(context.Context) stage.SetupResult {
	f.calls.add("runtime.setup")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sticky != nil {
		return stage.SetupResult{Err: f.sticky, FailedSteps: []string{"verify"}}
	}
	if len(f.setupErrs) > 0 {
		err := f.setupErrs[0]
		f.setupErrs = f.setupErrs[1:]
		return stage.SetupResult{Err: err, FailedSteps: []string{"verify"}}
	}
	return stage.SetupResult{Success: true, SetupSteps: []string{"verify"}}
}

func (f *fakeRuntime) ExtractFiles(context.Context) stage.ExtractionResult {
	f.calls.add("runtime.extract")
	return stage.NewExtractionResult("/r", []string{"/r/python.zip"}, nil, nil)
}

type fakeEngine struct {
	calls  *calls
	resets atomic.Int32

	mu         sync.Mutex
	initErrs   []*faults.Error
	badVersion bool
}

func (f *fakeEngine) Name() string                  { return "extraction_engine" }
func (f *fakeEngine) Confirm(context.Context) error { return nil }
func (f *fakeEngine) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(f.Name())
}

func (f *fakeEngine) Initialize(context.Context) *faults.Error {
	f.calls.add("engine.initialize")
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.initErrs) > 0 {
		err := f.initErrs[0]
		f.initErrs = f.initErrs[1:]
		return err
	}
	return nil
}

func (f *fakeEngine) Verify(context.Context) bool {
	f.calls.add("engine.verify")
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.badVersion
}

func (f *fakeEngine) Reset() {
	f.resets.Add(1)
}

type fakeJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
	clears  int
}

func (j *fakeJournal) Record(_ context.Context, entry journal.Entry) (journal.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	entry.ID = int64(len(j.entries) + 1)
	j.entries = append(j.entries, entry)
	return entry, nil
}

func (j *fakeJournal) Clear(context.Context) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := int64(len(j.entries))
	j.entries = nil
	j.clears++
	return n, nil
}

func (j *fakeJournal) outcomes() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []string
	for _, e := range j.entries {
		out = append(out, e.Trigger+":"+e.Outcome)
	}
	return strings.Join(out, ",")
}
