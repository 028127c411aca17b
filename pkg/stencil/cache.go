package stencil

import (
	"container/list"
	"sync"
	"time"

	"github.com/expr-lang/expr/vm"
)

// CacheConfig contains configuration options for the program cache
type CacheConfig struct {
	// MaxSize is the maximum number of programs to cache. 0 disables caching.
	MaxSize int
	// TTL is the time-to-live for cached programs. 0 means no expiration.
	TTL time.Duration
}

// ProgramCache keeps compiled expressions keyed by their source text
type ProgramCache struct {
	mu     sync.Mutex
	cache  map[string]*cacheEntry
	lru    *list.List
	config CacheConfig
	now    func() time.Time
}

type cacheEntry struct {
	key     string
	program *vm.Program
	expiry  time.Time
	element *list.Element
}

// NewProgramCache creates a program cache with the given configuration
func NewProgramCache(config CacheConfig) *ProgramCache {
	return &ProgramCache{
		cache:  make(map[string]*cacheEntry),
		lru:    list.New(),
		config: config,
		now:    time.Now,
	}
}

// GetOrCompile returns the cached program for key or compiles and stores a new one
func (pc *ProgramCache) GetOrCompile(key string, compile func() (*vm.Program, error)) (*vm.Program, error) {
	if program, ok := pc.Get(key); ok {
		return program, nil
	}
	program, err := compile()
	if err != nil {
		return nil, err
	}
	pc.Set(key, program)
	return program, nil
}

// Get retrieves a program without compiling
func (pc *ProgramCache) Get(key string) (*vm.Program, bool) {
	if pc.config.MaxSize == 0 {
		return nil, false
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	entry, exists := pc.cache[key]
	if !exists {
		return nil, false
	}

	if pc.config.TTL > 0 && pc.now().After(entry.expiry) {
		pc.removeLocked(entry)
		return nil, false
	}

	pc.lru.MoveToFront(entry.element)
	return entry.program, true
}

// Set adds a program to the cache, evicting the least recently used entry when full
func (pc *ProgramCache) Set(key string, program *vm.Program) {
	if pc.config.MaxSize == 0 {
		return
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	var expiry time.Time
	if pc.config.TTL > 0 {
		expiry = pc.now().Add(pc.config.TTL)
	}

	if existing, exists := pc.cache[key]; exists {
		existing.program = program
		existing.expiry = expiry
		pc.lru.MoveToFront(existing.element)
		return
	}

	if pc.lru.Len() >= pc.config.MaxSize {
		if oldest := pc.lru.Back(); oldest != nil {
			pc.removeLocked(oldest.Value.(*cacheEntry))
		}
	}

	entry := &cacheEntry{
		key:     key,
		program: program,
		expiry:  expiry,
	}
	entry.element = pc.lru.PushFront(entry)
	pc.cache[key] = entry
}

// Remove drops a program from the cache
func (pc *ProgramCache) Remove(key string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if entry, exists := pc.cache[key]; exists {
		pc.removeLocked(entry)
	}
}

func (pc *ProgramCache) removeLocked(entry *cacheEntry) {
	delete(pc.cache, entry.key)
	pc.lru.Remove(entry.element)
}

// Clear removes all programs
func (pc *ProgramCache) Clear() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.cache = make(map[string]*cacheEntry)
	pc.lru = list.New()
}

// Size returns the current number of cached programs
func (pc *ProgramCache) Size() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return len(pc.cache)
}
