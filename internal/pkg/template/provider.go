package template

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/credentio/bulkissue/internal/pkg/persistence"
)

// DB loads template definitions
type DB interface {
	LoadTemplate(ctx context.Context, id string) (*persistence.Template, error)
}

type cached struct {
	data    *persistence.Template
	expires time.Time
}

// Provider returns schema/template attribute definitions with a process cache.
// Workers of one run ask for the same template thousands of times
type Provider struct {
	db    DB
	ttl   time.Duration
	lock  sync.RWMutex
	cache map[string]cached
}

// NewProvider creates cached template provider
func NewProvider(db DB) (*Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("no DB")
	}
	return &Provider{db: db, ttl: time.Minute * 5, cache: map[string]cached{}}, nil
}

// Get returns template by ID
func (p *Provider) Get(ctx context.Context, id string) (*persistence.Template, error) {
	p.lock.RLock()
	c, ok := p.cache[id]
	p.lock.RUnlock()
	if ok && time.Now().Before(c.expires) {
		return c.data, nil
	}
	res, err := p.db.LoadTemplate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("can't load template: %w", err)
	}
	p.lock.Lock()
	p.cache[id] = cached{data: res, expires: time.Now().Add(p.ttl)}
	p.lock.Unlock()
	goapp.Log.Debug().Str("ID", id).Msg("cached template")
	return res, nil
}
