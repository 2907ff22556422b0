// Package persistence checkpoints pipeline progress to the record store in the background.
package persistence

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/ports"
)

// PersistenceManager handles background batch writing of certificates to storage.
type PersistenceManager struct {
	store       ports.CertificateStore
	persistChan chan domain.Certificate
	batchSize   int
	interval    time.Duration
	enabled     bool
	flushChan   chan chan struct{}
	mu          sync.RWMutex
	done        chan struct{}
}

// NewPersistenceManager creates a new manager.
func NewPersistenceManager(store ports.CertificateStore, bufferSize int) *PersistenceManager {
	return &PersistenceManager{
		store:       store,
		persistChan: make(chan domain.Certificate, bufferSize),
		flushChan:   make(chan chan struct{}),
		batchSize:   200,
		interval:    5 * time.Second,
		enabled:     true,
	}
}

// Persist queues a certificate for persistence if enabled.
// A full queue drops the checkpoint; the final upsert of the run still writes the record.
func (p *PersistenceManager) Persist(cert domain.Certificate) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.enabled {
		return
	}
	select {
	case p.persistChan <- cert:
	default:
	}
}

// IsEnabled returns the current persistence status.
func (p *PersistenceManager) IsEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// SetEnabled toggles checkpointing.
func (p *PersistenceManager) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = enabled
}

// Start begins the persistence loop. It flushes and exits when ctx is done.
func (p *PersistenceManager) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	buffer := make(map[string]domain.Certificate)
	done := make(chan struct{})
	p.mu.Lock()
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				p.drain(buffer)
				p.flushBuffer(buffer)
				return
			case cert := <-p.persistChan:
				buffer[cert.Digest] = cert
				if len(buffer) >= p.batchSize {
					p.flushBuffer(buffer)
					buffer = make(map[string]domain.Certificate)
				}
			case ack := <-p.flushChan:
				p.drain(buffer)
				p.flushBuffer(buffer)
				buffer = make(map[string]domain.Certificate)
				close(ack)
			case <-ticker.C:
				if len(buffer) > 0 {
					p.flushBuffer(buffer)
					buffer = make(map[string]domain.Certificate)
				}
			}
		}
	}()
}

// Wait blocks until the loop started by Start has exited.
func (p *PersistenceManager) Wait() {
	if done := p.loopDone(); done != nil {
		<-done
	}
}

// Flush writes every queued certificate and returns once the store has them.
// Without a running loop the queue is written from the calling goroutine.
func (p *PersistenceManager) Flush() {
	if done := p.loopDone(); done != nil {
		ack := make(chan struct{})
		select {
		case p.flushChan <- ack:
			<-ack
			return
		case <-done:
		}
	}
	buffer := make(map[string]domain.Certificate)
	p.drain(buffer)
	p.flushBuffer(buffer)
}

func (p *PersistenceManager) loopDone() chan struct{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.done
}

func (p *PersistenceManager) drain(buffer map[string]domain.Certificate) {
	for {
		select {
		case cert := <-p.persistChan:
			buffer[cert.Digest] = cert
		default:
			return
		}
	}
}

func (p *PersistenceManager) flushBuffer(buffer map[string]domain.Certificate) {
	if len(buffer) == 0 || p.store == nil {
		return
	}
	certs := make([]domain.Certificate, 0, len(buffer))
	for _, c := range buffer {
		certs = append(certs, c)
	}
	// The loop may be flushing after its context ended.
	if err := p.store.UpsertCertificates(context.Background(), certs); err != nil {
		log.Printf("[DB-ERR] Failed to checkpoint %d certificates: %v", len(certs), err)
	}
}
