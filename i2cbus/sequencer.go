package i2cbus

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

const (
	RequestWrite = iota + 1
	RequestRead
	RequestWriteRead
	RequestGet
)

type Request struct {
	Type        int
	Addr        byte
	DataWrite   []byte
	DataRead    []byte
	GetRegister byte // Only for RequestGet
	GetSize     int  // Only for RequestGet
	Error       error

	done bool
	wait *sync.Cond
}

func (r *Request) init() {
	r.wait = &sync.Cond{L: new(sync.Mutex)}
}

func (r *Request) Wait() {
	r.wait.L.Lock()
	defer r.wait.L.Unlock()
	for !r.done {
		r.wait.Wait()
	}
}

func (r *Request) notifyDone() {
	r.wait.L.Lock()
	defer r.wait.L.Unlock()
	r.done = true
	r.wait.Broadcast()
}

// Sequencer funnels requests of multiple users through one goroutine owning the underlying bus.
// Each request is one complete bus transaction, so requests of different devices interleave only
// between transactions.
type Sequencer struct {
	Bus   Bus
	queue chan *Request
	once  sync.Once
}

func NewSequencer(bus Bus, queueSize int) *Sequencer {
	return &Sequencer{
		Bus:   bus,
		queue: make(chan *Request, queueSize),
	}
}

// Start launches the goroutine handling queued requests. Requests block until Start was called.
func (s *Sequencer) Start() {
	s.once.Do(func() {
		go s.handleRequests()
	})
}

// Stop makes the handling goroutine return after the queued requests are done.
// The Sequencer must not be used afterwards.
func (s *Sequencer) Stop() {
	close(s.queue)
}

func (s *Sequencer) handleRequests() {
	for req := range s.queue {
		switch req.Type {
		case RequestWrite:
			req.Error = s.Bus.I2cWrite(req.Addr, req.DataWrite...)
		case RequestRead:
			req.Error = s.Bus.I2cRead(req.Addr, req.DataRead)
		case RequestWriteRead:
			req.Error = s.Bus.I2cWriteRead(req.Addr, req.DataWrite, req.DataRead)
		case RequestGet:
			req.DataRead, req.Error = s.Bus.I2cGet(req.Addr, req.GetRegister, req.GetSize)
		default:
			log.Errorln("Ignoring invalid I2C request with type", req.Type)
		}
		req.notifyDone()
	}
}

func (s *Sequencer) Queue(req *Request) {
	req.init()
	s.queue <- req
}

func (s *Sequencer) Request(req *Request) {
	s.Queue(req)
	req.Wait()
}

func (s *Sequencer) I2cWrite(addr byte, data ...byte) error {
	req := &Request{
		Type:      RequestWrite,
		Addr:      addr,
		DataWrite: data,
	}
	s.Request(req)
	return req.Error
}

func (s *Sequencer) I2cRead(addr byte, data []byte) error {
	req := &Request{
		Type:     RequestRead,
		Addr:     addr,
		DataRead: data,
	}
	s.Request(req)
	return req.Error
}

func (s *Sequencer) I2cWriteRead(addr byte, out, in []byte) error {
	req := &Request{
		Type:      RequestWriteRead,
		Addr:      addr,
		DataRead:  in,
		DataWrite: out,
	}
	s.Request(req)
	return req.Error
}

func (s *Sequencer) I2cGet(addr byte, registerAddr byte, size int) ([]byte, error) {
	req := &Request{
		Type:        RequestGet,
		Addr:        addr,
		GetRegister: registerAddr,
		GetSize:     size,
	}
	s.Request(req)
	return req.DataRead, req.Error
}
