package config

import (
	"fmt"
	"io"
	"time"
	"unsafe"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/multierr"
)

type (
	NET struct {
		// Backlog is the listen queue length. Zero leaves it to the system.
		Backlog int `test:"nullable"`
		// NoDelay disables Nagle's algorithm on accepted connections.
		NoDelay bool `test:"nullable"`
		// ReadBufferSize is the size of the per-connection read buffer. Request line and
		// headers are read through it, so it doesn't limit their length.
		ReadBufferSize int
		// AcceptTimeout bounds a single accept attempt after the listener was reported
		// readable. Another goroutine (or another process sharing the port) might have
		// taken the connection already.
		AcceptTimeout time.Duration
	}

	Idle struct {
		// MaxConnections is the capacity of the idle pool. When it's full, the oldest idle
		// connection is evicted to make room for the new one. Zero disables keep-alive.
		MaxConnections int
		// Interval is how long a connection may stay idle before being closed.
		Interval time.Duration
	}

	Timers struct {
		// ClockTick is the period of the idle connections sweep.
		ClockTick time.Duration
		// DeadlineTick is the period of the request/response deadlines sweep. It runs only
		// if at least one of the deadlines is set.
		DeadlineTick time.Duration
	}

	Deadlines struct {
		// Request limits the time from the start of a request till its body is consumed.
		// Zero or negative disables it.
		Request time.Duration `test:"nullable"`
		// Response limits the time a response may take to be written. Zero or negative
		// disables it.
		Response time.Duration `test:"nullable"`
	}

	Headers struct {
		// MaxNumber is the maximal number of header lines a request may carry. Requests
		// exceeding it are dropped along with the connection.
		MaxNumber int
	}

	Body struct {
		// DrainAmount is how many bytes of unread request body are discarded when the
		// exchange is closed. A connection having more left is closed instead of reused.
		DrainAmount int64
		// ChunkSize is the capacity of a single chunk of chunked responses.
		ChunkSize int
	}

	Events struct {
		// QueueSize is the capacity of the lock-free completion events queue. Events
		// overflowing it are still delivered, just slower.
		QueueSize int
	}

	Workers struct {
		// Number of worker goroutines handling exchanges. Zero runs them right on the
		// dispatcher goroutine.
		Number int `test:"nullable"`
	}
)

// Config holds every tunable of the server.
//
// Always start from Default() and modify what's needed, the zero value is not usable.
type Config struct {
	NET       NET
	Idle      Idle
	Timers    Timers
	Deadlines Deadlines
	Headers   Headers
	Body      Body
	Events    Events
	Workers   Workers
}

// Default returns the default config.
func Default() *Config {
	return &Config{
		NET: NET{
			NoDelay:        true,
			ReadBufferSize: 4 * 1024,
			AcceptTimeout:  50 * time.Millisecond,
		},
		Idle: Idle{
			MaxConnections: 200,
			Interval:       30 * time.Second,
		},
		Timers: Timers{
			ClockTick:    10 * time.Second,
			DeadlineTick: time.Second,
		},
		Headers: Headers{
			MaxNumber: 200,
		},
		Body: Body{
			DrainAmount: 64 * 1024,
			ChunkSize:   4096,
		},
		Events: Events{
			QueueSize: 1024,
		},
	}
}

func init() {
	jsoniter.RegisterTypeDecoderFunc("time.Duration", decodeDuration)
}

// decodeDuration accepts both duration strings ("30s") and plain integers, the latter
// being nanoseconds as encoding/json would treat them.
func decodeDuration(ptr unsafe.Pointer, iter *jsoniter.Iterator) {
	switch iter.WhatIsNext() {
	case jsoniter.StringValue:
		d, err := time.ParseDuration(iter.ReadString())
		if err != nil {
			iter.ReportError("decode duration", err.Error())
			return
		}

		*(*time.Duration)(ptr) = d
	case jsoniter.NumberValue:
		*(*time.Duration)(ptr) = time.Duration(iter.ReadInt64())
	default:
		iter.ReportError("decode duration", "expected string or number")
	}
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Load overlays the JSON document read from r over a copy of base. Fields missing in
// the document keep their base values. Unknown fields are rejected. The result is
// validated.
func Load(r io.Reader, base *Config) (*Config, error) {
	if base == nil {
		base = Default()
	}

	cfg := *base
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports every nonsensical value at once.
func Validate(cfg *Config) (err error) {
	positive := func(name string, value int64) {
		if value <= 0 {
			err = multierr.Append(err, fmt.Errorf("config: %s must be positive, got %d", name, value))
		}
	}
	nonNegative := func(name string, value int64) {
		if value < 0 {
			err = multierr.Append(err, fmt.Errorf("config: %s must not be negative, got %d", name, value))
		}
	}

	nonNegative("NET.Backlog", int64(cfg.NET.Backlog))
	positive("NET.ReadBufferSize", int64(cfg.NET.ReadBufferSize))
	positive("NET.AcceptTimeout", int64(cfg.NET.AcceptTimeout))
	nonNegative("Idle.MaxConnections", int64(cfg.Idle.MaxConnections))
	positive("Idle.Interval", int64(cfg.Idle.Interval))
	positive("Timers.ClockTick", int64(cfg.Timers.ClockTick))
	positive("Timers.DeadlineTick", int64(cfg.Timers.DeadlineTick))
	positive("Headers.MaxNumber", int64(cfg.Headers.MaxNumber))
	nonNegative("Body.DrainAmount", cfg.Body.DrainAmount)
	positive("Body.ChunkSize", int64(cfg.Body.ChunkSize))
	positive("Events.QueueSize", int64(cfg.Events.QueueSize))
	nonNegative("Workers.Number", int64(cfg.Workers.Number))

	return err
}
