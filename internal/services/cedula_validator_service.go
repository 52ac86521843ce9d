package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/sjperalta/clients-api/internal/metrics"
	"github.com/sjperalta/clients-api/pkg/logger"
)

const (
	msgCedulaValid   = "Cédula válida según registro civil"
	msgCedulaInvalid = "Cédula no válida o no encontrada en registro civil"

	defaultMinLatency  = 500 * time.Millisecond
	defaultMaxLatency  = 1500 * time.Millisecond
	defaultFailureRate = 0.3
)

// RandomSource yields samples in [0, 1). Implementations shared between
// requests must be safe for concurrent use.
type RandomSource interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Sleeper blocks for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// ValidationOutcome is the civil registry's answer for a document number
type ValidationOutcome struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// DocumentValidator checks a cédula against the civil registry
type DocumentValidator interface {
	ValidateDocument(ctx context.Context, number string) (ValidationOutcome, error)
}

// CedulaValidatorService simulates the civil registry: every call waits a
// random latency and then fails with ErrValidatorUnavailable at the configured
// rate. Calls that get through are answered with the local checksum.
type CedulaValidatorService struct {
	random      RandomSource
	sleep       Sleeper
	minLatency  time.Duration
	maxLatency  time.Duration
	failureRate float64
	metrics     *metrics.Metrics
}

// ValidatorOption is a functional option for configuring CedulaValidatorService
type ValidatorOption func(*CedulaValidatorService)

func WithRandomSource(r RandomSource) ValidatorOption {
	return func(s *CedulaValidatorService) {
		s.random = r
	}
}

// WithLatency sets the bounds of the simulated network delay, [min, max)
func WithLatency(min, max time.Duration) ValidatorOption {
	return func(s *CedulaValidatorService) {
		s.minLatency = min
		s.maxLatency = max
	}
}

func WithFailureRate(rate float64) ValidatorOption {
	return func(s *CedulaValidatorService) {
		s.failureRate = rate
	}
}

func WithSleeper(sleep Sleeper) ValidatorOption {
	return func(s *CedulaValidatorService) {
		s.sleep = sleep
	}
}

func WithValidatorMetrics(m *metrics.Metrics) ValidatorOption {
	return func(s *CedulaValidatorService) {
		s.metrics = m
	}
}

func NewCedulaValidatorService(opts ...ValidatorOption) *CedulaValidatorService {
	s := &CedulaValidatorService{
		random:      globalRand{},
		sleep:       sleepContext,
		minLatency:  defaultMinLatency,
		maxLatency:  defaultMaxLatency,
		failureRate: defaultFailureRate,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxLatency < s.minLatency {
		s.maxLatency = s.minLatency
	}
	return s
}

// ValidateDocument asks the registry about number. It returns
// ErrValidatorUnavailable when the simulated service fails and ctx.Err() when
// the context ends while waiting. It is safe for concurrent use.
func (s *CedulaValidatorService) ValidateDocument(ctx context.Context, number string) (ValidationOutcome, error) {
	start := time.Now()

	latency := s.minLatency + time.Duration(s.random.Float64()*float64(s.maxLatency-s.minLatency))
	if err := s.sleep(ctx, latency); err != nil {
		s.metrics.ObserveValidation(metrics.OutcomeCancelled, time.Since(start))
		return ValidationOutcome{}, err
	}

	if s.random.Float64() < s.failureRate {
		logger.Warn("Civil registry unavailable", "latency", latency)
		s.metrics.ObserveValidation(metrics.OutcomeUnavailable, time.Since(start))
		return ValidationOutcome{}, ErrValidatorUnavailable
	}

	if IsValidCedula(number) {
		s.metrics.ObserveValidation(metrics.OutcomeValid, time.Since(start))
		return ValidationOutcome{Valid: true, Message: msgCedulaValid}, nil
	}
	s.metrics.ObserveValidation(metrics.OutcomeInvalid, time.Since(start))
	return ValidationOutcome{Valid: false, Message: msgCedulaInvalid}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsValidatorUnavailable reports whether err means the registry could not answer
func IsValidatorUnavailable(err error) bool {
	return errors.Is(err, ErrValidatorUnavailable)
}
