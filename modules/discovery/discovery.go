// Package discovery finds module dev servers running on the local machine and
// keeps their registry rows in sync with what is actually answering.
package discovery

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/buger/jsonparser"
	"github.com/gammazero/workerpool"
	"github.com/go-co-op/gocron/v2"

	"github.com/priyxstudio/sgo/config"
	"github.com/priyxstudio/sgo/metrics"
	"github.com/priyxstudio/sgo/modules"
)

const (
	manifestPath    = "/manifest.json"
	remoteEntryPath = "/assets/remoteEntry.js"
	maxManifestSize = 1 << 20
)

// Options tune a discovery service.
type Options struct {
	Host        string
	PortStart   int
	PortEnd     int
	Interval    time.Duration
	Timeout     time.Duration
	Concurrency int
	AllowDirs   []string
}

// OptionsFromConfig converts the configuration block into service options.
func OptionsFromConfig(c config.DiscoveryConfiguration) Options {
	return Options{
		Host:        c.Host,
		PortStart:   c.PortStart,
		PortEnd:     c.PortEnd,
		Interval:    time.Duration(c.Interval) * time.Second,
		Timeout:     time.Duration(c.Timeout) * time.Millisecond,
		Concurrency: c.Concurrency,
		AllowDirs:   c.AllowDirs,
	}
}

// Status describes the scanner for the admin API.
type Status struct {
	Enabled         bool      `json:"enabled"`
	InProgress      bool      `json:"in_progress"`
	LastStartedAt   time.Time `json:"last_started_at,omitempty"`
	LastCompletedAt time.Time `json:"last_completed_at,omitempty"`
	Found           []string  `json:"found"`
	LastError       string    `json:"last_error,omitempty"`
	Scans           uint64    `json:"scans"`
}

// Result is the outcome of a single scan.
type Result struct {
	Found       []string `json:"found"`
	Deactivated []string `json:"deactivated"`
	Skipped     []string `json:"skipped"`
	Invalid     []int    `json:"invalid_ports"`
}

type probe struct {
	port        int
	manifest    *modules.Manifest
	baseURL     string
	remoteEntry string
	invalid     bool
}

// Service runs the discovery scan on a schedule. The zero value is not
// usable, create one with New.
type Service struct {
	opts     Options
	registry *modules.Registry
	client   *http.Client
	logger   *log.Entry

	// scan serialises scans so the scheduled job and a manual trigger never
	// overlap.
	scan sync.Mutex

	mu        sync.RWMutex
	status    Status
	scheduler gocron.Scheduler
	cancel    context.CancelFunc
}

// New returns a stopped service writing into registry.
func New(registry *modules.Registry, opts Options) *Service {
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 16
	}
	return &Service{
		opts:     opts,
		registry: registry,
		client:   &http.Client{Timeout: opts.Timeout},
		logger:   log.WithField("subsystem", "discovery"),
		status:   Status{Found: []string{}},
	}
}

// Start runs one scan immediately and then one every interval until ctx is
// canceled or Stop is called. A scan still running when the next one is due
// causes that run to be skipped.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler != nil {
		return errors.New("discovery: service already started")
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return errors.Wrap(err, "discovery: failed to create scheduler")
	}
	ctx, cancel := context.WithCancel(ctx)
	_, err = sched.NewJob(
		gocron.DurationJob(s.opts.Interval),
		gocron.NewTask(func() {
			if _, err := s.ScanOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.WithField("error", err).Warn("dev module scan failed")
			}
		}),
		gocron.WithName("dev-discovery"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		cancel()
		_ = sched.Shutdown()
		return errors.Wrap(err, "discovery: failed to schedule scan")
	}

	sched.Start()
	s.scheduler = sched
	s.cancel = cancel
	s.status.Enabled = true
	s.logger.WithFields(log.Fields{
		"host":     s.opts.Host,
		"ports":    strconv.Itoa(s.opts.PortStart) + "-" + strconv.Itoa(s.opts.PortEnd),
		"interval": s.opts.Interval.String(),
	}).Info("started dev module discovery")
	return nil
}

// Stop cancels any running scan and waits for the scheduler to exit. It is
// safe to call on a service that was never started.
func (s *Service) Stop() error {
	s.mu.Lock()
	sched, cancel := s.scheduler, s.cancel
	s.scheduler, s.cancel = nil, nil
	s.status.Enabled = false
	s.mu.Unlock()

	if sched == nil {
		return nil
	}
	cancel()
	return errors.WrapIf(sched.Shutdown(), "discovery: failed to stop scheduler")
}

// Status returns a copy of the current scanner state.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.Found = append([]string{}, s.status.Found...)
	return st
}

// ScanOnce probes every port in the range, registers the modules that answer
// and deactivates dev modules that did not. Probe failures are never errors;
// the returned error only reports registry failures.
func (s *Service) ScanOnce(ctx context.Context) (*Result, error) {
	s.scan.Lock()
	defer s.scan.Unlock()

	start := time.Now()
	s.mu.Lock()
	s.status.InProgress = true
	s.status.LastStartedAt = start
	s.mu.Unlock()

	res, err := s.run(ctx)
	metrics.DiscoveryScanDuration.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	s.status.InProgress = false
	s.status.Scans++
	if err != nil {
		s.status.LastError = err.Error()
	} else {
		s.status.LastError = ""
		s.status.LastCompletedAt = time.Now()
		s.status.Found = res.Found
	}
	s.mu.Unlock()
	return res, err
}

func (s *Service) run(ctx context.Context) (*Result, error) {
	allowed := s.allowList()
	probes := s.probeAll(ctx)

	res := &Result{Found: []string{}}
	seen := make(map[string]bool)
	var failed error
	for _, p := range probes {
		if p.invalid {
			res.Invalid = append(res.Invalid, p.port)
			continue
		}
		if p.manifest == nil {
			continue
		}
		slug := p.manifest.Slug
		if len(allowed) > 0 && !allowed[slug] {
			s.logger.WithFields(log.Fields{"module": slug, "port": p.port}).Debug("ignoring dev module outside of the allow list")
			res.Skipped = append(res.Skipped, slug)
			continue
		}
		if _, err := s.registry.SaveDev(ctx, p.manifest, p.baseURL, p.remoteEntry); err != nil {
			s.logger.WithFields(log.Fields{"module": slug, "error": err}).Error("failed to register dev module")
			failed = errors.Append(failed, err)
			continue
		}
		if !seen[slug] {
			seen[slug] = true
			res.Found = append(res.Found, slug)
		}
	}
	metrics.DiscoveryModules.Set(float64(len(res.Found)))

	// A canceled scan has not heard from every port.
	if ctx.Err() != nil {
		return res, errors.Append(failed, ctx.Err())
	}
	stale, err := s.registry.DeactivateDevExcept(ctx, res.Found)
	if err != nil {
		return res, errors.Append(failed, err)
	}
	res.Deactivated = stale
	if len(stale) > 0 {
		s.logger.WithField("modules", stale).Info("deactivated dev modules that stopped responding")
	}
	return res, failed
}

// probeAll returns one entry per port, in ascending port order.
func (s *Service) probeAll(ctx context.Context) []probe {
	if s.opts.PortEnd < s.opts.PortStart {
		return nil
	}
	out := make([]probe, s.opts.PortEnd-s.opts.PortStart+1)
	pool := workerpool.New(s.opts.Concurrency)
	for i := range out {
		port := s.opts.PortStart + i
		out[i].port = port
		pool.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			s.probe(ctx, &out[i])
		})
	}
	pool.StopWait()
	return out
}

func (s *Service) probe(ctx context.Context, p *probe) {
	base := "http://" + net.JoinHostPort(s.opts.Host, strconv.Itoa(p.port))
	body, ok := s.fetch(ctx, http.MethodGet, base+manifestPath)
	if !ok {
		metrics.DiscoveryProbes.WithLabelValues("miss").Inc()
		return
	}

	m, err := modules.ParseManifest(body)
	if err != nil {
		metrics.DiscoveryProbes.WithLabelValues("invalid").Inc()
		slug, _ := jsonparser.GetString(body, "slug")
		s.logger.WithFields(log.Fields{"port": p.port, "slug": slug, "error": err}).Warn("dev server returned an invalid manifest")
		p.invalid = true
		return
	}
	metrics.DiscoveryProbes.WithLabelValues("found").Inc()

	p.manifest = m
	p.baseURL = base
	p.remoteEntry = base
	if m.IsFederated() {
		if _, ok := s.fetch(ctx, http.MethodHead, base+remoteEntryPath); ok {
			p.remoteEntry = base + remoteEntryPath
		}
	}
}

// fetch performs a single request bounded by the probe timeout. Any failure
// or non-2xx answer is reported as not ok.
func (s *Service) fetch(ctx context.Context, method, url string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, false
	}
	res, err := s.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return nil, false
	}
	if method == http.MethodHead {
		return nil, true
	}
	b, err := io.ReadAll(io.LimitReader(res.Body, maxManifestSize))
	if err != nil {
		return nil, false
	}
	return b, true
}

// allowList collects the slugs of every module source folder below the
// configured allow dirs. An empty result accepts any module.
func (s *Service) allowList() map[string]bool {
	if len(s.opts.AllowDirs) == 0 {
		return nil
	}
	allowed := make(map[string]bool)
	for _, dir := range s.opts.AllowDirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*", modules.ManifestName))
		if err != nil {
			continue
		}
		matches = append(matches, filepath.Join(dir, modules.ManifestName))
		for _, p := range matches {
			b, err := os.ReadFile(p)
			if err != nil {
				continue
			}
			m, err := modules.ParseManifest(b)
			if err != nil {
				s.logger.WithFields(log.Fields{"path": p, "error": err}).Debug("ignoring invalid manifest in allow dir")
				continue
			}
			allowed[m.Slug] = true
		}
	}
	return allowed
}
