package runner

import (
	"context"
	"net"
	"strconv"
	"time"
)

// Значения GateConfig по умолчанию.
const (
	DefaultPortTimeout     = 60 * time.Second
	DefaultInitialInterval = 100 * time.Millisecond
	DefaultMaxInterval     = 2 * time.Second
	DefaultMaxAttempts     = 120
	defaultDialTimeout     = time.Second
)

// GateConfig — политика ожидания порта.
type GateConfig struct {
	// Host — адрес, на котором проверяется порт (по умолчанию 127.0.0.1).
	Host string

	// Timeout — общий лимит ожидания.
	Timeout time.Duration

	// InitialInterval — пауза после первой неудачной попытки.
	InitialInterval time.Duration

	// MaxInterval — верхняя граница паузы.
	MaxInterval time.Duration

	// MaxAttempts — бюджет попыток подключения.
	MaxAttempts int
}

func (c GateConfig) withDefaults() GateConfig {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultPortTimeout
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = DefaultInitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = DefaultMaxInterval
	}
	if c.MaxInterval < c.InitialInterval {
		c.MaxInterval = c.InitialInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}

// PortProbe ждёт, пока локальный порт начнёт принимать соединения.
type PortProbe struct {
	cfg    GateConfig
	dialer net.Dialer
}

// NewPortProbe создаёт PortProbe.
func NewPortProbe(cfg GateConfig) *PortProbe {
	return &PortProbe{
		cfg:    cfg.withDefaults(),
		dialer: net.Dialer{Timeout: defaultDialTimeout},
	}
}

// Config возвращает действующую политику.
func (p *PortProbe) Config() GateConfig {
	return p.cfg
}

// probeResult — итог ожидания порта.
type probeResult struct {
	attempts int
	elapsed  time.Duration
	err      error // nil, ErrProcessExited, ErrPortTimeout или ошибка ctx
}

// Await опрашивает порт с экспоненциальной паузой до успеха, завершения
// процесса (exited), исчерпания бюджета или отмены ctx.
func (p *PortProbe) Await(ctx context.Context, port int, exited <-chan struct{}) probeResult {
	start := time.Now()
	addr := net.JoinHostPort(p.cfg.Host, strconv.Itoa(port))

	deadline := time.NewTimer(p.cfg.Timeout)
	defer deadline.Stop()

	var res probeResult
	for res.attempts < p.cfg.MaxAttempts {
		res.attempts++

		dialCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
		conn, err := p.dialer.DialContext(dialCtx, "tcp", addr)
		cancel()
		if err == nil {
			_ = conn.Close()
			res.elapsed = time.Since(start)
			// Порт мог открыть чужой процесс: задача к этому моменту уже завершилась
			select {
			case <-exited:
				res.err = ErrProcessExited
			default:
			}
			return res
		}
		if res.attempts == p.cfg.MaxAttempts {
			break
		}

		wait := time.NewTimer(calculateBackoff(res.attempts, p.cfg.InitialInterval, p.cfg.MaxInterval))
		select {
		case <-wait.C:
		case <-exited:
			wait.Stop()
			res.elapsed, res.err = time.Since(start), ErrProcessExited
			return res
		case <-deadline.C:
			wait.Stop()
			res.elapsed, res.err = time.Since(start), ErrPortTimeout
			return res
		case <-ctx.Done():
			wait.Stop()
			res.elapsed, res.err = time.Since(start), ctx.Err()
			return res
		}
	}

	res.elapsed, res.err = time.Since(start), ErrPortTimeout
	return res
}

// calculateBackoff вычисляет паузу перед попыткой attempt+1:
// initial * 2^(attempt-1), не больше max.
func calculateBackoff(attempt int, initial, max time.Duration) time.Duration {
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
