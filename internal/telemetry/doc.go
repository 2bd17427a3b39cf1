// Package telemetry обеспечивает наблюдаемость запусков.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики задач, портов и запусков
//
// Метрики экспортируются на /metrics, если задан --metrics-addr.
package telemetry
