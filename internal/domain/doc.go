// Package domain содержит модель данных Autorun.
//
// Включает:
//   - workflow.go — Task, Workflow, TaskKind, Mode
//   - registry.go — Registry, PortMapping, DeploymentDescriptor
//   - status.go   — статусы задач и workflows
//
// Registry загружается один раз и дальше только читается,
// поэтому типы пакета не содержат блокировок.
package domain
