// Package engine превращает Registry в план выполнения.
//
// Включает:
//   - graph.go    — граф ссылок workflow.run и поиск циклов (DFS)
//   - resolver.go — раскрытие workflow в дерево Plan
//
// Граф строится и проверяется целиком до раскрытия любого workflow,
// поэтому Resolve всегда завершается за конечное число шагов.
package engine
