// Package cli реализует команды autorun.
//
// Команды:
//
//	run [WORKFLOW]   выполнить workflow (по умолчанию — точку входа)
//	plan [WORKFLOW]  показать раскрытый план
//	validate         проверить конфигурацию
//	list             список workflows
//	fmt              канонический вид конфигурации
//	deploy           выполнить deployment build/run
//	history          история запусков из Postgres
//	events           поток событий из RabbitMQ
//
// ExitCode переводит ошибку команды в код выхода процесса.
package cli
