// Package manifest загружает файл конфигурации проекта в domain.Registry.
//
// Включает:
//   - loader.go   — Load/Parse/Marshal для TOML (.replit) и YAML
//   - document.go — представление документа на диске и перевод в Registry
//   - validate.go — валидация Registry с путями до полей
//   - errors.go   — ValidationError, ValidationErrors и sentinel-ошибки
//
// Пример документа:
//
//	modules = ["python-3.11"]
//
//	[nix]
//	channel = "stable-24_05"
//
//	[deployment]
//	deploymentTarget = "autoscale"
//	run = ["streamlit", "run", "app.py", "--server.port", "5000"]
//
//	[workflows]
//	runButton = "Project"
//
//	[[workflows.workflow]]
//	name = "Project"
//	mode = "parallel"
//	author = "agent"
//
//	[[workflows.workflow.tasks]]
//	task = "workflow.run"
//	args = "Streamlit Server"
//
//	[[workflows.workflow]]
//	name = "Streamlit Server"
//	author = "agent"
//
//	[workflows.workflow.metadata]
//	agentRequireRestartOnSave = false
//
//	[[workflows.workflow.tasks]]
//	task = "packager.installForAll"
//
//	[[workflows.workflow.tasks]]
//	task = "shell.exec"
//	args = "streamlit run app.py --server.port 5000"
//	waitForPort = 5000
//
//	[[ports]]
//	localPort = 5000
//	externalPort = 80
//
// Вся валидация выполняется при загрузке, кроме поиска циклов
// workflow.run — это делает engine.NewResolver.
package manifest
