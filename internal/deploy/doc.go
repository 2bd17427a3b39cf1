// Package deploy публикует приложение по дескриптору развёртывания.
//
// Publisher выполняет deployment.build и deployment.run как argv (без
// shell) с DEPLOYMENT_TARGET и PORT в окружении. Workflows при этом
// не запускаются.
package deploy
