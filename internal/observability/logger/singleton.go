package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once     sync.Once
	instance *zap.Logger
)

// Init configura el logger del proceso. Idempotente: la primera llamada
// gana, las siguientes son no-ops. cmd/ramify la invoca antes de armar
// el resto del wiring para que hasta los errores de arranque salgan
// estructurados.
func Init(cfg Config) {
	once.Do(func() {
		instance = build(cfg)
	})
}

// L retorna el logger del proceso. Sin Init previo arma uno dev/info:
// los tests de paquete loguean sin boilerplate de setup.
func L() *zap.Logger {
	if instance == nil {
		Init(Config{Env: "dev", Level: "info"})
	}
	return instance
}

// Named retorna un logger con nombre de componente (record.store,
// controlplane.digest, etc).
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// With retorna un logger con campos fijos adicionales.
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// Sync flushea buffers pendientes; va en defer en main.
func Sync() error {
	if instance != nil {
		return instance.Sync()
	}
	return nil
}
