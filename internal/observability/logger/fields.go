package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar - HTTP

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field { return zap.String("request_id", v) }

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field { return zap.String("method", v) }

// Path crea un campo para el path del request.
func Path(v string) zap.Field { return zap.String("path", v) }

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field { return zap.Int("status", v) }

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }

// Duration crea un campo para la duración del request.
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// Bytes crea un campo para los bytes de respuesta.
func Bytes(v int) zap.Field { return zap.Int("bytes", v) }

// ClientIP crea un campo para la IP del cliente.
func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// Campos estándar - negocio

// RecordID crea un campo para el ID de un record.
func RecordID(v string) zap.Field { return zap.String("record_id", v) }

// BranchID crea un campo para el ID de una branch.
func BranchID(v string) zap.Field { return zap.String("branch_id", v) }

// Endpoint crea un campo para un endpoint de branch.
func Endpoint(v string) zap.Field { return zap.String("endpoint", v) }

// SessionID crea un campo para la sesión dueña de un record.
func SessionID(v string) zap.Field { return zap.String("session_id", v) }

// Campos estándar - sistema

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field { return zap.String("component", v) }

// Op crea un campo para la operación actual.
func Op(v string) zap.Field { return zap.String("op", v) }

// Err crea un campo para un error.
func Err(err error) zap.Field { return zap.Error(err) }

// Count crea un campo para un conteo.
func Count(v int) zap.Field { return zap.Int("count", v) }

// Key crea un campo genérico para una clave.
func Key(v string) zap.Field { return zap.String("key", v) }

// String crea un campo string genérico.
func String(key, v string) zap.Field { return zap.String(key, v) }

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field { return zap.Int(key, v) }
