package utils

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
)

// Global logger variables
var (
	InfoLogger  *log.Logger
	ErrorLogger *log.Logger

	debugEnabled bool
)

// InitLogging initializes structured logging with separate stdout/stderr
// streams. Human-readable info lines go to stdout so `docker logs` stays
// readable; errors go to stderr so they can be shipped separately.
func InitLogging(level string) {
	InfoLogger = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)

	log.SetOutput(os.Stderr)
	log.SetPrefix("SYSTEM: ")
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	debugEnabled = level == "debug" || level == "trace"
}

// LogError logs errors with context to stderr
func LogError(context string, err error, metadata ...interface{}) {
	if err != nil {
		args := []interface{}{context, err}
		args = append(args, metadata...)
		ErrorLogger.Println(args...)
	}
}

// LogInfo logs informational messages to stdout
func LogInfo(message string, metadata ...interface{}) {
	args := []interface{}{message}
	args = append(args, metadata...)
	InfoLogger.Println(args...)
}

// LogDebug logs only when LOG_LEVEL requests debug output
func LogDebug(message string, metadata ...interface{}) {
	if !debugEnabled {
		return
	}
	LogInfo(message, metadata...)
}

// LogRequestError logs errors with request context to stderr
func LogRequestError(c *fiber.Ctx, context string, err error, metadata ...interface{}) {
	if err != nil {
		requestID, _ := c.Locals("request_id").(string)
		userEmail, _ := c.Locals("user_email").(string)

		args := []interface{}{
			"request_id", requestID,
			"user", userEmail,
			"method", c.Method(),
			"path", c.Path(),
			"ip", c.IP(),
			"context", context,
			"error", err,
		}
		args = append(args, metadata...)
		ErrorLogger.Println(args...)
	}
}
