// ABOUTME: Logging package documentation
// ABOUTME: Describes module loggers and level configuration
// Package logging provides structured logging with per-module log level configuration.
//
// Initialize the logging system once at startup:
//
//	out, closeLog, err := logging.OpenOutput(opts.LoggingFile, opts.UITUI)
//	defer closeLog()
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Output: out,
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("dispatch")
//	logger.Info("Task streaming", "device_id", 3)
//
// Module-specific levels override the global level for that module only:
//
//	[logging]
//	level = "info"
//
//	[logging.modules]
//	calibrate = "debug"
package logging
