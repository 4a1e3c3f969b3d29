package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

var (
	appLogger   *log.Logger
	proxyLogger *log.Logger
	errorLogger *log.Logger

	logLevel     string
	appLogFile   *os.File
	proxyLogFile *os.File
	initialized  bool
)

// InitGlobalLoggers opens the application and proxy log files and sets the
// global level. It may be called again (e.g. after config is loaded) to
// re-point the loggers at their final paths.
func InitGlobalLoggers(appLogPath, proxyLogPath, level string) error {
	if initialized && appLogFile != nil && proxyLogFile != nil && strings.ToUpper(level) == logLevel {
		return nil
	}
	if appLogFile != nil {
		appLogFile.Close()
		appLogFile = nil
	}
	if proxyLogFile != nil {
		proxyLogFile.Close()
		proxyLogFile = nil
	}

	logLevel = strings.ToUpper(level)
	if logLevel == "" {
		logLevel = "INFO"
	}

	errorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)

	appLogger = log.New(openLogWriter(appLogPath, &appLogFile), "APP: ", log.Ldate|log.Ltime|log.Lshortfile)
	proxyLogger = log.New(openLogWriter(proxyLogPath, &proxyLogFile), "PROXY: ", log.Ldate|log.Ltime|log.Lshortfile)

	initialized = true
	return nil
}

// openLogWriter opens path for appending, creating its directory first. On
// any failure the returned writer discards, so logging never blocks startup.
func openLogWriter(path string, file **os.File) io.Writer {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		errorLogger.Printf("Failed to create log directory for %s: %v. Logs will be discarded.", path, err)
		return io.Discard
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		errorLogger.Printf("Failed to open log file %s: %v. Logs will be discarded.", path, err)
		return io.Discard
	}
	*file = f
	return f
}

func Info(format string, v ...interface{}) {
	if appLogger != nil && (logLevel == "INFO" || logLevel == "DEBUG") {
		appLogger.Printf(format, v...)
	}
}

func Debug(format string, v ...interface{}) {
	if appLogger != nil && logLevel == "DEBUG" {
		appLogger.Printf(format, v...)
	}
}

func Warn(format string, v ...interface{}) {
	message := "WARNING: " + fmt.Sprintf(format, v...)
	if errorLogger != nil {
		errorLogger.Print(message)
	}
	if appLogger != nil && appLogFile != nil {
		appLogger.Print(message)
	}
}

func Error(format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)
	if errorLogger != nil {
		errorLogger.Print(message)
	}
	if appLogger != nil && appLogFile != nil {
		appLogger.Print(message)
	}
}

func Fatal(format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)
	if errorLogger != nil {
		errorLogger.Fatal(message)
	} else {
		log.Fatal(message)
	}
}

func ProxyInfo(format string, v ...interface{}) {
	if proxyLogger != nil && (logLevel == "INFO" || logLevel == "DEBUG") {
		proxyLogger.Printf(format, v...)
	}
}

func ProxyDebug(format string, v ...interface{}) {
	if proxyLogger != nil && logLevel == "DEBUG" {
		proxyLogger.Printf(format, v...)
	}
}

func ProxyError(format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)
	if errorLogger != nil {
		errorLogger.Print(message)
	}
	if proxyLogger != nil && proxyLogFile != nil {
		proxyLogger.Print(message)
	}
}

func CloseLogFiles() {
	if appLogFile != nil {
		appLogFile.Close()
		appLogFile = nil
	}
	if proxyLogFile != nil {
		proxyLogFile.Close()
		proxyLogFile = nil
	}
	initialized = false
}
